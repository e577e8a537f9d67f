// Package histogram builds fixed-precision distributions of emissions
// rates (integer grams CO2/kWh) restricted to a set of time intervals.
package histogram

import (
	"fmt"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/evchargectl/evchargectl/pkg/intervals"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// maxRateGramsPerKWh bounds recordable values; grid marginal emissions
// never approach 1000 kg/kWh, this is a generous ceiling for the histogram
// bucketing, not a realistic rate.
const maxRateGramsPerKWh = 1_000_000

// Histogram is a three-significant-digit distribution over non-negative
// integer-gram emissions rates.
type Histogram struct {
	h *hdrhistogram.Histogram
}

// New returns an empty histogram.
func New() *Histogram {
	return &Histogram{h: hdrhistogram.New(0, maxRateGramsPerKWh, 3)}
}

// RateToGrams converts a kg/kWh rate to the integer-gram unit the
// histogram is keyed by, truncating per spec.md §3.
func RateToGrams(kgPerKWh float64) int64 {
	return int64(kgPerKWh * 1000)
}

// Record adds a single sample, clamped into the histogram's valid range.
func (h *Histogram) Record(rateGrams int64) error {
	if rateGrams < 0 {
		rateGrams = 0
	}
	if rateGrams > maxRateGramsPerKWh {
		rateGrams = maxRateGramsPerKWh
	}
	if err := h.h.RecordValue(rateGrams); err != nil {
		return fmt.Errorf("record rate %d: %w", rateGrams, err)
	}
	return nil
}

// RecordAllFromSeries records the rate of every MOER sample in series whose
// Start falls inside any of ivs.
func (h *Histogram) RecordAllFromSeries(series []types.MOER, ivs []intervals.Interval) error {
	for _, m := range series {
		if !containedInAny(m.Start, ivs) {
			continue
		}
		if err := h.Record(RateToGrams(m.Rate)); err != nil {
			return err
		}
	}
	return nil
}

// Add merges other's samples into h.
func (h *Histogram) Add(other *Histogram) {
	h.h.Merge(other.h)
}

// TotalCount returns the number of samples recorded so far.
func (h *Histogram) TotalCount() int64 {
	return h.h.TotalCount()
}

// ValueAtQuantile returns the smallest recorded value whose cumulative
// count is >= q * total count, clamped to q in [0, 1]. Returns 0 if empty.
func (h *Histogram) ValueAtQuantile(q float64) int64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	// the underlying library expresses quantiles as percentiles, 0-100.
	return h.h.ValueAtQuantile(q * 100)
}

// HistogramOver is a convenience constructor: build a fresh histogram from
// series restricted to ivs.
func HistogramOver(series []types.MOER, ivs []intervals.Interval) (*Histogram, error) {
	h := New()
	if err := h.RecordAllFromSeries(series, ivs); err != nil {
		return nil, err
	}
	return h, nil
}

func containedInAny(t time.Time, ivs []intervals.Interval) bool {
	for _, iv := range ivs {
		if (t.Equal(iv.Start) || t.After(iv.Start)) && t.Before(iv.End) {
			return true
		}
	}
	return false
}
