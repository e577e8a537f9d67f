// Package intervals implements the interval algebra over a policy's daily
// recurring allowed-charging windows: intersecting them with an arbitrary
// UTC range, and testing whether a given instant falls inside one.
package intervals

import (
	"fmt"
	"time"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// Interval is a half-open UTC time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval's length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// AllowedTimesDuring produces, in chronological order, the UTC intervals
// formed by intersecting [start, end) with one concrete recurrence of each
// of policy's AllowedTimes windows on each local calendar date from
// local-date(start) onward. It stops generating once the next candidate
// window's start would be at or past end.
func AllowedTimesDuring(policy types.Policy, start, end time.Time) ([]Interval, error) {
	if !start.Before(end) {
		return nil, nil
	}

	loc, err := policy.Location()
	if err != nil {
		return nil, fmt.Errorf("allowed times during: %w", err)
	}
	requested := Interval{Start: start, End: end}

	localStart := start.In(loc)
	year, month, day := localStart.Date()

	var out []Interval
	for {
		stop := false
		for _, w := range policy.AllowedTimes {
			wStart := w.Start.OnDate(year, month, day, loc)
			wEnd := w.End.OnDate(year, month, day, loc)

			// DST guard: if the nominal time-of-day construction rolled onto
			// a different calendar date (a spring-forward gap), this
			// recurrence does not exist for this date — skip it silently.
			if y, m, d := wStart.Date(); y != year || m != month || d != day {
				continue
			}

			if !wStart.Before(end) {
				stop = true
				break
			}

			if iv, ok := intersect(Interval{Start: wStart, End: wEnd}, requested); ok && iv.Start.Before(iv.End) {
				out = append(out, iv)
			}
		}
		if stop {
			break
		}
		next := time.Date(year, month, day+1, 0, 0, 0, 0, loc)
		year, month, day = next.Date()
	}

	return out, nil
}

// AllowedAt reports whether t falls within some recurrence of policy's
// AllowedTimes windows, evaluated in the policy's zone.
func AllowedAt(policy types.Policy, t time.Time) (bool, error) {
	loc, err := policy.Location()
	if err != nil {
		return false, fmt.Errorf("allowed at: %w", err)
	}
	local := t.In(loc)
	year, month, day := local.Date()

	for _, w := range policy.AllowedTimes {
		wStart := w.Start.OnDate(year, month, day, loc)
		wEnd := w.End.OnDate(year, month, day, loc)
		if (t.Equal(wStart) || t.After(wStart)) && t.Before(wEnd) {
			return true, nil
		}
	}
	return false, nil
}

// intersect returns the overlap of a and b, or ok=false if they are
// disjoint. Adjacent intervals yield ok=true with a zero-width result,
// which callers must filter out.
func intersect(a, b Interval) (Interval, bool) {
	if b.Start.After(a.End) || a.Start.After(b.End) {
		return Interval{}, false
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Interval{Start: start, End: end}, true
}
