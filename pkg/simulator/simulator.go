// Package simulator runs offline backtests of the decision engine against
// recorded emissions history, stepping four synthetic starting states of
// charge through a day and producing one CSV row per 5-minute tick (spec
// §6, §8 scenario 6).
package simulator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evchargectl/evchargectl/pkg/controller"
	"github.com/evchargectl/evchargectl/pkg/csvreport"
	"github.com/evchargectl/evchargectl/pkg/emissions"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// MaxDays bounds how many backtest days a single simulator run may cover.
const MaxDays = 21

// MinDaysInPast is the minimum age, in days, a simulated day's midnight
// must have relative to "now" — recent days may not have complete
// historic forecast coverage yet.
const MinDaysInPast = 4

const step = 5 * time.Minute

// startingSoCs are the four synthetic vehicles stepped through each day.
var startingSoCs = [4]float64{0.10, 0.30, 0.50, 0.70}

// Simulator backtests Policy against an emissions.Provider's historic data.
type Simulator struct {
	Policy     types.Policy
	Emissions  emissions.Provider
	Controller *controller.Controller
}

// New builds a Simulator ready to run days.
func New(policy types.Policy, e emissions.Provider) *Simulator {
	return &Simulator{Policy: policy, Emissions: e, Controller: controller.NewController()}
}

// ValidateDayCount enforces the day-count bound (1 to MaxDays) on a
// backtest run; the recency bound is checked by ValidateStart.
func ValidateDayCount(days int) error {
	if days < 1 {
		return fmt.Errorf("simulator: days must be at least 1, got %d", days)
	}
	if days > MaxDays {
		return fmt.Errorf("simulator: days must be at most %d, got %d", MaxDays, days)
	}
	return nil
}

// ValidateStart enforces that start is at least MinDaysInPast days before
// now.
func ValidateStart(start, now time.Time) error {
	if !start.Before(now.AddDate(0, 0, -MinDaysInPast)) {
		return fmt.Errorf("simulator: start %s must be at least %d days before %s", start, MinDaysInPast, now)
	}
	return nil
}

// RunDay backtests a single day beginning at localMidnight (in the
// policy's zone) and returns one row per 5-minute tick through
// localMidnight + flexChargeHours.
func (s *Simulator) RunDay(ctx context.Context, localMidnight time.Time) ([]csvreport.Row, error) {
	loc, err := s.Policy.Location()
	if err != nil {
		return nil, fmt.Errorf("run day: %w", err)
	}
	start := localMidnight.In(loc)
	end := start.Add(time.Duration(s.Policy.FlexChargeHours) * time.Hour)

	historicMOERs, err := s.Emissions.HistoricMOERs(ctx, s.Policy.Region, start.Add(-2*time.Duration(s.Policy.FlexChargeHours)*time.Hour), ptr(end.Add(time.Hour)))
	if err != nil {
		return nil, fmt.Errorf("run day: historic moers: %w", err)
	}
	historicForecasts, err := s.Emissions.HistoricForecasts(ctx, s.Policy.Region, start, end)
	if err != nil {
		return nil, fmt.Errorf("run day: historic forecasts: %w", err)
	}
	sort.Slice(historicForecasts, func(i, j int) bool {
		return historicForecasts[i].GeneratedAt.Before(historicForecasts[j].GeneratedAt)
	})

	socs := startingSoCs
	var rows []csvreport.Row

	for now := start; now.Before(end); now = now.Add(step) {
		current := currentMOERAt(historicMOERs, now)
		forecast := latestForecastAtOrBefore(historicForecasts, now)

		row := csvreport.Row{
			Time:      now.UTC().Format(time.RFC3339),
			TimeStr:   now.Format("15:04"),
			Emissions: int64(current.Rate * 1000),
		}

		for i, soc := range socs {
			d, err := s.Controller.Decide(ctx, now, soc, s.Policy, historicMOERs, current, forecast)
			if err != nil {
				return nil, fmt.Errorf("run day: decide at %s: %w", now, err)
			}
			if d.Charge {
				socs[i] = stepSoC(soc, s.Policy, step)
			}
			row.SoC[i] = socs[i]
			row.Limit[i] = d.EmissionsLimit
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// stepSoC advances soc by charging at the policy's nominal rate for dt,
// capped at 1.0.
func stepSoC(soc float64, policy types.Policy, dt time.Duration) float64 {
	delta := (policy.ChargeRateKW * dt.Hours()) / policy.CapacityKWh
	next := soc + delta
	if next > 1.0 {
		next = 1.0
	}
	return next
}

// currentMOERAt returns the sample covering t, or the nearest prior
// sample if none covers it exactly. If every sample starts after t it
// returns the earliest one; if history is empty, a zero-rate sample.
func currentMOERAt(h types.History, t time.Time) types.MOER {
	samples := h.Samples()
	idx := sort.Search(len(samples), func(i int) bool { return samples[i].Start.After(t) })
	if idx == 0 {
		if len(samples) > 0 {
			return samples[0]
		}
		return types.MOER{Region: h.Region, Start: t, Rate: 0}
	}
	return samples[idx-1]
}

// latestForecastAtOrBefore returns the forecast with the latest
// GeneratedAt <= t. If every forecast was generated after t it returns the
// earliest one; if there are none, an empty Forecast. forecasts must be
// sorted ascending by GeneratedAt.
func latestForecastAtOrBefore(forecasts []types.Forecast, t time.Time) types.Forecast {
	idx := sort.Search(len(forecasts), func(i int) bool { return forecasts[i].GeneratedAt.After(t) })
	if idx == 0 {
		if len(forecasts) > 0 {
			return forecasts[0]
		}
		return types.Forecast{}
	}
	return forecasts[idx-1]
}

func ptr(t time.Time) *time.Time { return &t }
