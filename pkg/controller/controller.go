// Package controller implements the pure decision engine: given a policy,
// the current instant and state of charge, and the emissions signal
// (history, current reading, forecast), it decides whether the vehicle
// should be charging right now and what emissions-rate limit governed the
// decision.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evchargectl/evchargectl/pkg/goal"
	"github.com/evchargectl/evchargectl/pkg/histogram"
	"github.com/evchargectl/evchargectl/pkg/intervals"
	"github.com/evchargectl/evchargectl/pkg/log"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// SentinelEmissionsLimit is returned when no meaningful limit was computed
// (charging is not permitted at all, or SoC already meets the ceiling).
// Callers must treat it as "no limit", not as an attainable rate.
const SentinelEmissionsLimit int64 = 0

// Decision is the per-tick output of the engine.
type Decision struct {
	Charge           bool
	EmissionsLimit   int64
	Goal             goal.Goal
	RequiredFraction float64
	Quantiles        Quantiles
}

// Quantiles is the emissions-rate distribution Decide built its limit
// from, in integer grams CO2/kWh. Zero-valued when Decide short-circuited
// before building a histogram (outside the allowed window, or soc already
// at policy.MaxCharge).
type Quantiles struct {
	Min, Q10, Q25, Q50, Q75, Q90, Max int64
}

func quantilesOf(h *histogram.Histogram) Quantiles {
	return Quantiles{
		Min: h.ValueAtQuantile(0),
		Q10: h.ValueAtQuantile(.10),
		Q25: h.ValueAtQuantile(.25),
		Q50: h.ValueAtQuantile(.50),
		Q75: h.ValueAtQuantile(.75),
		Q90: h.ValueAtQuantile(.90),
		Max: h.ValueAtQuantile(1),
	}
}

// Controller is stateless; it holds no fields because the engine is a
// pure function of its call arguments. It exists as a type so callers have
// a consistent handle to construct once and reuse, matching the rest of
// this codebase's provider-style packages.
type Controller struct{}

// NewController returns a ready-to-use Controller.
func NewController() *Controller {
	return &Controller{}
}

// Decide implements spec §4.4. now and policy determine allowed windows;
// soc is the vehicle's current state of charge in [0, 1]; history and
// forecast feed the emissions-rate histogram; current is the live MOER
// reading.
func (c *Controller) Decide(
	ctx context.Context,
	now time.Time,
	soc float64,
	policy types.Policy,
	history types.History,
	current types.MOER,
	forecast types.Forecast,
) (Decision, error) {
	allowed, err := intervals.AllowedAt(policy, now)
	if err != nil {
		return Decision{}, fmt.Errorf("decide: %w", err)
	}
	if !allowed {
		log.Ctx(ctx).DebugContext(ctx, "outside allowed window, no charge", slog.Time("now", now))
		return Decision{Charge: false, EmissionsLimit: SentinelEmissionsLimit}, nil
	}
	if soc >= policy.MaxCharge {
		log.Ctx(ctx).DebugContext(ctx, "soc at or above max charge, no charge",
			slog.Float64("soc", soc), slog.Float64("maxCharge", policy.MaxCharge))
		return Decision{Charge: false, EmissionsLimit: SentinelEmissionsLimit}, nil
	}

	g, req, err := goal.Select(policy, now, soc)
	if err != nil {
		if errors.Is(err, goal.ErrNoActiveGoal) {
			// The flex goal is always active under a valid policy; an empty
			// candidate set means an invariant was violated upstream.
			panic(fmt.Errorf("decide: %w", err))
		}
		return Decision{}, fmt.Errorf("decide: select goal: %w", err)
	}

	lookahead, err := intervals.AllowedTimesDuring(policy, now, g.Time)
	if err != nil {
		return Decision{}, fmt.Errorf("decide: lookahead: %w", err)
	}

	// Symmetric lookback: see SPEC_FULL.md §4 for why this policy was
	// chosen over the day-shifted alternative.
	lookbackStart := now.Add(-2 * time.Duration(policy.FlexChargeHours) * time.Hour)
	lookback, err := intervals.AllowedTimesDuring(policy, lookbackStart, now)
	if err != nil {
		return Decision{}, fmt.Errorf("decide: lookback: %w", err)
	}

	h, err := histogram.HistogramOver(history.Samples(), lookback)
	if err != nil {
		return Decision{}, fmt.Errorf("decide: history histogram: %w", err)
	}
	forecastHist, err := histogram.HistogramOver(forecast.MOERs, lookahead)
	if err != nil {
		return Decision{}, fmt.Errorf("decide: forecast histogram: %w", err)
	}
	h.Add(forecastHist)

	currentRate := histogram.RateToGrams(current.Rate)
	if err := h.Record(currentRate); err != nil {
		return Decision{}, fmt.Errorf("decide: seed current rate: %w", err)
	}

	clampedReq := req
	if clampedReq < 0 {
		clampedReq = 0
	}
	if clampedReq > 1 {
		clampedReq = 1
	}
	limit := h.ValueAtQuantile(clampedReq)
	charge := currentRate <= limit

	log.Ctx(ctx).InfoContext(ctx, "decision",
		slog.Time("now", now),
		slog.Float64("soc", soc),
		slog.Float64("requiredFraction", req),
		slog.Time("goalTime", g.Time),
		slog.Float64("goalCharge", g.Charge),
		slog.Int64("currentRate", currentRate),
		slog.Int64("emissionsLimit", limit),
		slog.Bool("charge", charge),
	)

	return Decision{
		Charge:           charge,
		EmissionsLimit:   limit,
		Goal:             g,
		RequiredFraction: req,
		Quantiles:        quantilesOf(h),
	}, nil
}
