// Package goal implements the candidate-deadline model: recurring daily
// SoC goals plus a rolling "flex" goal, and the required-charging-fraction
// computation used to pick which deadline governs a given decision.
package goal

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/evchargectl/evchargectl/pkg/intervals"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// ErrNoActiveGoal indicates the candidate set was empty. Since the flex
// goal is always active, this cannot occur under a valid policy; callers
// should treat it as a logic bug.
var ErrNoActiveGoal = errors.New("goal: no active goal in candidate set")

// Goal is a transient deadline: reach Charge fraction of capacity by Time.
type Goal struct {
	Time   time.Time
	Charge float64
}

// AvailableHours sums the length, in hours, of allowed charging time
// between now and g.Time.
func (g Goal) AvailableHours(policy types.Policy, now time.Time) (float64, error) {
	if !now.Before(g.Time) {
		return 0, nil
	}
	ivs, err := intervals.AllowedTimesDuring(policy, now, g.Time)
	if err != nil {
		return 0, fmt.Errorf("available hours: %w", err)
	}
	var total time.Duration
	for _, iv := range ivs {
		total += iv.Duration()
	}
	return total.Hours(), nil
}

// RequiredFraction is the fraction of remaining allowed time that must be
// spent charging at nominal power to raise soc to g.Charge by g.Time. +Inf if no time is
// available (the goal is infeasible and must dominate goal selection).
func (g Goal) RequiredFraction(policy types.Policy, now time.Time, soc float64) (float64, error) {
	hours, err := g.AvailableHours(policy, now)
	if err != nil {
		return 0, err
	}
	if hours <= 0 {
		return math.Inf(1), nil
	}
	energyNeededKWh := (g.Charge - soc) * policy.CapacityKWh
	hoursNeeded := energyNeededKWh / policy.ChargeRateKW
	return hoursNeeded / hours, nil
}

// Candidates builds the full candidate goal set for a call at now: the
// rolling flex goal, plus every configured daily goal instantiated for
// today and tomorrow in the policy's zone, filtered to those still active
// (Time > now).
func Candidates(policy types.Policy, now time.Time) ([]Goal, error) {
	loc, err := policy.Location()
	if err != nil {
		return nil, fmt.Errorf("goal candidates: %w", err)
	}

	all := make([]Goal, 0, 1+2*len(policy.DailyGoals))

	flexTime := now.Add(time.Duration(policy.FlexChargeHours) * time.Hour)
	all = append(all, Goal{Time: flexTime, Charge: 1.0})

	local := now.In(loc)
	ty, tm, td := local.Date()
	tomorrow := time.Date(ty, tm, td+1, 0, 0, 0, 0, loc)
	ny, nm, nd := tomorrow.Date()

	for _, dg := range policy.DailyGoals {
		all = append(all, Goal{Time: dg.Time.OnDate(ty, tm, td, loc), Charge: dg.Charge})
		all = append(all, Goal{Time: dg.Time.OnDate(ny, nm, nd, loc), Charge: dg.Charge})
	}

	active := make([]Goal, 0, len(all))
	for _, g := range all {
		if g.Time.After(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// scored pairs a candidate goal with its required fraction for selection.
type scored struct {
	goal Goal
	req  float64
}

// Select picks the active candidate goal with the largest required
// fraction, breaking ties by earliest Time then by largest Charge.
func Select(policy types.Policy, now time.Time, soc float64) (Goal, float64, error) {
	candidates, err := Candidates(policy, now)
	if err != nil {
		return Goal{}, 0, err
	}
	if len(candidates) == 0 {
		return Goal{}, 0, ErrNoActiveGoal
	}

	scoredGoals := make([]scored, 0, len(candidates))
	for _, g := range candidates {
		req, err := g.RequiredFraction(policy, now, soc)
		if err != nil {
			return Goal{}, 0, err
		}
		scoredGoals = append(scoredGoals, scored{goal: g, req: req})
	}

	sort.Slice(scoredGoals, func(i, j int) bool {
		a, b := scoredGoals[i], scoredGoals[j]
		if a.req != b.req {
			return a.req > b.req
		}
		if !a.goal.Time.Equal(b.goal.Time) {
			return a.goal.Time.Before(b.goal.Time)
		}
		return a.goal.Charge > b.goal.Charge
	})

	best := scoredGoals[0]
	return best.goal, best.req, nil
}
