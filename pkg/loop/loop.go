// Package loop runs the live 5-minute control loop: each tick it fetches
// vehicle and emissions state, asks pkg/controller for a decision, and
// dispatches charge start/stop commands. It is the only place in this
// codebase where decide() results cause a side effect; pkg/controller
// itself stays pure (spec §9).
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evchargectl/evchargectl/pkg/controller"
	"github.com/evchargectl/evchargectl/pkg/emissions"
	"github.com/evchargectl/evchargectl/pkg/intervals"
	"github.com/evchargectl/evchargectl/pkg/log"
	"github.com/evchargectl/evchargectl/pkg/metrics"
	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/evchargectl/evchargectl/pkg/vehicle"
)

const tickInterval = 5 * time.Minute

// VehicleState is the loop's last known view of the vehicle, used to skip
// redundant start/stop commands; it never feeds back into Decide, which
// stays a pure function of policy, time, SoC and the emissions signal.
type VehicleState int

const (
	StateSleeping VehicleState = iota
	StateOnline
	StateCharging
	StateStopped
)

func (s VehicleState) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateOnline:
		return "online"
	case StateCharging:
		return "charging"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop wires the vehicle client, emissions provider and controller
// together into the live per-tick decision cycle.
type Loop struct {
	Policy     types.Policy
	Vehicle    vehicle.Client
	Emissions  emissions.Provider
	Controller *controller.Controller
	Gauges     *metrics.Gauges // optional; nil disables metric recording

	state VehicleState
}

// New builds a Loop ready to Run.
func New(policy types.Policy, v vehicle.Client, e emissions.Provider, g *metrics.Gauges) *Loop {
	return &Loop{
		Policy:     policy,
		Vehicle:    v,
		Emissions:  e,
		Controller: controller.NewController(),
		Gauges:     g,
		state:      StateSleeping,
	}
}

// Run ticks every 5 minutes, aligned to wall-clock boundaries, until ctx
// is canceled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		wait := untilNextTick(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case now := <-timer.C:
			if err := l.tick(ctx, now); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "tick failed", slog.Any("error", err))
			}
		}
	}
}

// untilNextTick returns the duration until the next 5-minute wall-clock
// boundary after now.
func untilNextTick(now time.Time) time.Duration {
	secs := now.Unix()
	rem := tickInterval.Seconds() - float64(secs%int64(tickInterval.Seconds()))
	return time.Duration(rem) * time.Second
}

// tick runs a single decision cycle. Outside the policy's allowed window
// it skips step 3's fetch entirely (spec.md §4.5 step 2): it only stops a
// charge already believed in progress, then returns. Inside the window it
// fetches vehicle and emissions state concurrently, decides, dispatches,
// and records metrics.
func (l *Loop) tick(ctx context.Context, now time.Time) error {
	allowed, err := intervals.AllowedAt(l.Policy, now)
	if err != nil {
		return fmt.Errorf("tick: allowed at: %w", err)
	}
	if !allowed {
		return l.stopIfCharging(ctx)
	}

	var (
		chargeState types.ChargeState
		current     types.MOER
		forecast    types.Forecast
		history     types.History
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := l.Vehicle.Wake(gctx); err != nil {
			if errors.Is(err, vehicle.ErrWakeTimeout) {
				l.state = StateSleeping
				return fmt.Errorf("tick: vehicle did not wake: %w", err)
			}
			return fmt.Errorf("tick: wake: %w", err)
		}
		l.state = StateOnline
		cs, err := l.Vehicle.ChargeState(gctx)
		if err != nil {
			return fmt.Errorf("tick: charge state: %w", err)
		}
		chargeState = cs
		return nil
	})
	g.Go(func() error {
		c, err := l.Emissions.MOER(gctx, l.Policy.Region)
		if err != nil {
			return fmt.Errorf("tick: moer: %w", err)
		}
		current = c
		return nil
	})
	g.Go(func() error {
		f, err := l.Emissions.Forecast(gctx, l.Policy.Region)
		if err != nil {
			return fmt.Errorf("tick: forecast: %w", err)
		}
		forecast = f
		return nil
	})
	g.Go(func() error {
		lookbackStart := now.Add(-2 * time.Duration(l.Policy.FlexChargeHours) * time.Hour)
		h, err := l.Emissions.HistoricMOERs(gctx, l.Policy.Region, lookbackStart, &now)
		if err != nil {
			return fmt.Errorf("tick: historic moers: %w", err)
		}
		history = h
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	soc := chargeState.SoC()
	decision, err := l.Controller.Decide(ctx, now, soc, l.Policy, history, current, forecast)
	if err != nil {
		return fmt.Errorf("tick: decide: %w", err)
	}

	if err := l.dispatch(ctx, decision); err != nil {
		return fmt.Errorf("tick: dispatch: %w", err)
	}

	l.recordMetrics(decision, soc, now, current)
	return nil
}

// stopIfCharging is the outside-allowed-window branch of spec.md §4.5
// step 2: if the vehicle is believed to be charging, stop it; otherwise
// do nothing. It never wakes the vehicle or touches the emissions signal.
func (l *Loop) stopIfCharging(ctx context.Context) error {
	if l.state != StateCharging {
		return nil
	}
	res, err := l.Vehicle.ChargeStop(ctx)
	if err != nil {
		return fmt.Errorf("tick: charge stop outside allowed window: %w", err)
	}
	if !res.Result {
		return fmt.Errorf("tick: charge stop outside allowed window rejected: %s", res.Reason)
	}
	l.state = StateStopped
	return nil
}

// dispatch issues the vehicle command implied by decision, relative to
// the tracked vehicle state, so it does not send redundant commands.
func (l *Loop) dispatch(ctx context.Context, decision controller.Decision) error {
	if decision.Charge {
		if l.state == StateCharging {
			return nil
		}
		res, err := l.Vehicle.ChargeStart(ctx)
		if err != nil {
			return fmt.Errorf("charge start: %w", err)
		}
		if !res.Result {
			return fmt.Errorf("charge start rejected: %s", res.Reason)
		}
		l.state = StateCharging
		return nil
	}

	if l.state == StateStopped || l.state == StateSleeping {
		return nil
	}
	res, err := l.Vehicle.ChargeStop(ctx)
	if err != nil {
		return fmt.Errorf("charge stop: %w", err)
	}
	if !res.Result {
		return fmt.Errorf("charge stop rejected: %s", res.Reason)
	}
	l.state = StateStopped
	return nil
}

func (l *Loop) recordMetrics(decision controller.Decision, soc float64, now time.Time, current types.MOER) {
	if l.Gauges == nil {
		return
	}
	l.Gauges.VehicleSoC.Set(soc)
	l.Gauges.ChargeGoal.Set(decision.Goal.Charge)
	l.Gauges.ChargeRequiredProportion.Set(decision.RequiredFraction)
	if hours, err := decision.Goal.AvailableHours(l.Policy, now); err == nil {
		l.Gauges.ChargeAvailableHours.Set(hours)
	}
	l.Gauges.EmissionsCurrent.Set(current.Rate)
	l.Gauges.EmissionsLimit.Set(float64(decision.EmissionsLimit) / 1000.0)
	q := decision.Quantiles
	l.Gauges.RecordQuantiles(q.Min, q.Q10, q.Q25, q.Q50, q.Q75, q.Q90, q.Max)
	if decision.Charge {
		l.Gauges.ChargeState.Set(1)
	} else {
		l.Gauges.ChargeState.Set(0)
	}
}
