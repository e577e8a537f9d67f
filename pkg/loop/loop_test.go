package loop

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evchargectl/evchargectl/pkg/controller"
	"github.com/evchargectl/evchargectl/pkg/emissions"
	"github.com/evchargectl/evchargectl/pkg/metrics"
	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/evchargectl/evchargectl/pkg/vehicle"
)

func testPolicy(t *testing.T) types.Policy {
	t.Helper()
	return types.Policy{
		Region:          "CAISO_PGE",
		Zone:            "America/Los_Angeles",
		AllowedTimes:    []types.AllowedWindow{{Start: types.TimeOfDay{Hour: 0}, End: types.TimeOfDay{Hour: 15}}},
		CapacityKWh:     75,
		ChargeRateKW:    8,
		MaxCharge:       0.85,
		FlexChargeHours: 24,
		DailyGoals:      []types.DailyGoal{{Time: types.TimeOfDay{Hour: 8}, Charge: 0.33}},
	}
}

func TestTickDispatchesChargeStartWhenBelowLimit(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 2, 0, 0, 0, loc)

	v := &vehicle.Mock{
		State:       types.ChargeState{BatteryLevel: 20, ChargingState: "Stopped"},
		StartResult: types.CommandResult{Result: true},
	}
	e := &emissions.Mock{
		MOERValue: types.MOER{Rate: 0.1},
		ForecastValue: types.Forecast{MOERs: []types.MOER{
			{Start: now, Duration: time.Hour, Rate: 0.1},
		}},
		HistoryValue: types.NewHistory("CAISO_PGE", []types.MOER{
			{Start: now.Add(-time.Hour), Duration: time.Hour, Rate: 0.1},
		}),
	}

	gauges := metrics.New()
	l := New(testPolicy(t), v, e, gauges)
	require.NoError(t, l.tick(context.Background(), now))

	assert.Equal(t, 1, v.StartCalls)
	assert.Equal(t, StateCharging, l.state)
	assert.InDelta(t, 0.1, testutil.ToFloat64(gauges.EmissionsMin), 1e-9)
	assert.InDelta(t, 0.1, testutil.ToFloat64(gauges.EmissionsMax), 1e-9)
}

func TestTickOutsideWindowStopsIfCharging(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 20, 0, 0, 0, loc) // outside the 0-15 window

	v := &vehicle.Mock{StopResult: types.CommandResult{Result: true}}
	l := New(testPolicy(t), v, &emissions.Mock{}, nil)
	l.state = StateCharging

	require.NoError(t, l.tick(context.Background(), now))

	assert.Equal(t, 1, v.StopCalls)
	assert.Equal(t, 0, v.WakeCalls)
	assert.Equal(t, 0, v.StateCalls)
	assert.Equal(t, StateStopped, l.state)
}

func TestTickOutsideWindowNoopWhenNotCharging(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 20, 0, 0, 0, loc)

	v := &vehicle.Mock{}
	l := New(testPolicy(t), v, &emissions.Mock{}, nil)
	l.state = StateStopped

	require.NoError(t, l.tick(context.Background(), now))

	assert.Equal(t, 0, v.StopCalls)
	assert.Equal(t, 0, v.WakeCalls)
	assert.Equal(t, StateStopped, l.state)
}

func TestUntilNextTickAlignsToFiveMinuteBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 2, 30, 0, time.UTC)
	d := untilNextTick(now)
	assert.Equal(t, 2*time.Minute+30*time.Second, d)
}

func TestDispatchSkipsRedundantStop(t *testing.T) {
	v := &vehicle.Mock{}
	l := New(testPolicy(t), v, &emissions.Mock{}, nil)
	l.state = StateStopped

	require.NoError(t, l.dispatch(context.Background(), controller.Decision{Charge: false}))
	assert.Equal(t, 0, v.StopCalls)
}

func TestDispatchSkipsRedundantStart(t *testing.T) {
	v := &vehicle.Mock{StartResult: types.CommandResult{Result: true}}
	l := New(testPolicy(t), v, &emissions.Mock{}, nil)
	l.state = StateCharging

	require.NoError(t, l.dispatch(context.Background(), controller.Decision{Charge: true}))
	assert.Equal(t, 0, v.StartCalls)
}
