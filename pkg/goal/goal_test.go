package goal

import (
	"math"
	"testing"
	"time"

	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPolicy() types.Policy {
	return types.Policy{
		Zone: "America/Los_Angeles",
		AllowedTimes: []types.AllowedWindow{
			{Start: types.TimeOfDay{Hour: 0}, End: types.TimeOfDay{Hour: 15}},
		},
		CapacityKWh:     75,
		ChargeRateKW:    8,
		MaxCharge:       0.85,
		FlexChargeHours: 24,
		DailyGoals: []types.DailyGoal{
			{Time: types.TimeOfDay{Hour: 8}, Charge: 0.33},
			{Time: types.TimeOfDay{Hour: 15}, Charge: 0.66},
		},
	}
}

func mustLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestCandidatesAlwaysIncludesFlex(t *testing.T) {
	policy := defaultPolicy()
	loc := mustLoc(t)
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, loc)

	candidates, err := Candidates(policy, now)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	foundFlex := false
	for _, g := range candidates {
		if g.Charge == 1.0 {
			foundFlex = true
			assert.True(t, g.Time.Equal(now.Add(24*time.Hour)))
		}
	}
	assert.True(t, foundFlex, "flex goal must always be a candidate")
}

func TestRequiredFractionInfeasibleIsInf(t *testing.T) {
	policy := defaultPolicy()
	loc := mustLoc(t)
	// 16:00-17:00 lies entirely outside the 00:00-15:00 allowed window, so
	// the goal has zero available hours.
	now := time.Date(2026, 3, 10, 16, 0, 0, 0, loc)
	g := Goal{Time: now.Add(time.Hour), Charge: 0.9}

	req, err := g.RequiredFraction(policy, now, 0.1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(req))
	assert.True(t, math.IsInf(req, 1))
}

func TestSelectPrefersMostConstrainedGoal(t *testing.T) {
	policy := defaultPolicy()
	loc := mustLoc(t)
	// 07:30, soc 0.10: the 08:00/0.33 goal has only 30 minutes available
	// and a large required fraction; it must dominate flex.
	now := time.Date(2026, 3, 10, 7, 30, 0, 0, loc)

	g, req, err := Select(policy, now, 0.10)
	require.NoError(t, err)
	assert.Greater(t, req, 1.0)
	assert.Equal(t, 0.33, g.Charge)
}

func TestSelectFlexWhenNoDailyGoals(t *testing.T) {
	policy := defaultPolicy()
	policy.DailyGoals = nil // the flex goal is the only candidate
	loc := mustLoc(t)
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, loc)

	g, _, err := Select(policy, now, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.Charge)
}
