// Package config loads and saves the plain-text policy-and-credentials
// document consumed by cmd/evchargectl, and validates it against the
// invariants in SPEC_FULL.md §3.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// Default returns the out-of-the-box policy written by `generate-config`.
// Values match the worked scenarios in SPEC_FULL.md §8, ported from
// original_source/src/config.rs's Charging::default().
func Default() types.Policy {
	return types.Policy{
		Region: "CAISO_PGE",
		Zone:   "America/Los_Angeles",
		AllowedTimes: []types.AllowedWindow{
			{Start: types.TimeOfDay{Hour: 0, Minute: 0}, End: types.TimeOfDay{Hour: 15, Minute: 0}},
		},
		CapacityKWh:     75,
		ChargeRateKW:    8,
		MaxCharge:       0.85,
		FlexChargeHours: 24,
		DailyGoals: []types.DailyGoal{
			{Time: types.TimeOfDay{Hour: 8, Minute: 0}, Charge: 0.33},
			{Time: types.TimeOfDay{Hour: 15, Minute: 0}, Charge: 0.66},
		},
		Vehicle: types.Credentials{
			"baseUrl":  "https://api.example-vehicle.com",
			"username": "your_vehicle_username",
			"password": "your_vehicle_password",
		},
		Emissions: types.Credentials{
			"apiUrl":   "https://api.example-emissions-signal.com",
			"username": "your_emissions_username",
			"password": "your_emissions_password",
		},
	}
}

// Validate checks policy p against the invariants in SPEC_FULL.md §3,
// ported from original_source/src/config.rs's Validate impl.
func Validate(p types.Policy) error {
	if p.MaxCharge < 0.0 || p.MaxCharge >= 1.0 {
		return fmt.Errorf("max_charge %v must be in range [0.0, 1.0)", p.MaxCharge)
	}
	if p.FlexChargeHours < 0 || p.FlexChargeHours >= 7*24 {
		return fmt.Errorf("flex_charge_hours %d must be in range [0, %d)", p.FlexChargeHours, 7*24)
	}
	for _, g := range p.DailyGoals {
		if g.Charge < 0.0 || g.Charge >= 1.0 {
			return fmt.Errorf("goal charge %v must be in range [0.0, 1.0)", g.Charge)
		}
	}
	if len(p.AllowedTimes) == 0 {
		return errors.New("must specify at least one allowed charging time")
	}
	for _, w := range p.AllowedTimes {
		if !w.Start.Before(w.End) {
			return fmt.Errorf("specified charging time with start %s >= end %s", w.Start, w.End)
		}
	}
	for i := 1; i < len(p.AllowedTimes); i++ {
		prevEnd := p.AllowedTimes[i-1].End
		nextStart := p.AllowedTimes[i].Start
		if !prevEnd.Before(nextStart) {
			return fmt.Errorf("charging times must be nonoverlapping and sorted, but prev_end %s >= next_start %s", prevEnd, nextStart)
		}
	}
	if _, err := p.Location(); err != nil {
		return fmt.Errorf("invalid zone: %w", err)
	}
	if len(p.Vehicle) == 0 {
		return errors.New("vehicle credentials must be set")
	}
	if len(p.Emissions) == 0 {
		return errors.New("emissions credentials must be set")
	}
	return nil
}

// Load reads and parses the policy document at path.
func Load(path string) (types.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Policy{}, fmt.Errorf("read config: %w", err)
	}
	var p types.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Policy{}, fmt.Errorf("parse config: %w", err)
	}
	return p, nil
}

// Save serializes p and writes it to path.
func Save(path string, p types.Policy) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
