package config

import (
	"path/filepath"
	"testing"

	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Default()
	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestValidateRejectsOutOfRangeMaxCharge(t *testing.T) {
	p := Default()
	p.MaxCharge = 1.0
	assert.Error(t, Validate(p))
}

func TestValidateRejectsOverlappingWindows(t *testing.T) {
	p := Default()
	p.AllowedTimes = []types.AllowedWindow{
		{Start: types.TimeOfDay{Hour: 0}, End: types.TimeOfDay{Hour: 10}},
		{Start: types.TimeOfDay{Hour: 5}, End: types.TimeOfDay{Hour: 20}},
	}
	assert.Error(t, Validate(p))
}

func TestValidateRejectsEmptyAllowedTimes(t *testing.T) {
	p := Default()
	p.AllowedTimes = nil
	assert.Error(t, Validate(p))
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	p := Default()
	p.Vehicle = nil
	assert.Error(t, Validate(p))
}
