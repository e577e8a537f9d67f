package vehicle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientWakeSucceedsImmediately(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(loginResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/vehicle/state", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(vehicleStateResponse{Online: online.Load()})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewHTTPClient(server.URL, types.Credentials{"username": "u", "password": "p"}, false)
	err := c.Wake(context.Background())
	require.NoError(t, err)
}

func TestHTTPClientChargeStateDecodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(loginResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/vehicle/charge_state", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.ChargeState{BatteryLevel: 42})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewHTTPClient(server.URL, types.Credentials{"username": "u", "password": "p"}, false)
	state, err := c.ChargeState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, state.BatteryLevel)
	assert.InDelta(t, 0.42, state.SoC(), 1e-9)
}

func TestHTTPClientDryRunSkipsCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("dry run should not need to authenticate")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewHTTPClient(server.URL, types.Credentials{"username": "u", "password": "p"}, true)
	result, err := c.ChargeStart(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Result)
}

func TestMockTracksCalls(t *testing.T) {
	m := &Mock{StartResult: types.CommandResult{Result: true}}
	_, err := m.ChargeStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.StartCalls)
}
