package emissions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evchargectl/evchargectl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientMOER(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("/moer", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CAISO_PGE", r.URL.Query().Get("region"))
		_ = json.NewEncoder(w).Encode(types.MOER{Region: "CAISO_PGE", Start: now, Rate: 0.25})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewHTTPClient(server.URL, nil)
	m, err := c.MOER(context.Background(), "CAISO_PGE")
	require.NoError(t, err)
	assert.Equal(t, 0.25, m.Rate)
}

func TestHTTPClientHistoricMOERsSorts(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("/historic/moers", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]types.MOER{
			{Start: now.Add(time.Hour), Rate: 0.5},
			{Start: now, Rate: 0.1},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewHTTPClient(server.URL, nil)
	h, err := c.HistoricMOERs(context.Background(), "CAISO_PGE", now, nil)
	require.NoError(t, err)
	require.Equal(t, 2, h.Len())
	assert.True(t, h.Samples()[0].Start.Equal(now))
}

func TestMockReturnsConfiguredValues(t *testing.T) {
	m := &Mock{MOERValue: types.MOER{Rate: 0.3}}
	v, err := m.MOER(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0.3, v.Rate)
}
