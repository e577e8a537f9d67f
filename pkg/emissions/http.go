package emissions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/evchargectl/evchargectl/pkg/common"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// HTTPClient is a minimal emissions-signal provider client against a
// generic JSON endpoint shape (moer/forecast/historic_moers/
// historic_forecasts). The wire protocol of any particular provider is
// explicitly out of scope (spec §1); this client exists so the control
// loop and simulator have a real, non-mock implementation to run against
// when one is configured.
type HTTPClient struct {
	apiURL string
	creds  types.Credentials
	client *http.Client
}

// Configured registers the emissions-api-url flag and returns a client
// whose fields are populated once lflag.Configure runs, following the
// pattern used throughout this codebase's provider packages.
func Configured() *HTTPClient {
	c := &HTTPClient{client: common.HTTPClient(15 * time.Second)}
	apiURL := lflag.String("emissions-api-url", "https://api.example-emissions-signal.com", "URL for the emissions-signal provider API")
	lflag.Do(func() {
		c.apiURL = *apiURL
	})
	return c
}

// NewHTTPClient builds a client directly, bypassing lflag, for tests and
// the simulator where the URL comes from the policy's credentials instead
// of the process flags.
func NewHTTPClient(apiURL string, creds types.Credentials) *HTTPClient {
	return &HTTPClient{apiURL: apiURL, creds: creds, client: common.HTTPClient(15 * time.Second)}
}

// Validate ensures the configured URL is parseable.
func (c *HTTPClient) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("emissions-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse emissions api url (%s): %w", c.apiURL, err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.apiURL + path)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if token := c.creds["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u.String())
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) MOER(ctx context.Context, region string) (types.MOER, error) {
	var out types.MOER
	if err := c.get(ctx, "/moer", url.Values{"region": {region}}, &out); err != nil {
		return types.MOER{}, fmt.Errorf("moer: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) Forecast(ctx context.Context, region string) (types.Forecast, error) {
	var out types.Forecast
	if err := c.get(ctx, "/forecast", url.Values{"region": {region}}, &out); err != nil {
		return types.Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) HistoricMOERs(ctx context.Context, region string, from time.Time, to *time.Time) (types.History, error) {
	q := url.Values{"region": {region}, "from": {from.Format(time.RFC3339)}}
	if to != nil {
		q.Set("to", to.Format(time.RFC3339))
	}
	var out []types.MOER
	if err := c.get(ctx, "/historic/moers", q, &out); err != nil {
		return types.History{}, fmt.Errorf("historic moers: %w", err)
	}
	return types.NewHistory(region, out), nil
}

func (c *HTTPClient) HistoricForecasts(ctx context.Context, region string, from, to time.Time) ([]types.Forecast, error) {
	q := url.Values{"region": {region}, "from": {from.Format(time.RFC3339)}, "to": {to.Format(time.RFC3339)}}
	var out []types.Forecast
	if err := c.get(ctx, "/historic/forecasts", q, &out); err != nil {
		return nil, fmt.Errorf("historic forecasts: %w", err)
	}
	return out, nil
}
