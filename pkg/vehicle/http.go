package vehicle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/evchargectl/evchargectl/pkg/common"
	"github.com/evchargectl/evchargectl/pkg/log"
	"github.com/evchargectl/evchargectl/pkg/types"
)

// wakeTimeout is the hard budget for Wake, per SPEC_FULL.md §5.
const wakeTimeout = 60 * time.Second

// HTTPClient is a minimal vehicle API client against a generic JSON
// endpoint shape. The wire protocol of any particular vehicle vendor is
// explicitly out of scope (spec §1); this client exists so the control
// loop has a real, non-mock implementation to run against when one is
// configured.
type HTTPClient struct {
	baseURL string
	creds   types.Credentials
	client  *http.Client
	dryRun  bool

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewHTTPClient returns a client against baseURL, authenticating with
// creds lazily on first use. dryRun skips charge_start/charge_stop side
// effects while still returning a success result, matching the franklin.go
// client's DryRun convention.
func NewHTTPClient(baseURL string, creds types.Credentials, dryRun bool) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		creds:   creds,
		client:  common.HTTPClient(15 * time.Second),
		dryRun:  dryRun,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *HTTPClient) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	resp, err := doRequest[loginResponse](ctx, c.client, http.MethodPost, c.baseURL+"/auth/login", loginRequest{
		Username: c.creds["username"],
		Password: c.creds["password"],
	})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	c.accessToken = resp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type vehicleStateResponse struct {
	Online bool `json:"online"`
}

func (c *HTTPClient) isOnline(ctx context.Context) (bool, error) {
	token, err := c.login(ctx)
	if err != nil {
		return false, err
	}
	resp, err := doRequestAuth[vehicleStateResponse](ctx, c.client, http.MethodGet, c.baseURL+"/vehicle/state", token, nil)
	if err != nil {
		return false, fmt.Errorf("get vehicle state: %w", err)
	}
	return resp.Online, nil
}

// Wake issues repeated wake requests with exponential backoff (start 1s,
// doubling) until the vehicle reports online or wakeTimeout elapses.
func (c *HTTPClient) Wake(ctx context.Context) error {
	deadline := time.Now().Add(wakeTimeout)
	backoff := time.Second

	for {
		online, err := c.isOnline(ctx)
		if err != nil {
			return fmt.Errorf("wake: %w", err)
		}
		if online {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrWakeTimeout
		}

		token, err := c.login(ctx)
		if err != nil {
			return fmt.Errorf("wake: %w", err)
		}
		if _, err := doRequestAuth[struct{}](ctx, c.client, http.MethodPost, c.baseURL+"/vehicle/wake_up", token, nil); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "wake request failed, retrying", slog.Any("error", err))
		}

		remaining := time.Until(deadline)
		wait := backoff
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func (c *HTTPClient) ChargeState(ctx context.Context) (types.ChargeState, error) {
	token, err := c.login(ctx)
	if err != nil {
		return types.ChargeState{}, err
	}
	state, err := doRequestAuth[types.ChargeState](ctx, c.client, http.MethodGet, c.baseURL+"/vehicle/charge_state", token, nil)
	if err != nil {
		return types.ChargeState{}, fmt.Errorf("charge state: %w", err)
	}
	return state, nil
}

func (c *HTTPClient) ChargeStart(ctx context.Context) (types.CommandResult, error) {
	return c.chargeCommand(ctx, "/vehicle/charge_start")
}

func (c *HTTPClient) ChargeStop(ctx context.Context) (types.CommandResult, error) {
	return c.chargeCommand(ctx, "/vehicle/charge_stop")
}

func (c *HTTPClient) chargeCommand(ctx context.Context, path string) (types.CommandResult, error) {
	if c.dryRun {
		log.Ctx(ctx).InfoContext(ctx, "dry run, skipping vehicle command", slog.String("path", path))
		return types.CommandResult{Result: true, Reason: "dry run"}, nil
	}
	token, err := c.login(ctx)
	if err != nil {
		return types.CommandResult{}, err
	}
	result, err := doRequestAuth[types.CommandResult](ctx, c.client, http.MethodPost, c.baseURL+path, token, nil)
	if err != nil {
		return types.CommandResult{}, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

func doRequest[T any](ctx context.Context, client *http.Client, method, url string, body any) (T, error) {
	return doRequestAuth[T](ctx, client, method, url, "", body)
}

func doRequestAuth[T any](ctx context.Context, client *http.Client, method, url, token string, body any) (T, error) {
	var zero T

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if err == io.EOF {
			return zero, nil
		}
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
