// Package remote implements the HTTP client for the upstream retail
// platform: goal records and aggregate sales totals. The engine consumes it
// as an opaque service and decides the fallback behavior itself.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tillworks/quota/internal/goal"
)

// Client talks to the upstream platform API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a Client for the given base URL and API key.
// A zero timeout defaults to 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListGoals returns the goals recorded upstream for a store scope.
// An empty slice with a nil error means the upstream genuinely has no goals;
// callers must not confuse that with unavailability.
func (c *Client) ListGoals(ctx context.Context, storeScope string, activeOnly bool) ([]goal.Goal, error) {
	path := "/api/v1/stores/" + url.PathEscape(storeScope) + "/goals"
	if activeOnly {
		path += "?active=true"
	}

	resp, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	var out listGoalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode goals response: %w", err)
	}
	return out.Goals, nil
}

// CreateGoal records a new goal upstream and returns it with its assigned id.
func (c *Client) CreateGoal(ctx context.Context, input goal.NewGoal) (*goal.Goal, error) {
	resp, err := c.sendRequest(ctx, http.MethodPost, "/api/v1/goals", input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	var created goal.Goal
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode created goal: %w", err)
	}
	return &created, nil
}

// Totals returns the aggregate sales total for a store scope and window.
func (c *Client) Totals(ctx context.Context, storeScope string, window MetricsWindow) (float64, error) {
	path := "/api/v1/stores/" + url.PathEscape(storeScope) + "/sales/totals?window=" + string(window)

	resp, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, fmt.Errorf("sales totals: %w", err)
	}

	var out totalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode totals response: %w", err)
	}
	return out.TotalSales, nil
}

// sendRequest sends an authenticated request to the upstream platform.
func (c *Client) sendRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
