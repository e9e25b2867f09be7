package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnauthorized indicates the API key was missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested scope or resource does not exist.
	ErrNotFound = errors.New("not found")
)

// Client talks to a Quota service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a Client from config.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Health returns the service health summary. Works without an API key.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}

	var out Health
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &out, nil
}

// ListStores returns all provisioned store scopes.
func (c *Client) ListStores(ctx context.Context) ([]StoreInfo, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, "/api/v1/stores", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var out struct {
		Stores []StoreInfo `json:"stores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stores response: %w", err)
	}
	return out.Stores, nil
}

// State returns the current engine snapshot for a scope.
func (c *Client) State(ctx context.Context, scope string) (*Snapshot, error) {
	return c.snapshotRequest(ctx, http.MethodGet, c.scopePath(scope, "state"), "state")
}

// CreateGoal records a goal upstream and applies it immediately as an
// explicit override on the scope's engine.
func (c *Client) CreateGoal(ctx context.Context, scope string, params CreateGoalParams) (*Goal, error) {
	resp, err := c.sendRequest(ctx, http.MethodPost, c.scopePath(scope, "goals"), params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	var created Goal
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode created goal: %w", err)
	}
	return &created, nil
}

// Reconcile runs a full reconciliation cycle for a scope and returns the
// resulting snapshot. A cycle already in flight yields a conflict error.
func (c *Client) Reconcile(ctx context.Context, scope string) (*Snapshot, error) {
	return c.snapshotRequest(ctx, http.MethodPost, c.scopePath(scope, "reconcile"), "reconcile")
}

// RefreshProgress re-queries sales totals for the scope's current goals and
// returns the updated snapshot.
func (c *Client) RefreshProgress(ctx context.Context, scope string) (*Snapshot, error) {
	return c.snapshotRequest(ctx, http.MethodPost, c.scopePath(scope, "progress"), "progress")
}

// CheckAchievements evaluates achievement state without refreshing totals.
func (c *Client) CheckAchievements(ctx context.Context, scope string) (*Snapshot, error) {
	return c.snapshotRequest(ctx, http.MethodPost, c.scopePath(scope, "achievements"), "achievements")
}

// ClearCelebration dismisses the scope's pending celebration, if any.
func (c *Client) ClearCelebration(ctx context.Context, scope string) error {
	resp, err := c.sendRequest(ctx, http.MethodDelete, c.scopePath(scope, "celebration"), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("clear celebration: %w", err)
	}
	return nil
}

// Events returns the scope's most recent audit events, newest first.
// A non-positive limit uses the server default.
func (c *Client) Events(ctx context.Context, scope string, limit int) ([]AuditEvent, error) {
	path := c.scopePath(scope, "events")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var out struct {
		Events []AuditEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}
	return out.Events, nil
}

func (c *Client) scopePath(scope, suffix string) string {
	return "/api/v1/stores/" + url.PathEscape(scope) + "/" + suffix
}

func (c *Client) snapshotRequest(ctx context.Context, method, path, op string) (*Snapshot, error) {
	resp, err := c.sendRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

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

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

// decodeProblem extracts the detail from an RFC 7807 problem body, falling
// back to the HTTP status text.
func decodeProblem(resp *http.Response) string {
	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil || p.Detail == "" {
		return http.StatusText(resp.StatusCode)
	}
	return p.Detail
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, decodeProblem(resp))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, decodeProblem(resp))
	default:
		return fmt.Errorf("%s (status %d)", decodeProblem(resp), resp.StatusCode)
	}
}
