package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tillworks/quota/internal/api"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/notify"
	"github.com/tillworks/quota/internal/remote"
	"github.com/tillworks/quota/internal/stores"
	"github.com/tillworks/quota/pkg/client"
)

const (
	e2eScope       = "downtown"
	e2eAPIKey      = "e2e-test-api-key"
	upstreamAPIKey = "e2e-upstream-key"
)

// --- Upstream Platform Stub ---

// upstreamStub simulates the retail-platform API over real HTTP: goal
// listing and creation plus sales totals, with a kill switch for outage
// scenarios.
type upstreamStub struct {
	server *httptest.Server

	mu     sync.Mutex
	goals  []goal.Goal
	totals map[remote.MetricsWindow]float64
	nextID int
	down   bool
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()
	s := &upstreamStub{
		totals: make(map[remote.MetricsWindow]float64),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *upstreamStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+upstreamAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/api/v1/goals":
		s.handleCreate(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/goals"):
		s.handleList(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/sales/totals"):
		s.handleTotals(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *upstreamStub) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in goal.NewGoal
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.nextID++
	g := goal.Goal{
		ID:           fmt.Sprintf("upstream-%03d", s.nextID),
		Track:        in.Track,
		TargetAmount: in.TargetAmount,
		PeriodStart:  in.PeriodStart,
		PeriodEnd:    in.PeriodEnd,
		StoreScope:   in.StoreScope,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	s.goals = append(s.goals, g)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(g)
}

func (s *upstreamStub) handleList(w http.ResponseWriter, r *http.Request) {
	// Path shape: /api/v1/stores/{scope}/goals
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 6 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	scope := parts[4]
	activeOnly := r.URL.Query().Get("active") == "true"

	out := []goal.Goal{}
	for _, g := range s.goals {
		if g.StoreScope != scope {
			continue
		}
		if activeOnly && !g.Active {
			continue
		}
		out = append(out, g)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]goal.Goal{"goals": out})
}

func (s *upstreamStub) handleTotals(w http.ResponseWriter, r *http.Request) {
	window := remote.MetricsWindow(r.URL.Query().Get("window"))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"total_sales": s.totals[window]})
}

// seedGoal plants an upstream goal record directly, bypassing the API.
func (s *upstreamStub) seedGoal(track goal.Track, target float64, start, end time.Time) goal.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	g := goal.Goal{
		ID:           fmt.Sprintf("upstream-%03d", s.nextID),
		Track:        track,
		TargetAmount: target,
		PeriodStart:  &start,
		PeriodEnd:    &end,
		StoreScope:   e2eScope,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	s.goals = append(s.goals, g)
	return g
}

func (s *upstreamStub) setTotals(today, thisMonth float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[remote.WindowToday] = today
	s.totals[remote.WindowThisMonth] = thisMonth
}

func (s *upstreamStub) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *upstreamStub) goalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.goals)
}

func (s *upstreamStub) goalsForTrack(track goal.Track) []goal.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []goal.Goal
	for _, g := range s.goals {
		if g.Track == track {
			out = append(out, g)
		}
	}
	return out
}

// --- Test Clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{t: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// --- Notification Capture ---

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *captureNotifier) Send(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *captureNotifier) notifications() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// --- In-Process Environment ---

// quotaEnv wires the full service in-process: a real scope manager over a
// temp data root, the HTTP API on an httptest server, a remote client
// pointed at the upstream stub, and the SDK as the consumer.
type quotaEnv struct {
	upstream *upstreamStub
	clock    *testClock
	notifier *captureNotifier
	rootPath string

	manager *stores.Manager
	server  *httptest.Server
	client  *client.Client
}

func setupQuotaEnv(t *testing.T) *quotaEnv {
	t.Helper()

	env := &quotaEnv{
		upstream: newUpstreamStub(t),
		clock:    newTestClock(time.Now()),
		notifier: &captureNotifier{},
		rootPath: filepath.Join(t.TempDir(), "scopes"),
	}
	env.start(t)

	if _, err := env.manager.Create(context.Background(), e2eScope, "e2e test scope"); err != nil {
		t.Fatalf("create scope: %v", err)
	}
	return env
}

func (env *quotaEnv) start(t *testing.T) {
	t.Helper()

	remoteClient := remote.NewClient(env.upstream.server.URL, upstreamAPIKey, 5*time.Second)
	manager, err := stores.NewManager(stores.Config{
		RootPath: env.rootPath,
		Goals:    remoteClient,
		Metrics:  remoteClient,
		Notifier: env.notifier,
		Now:      env.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	handler := api.NewHandler(manager, remoteClient, e2eAPIKey, "e2e", false)
	srv := httptest.NewServer(api.NewRouter(handler))

	cli, err := client.New(client.Config{
		BaseURL: srv.URL,
		APIKey:  e2eAPIKey,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	env.manager = manager
	env.server = srv
	env.client = cli

	// Close is idempotent, so cleanup after an explicit restart is safe.
	t.Cleanup(func() {
		srv.Close()
		manager.Close()
	})
}

// restart tears down the server and manager and brings a fresh instance up
// over the same data root, as a process restart would.
func (env *quotaEnv) restart(t *testing.T) {
	t.Helper()
	env.server.Close()
	if err := env.manager.Close(); err != nil {
		t.Fatalf("close manager: %v", err)
	}
	env.start(t)
}

func mustReconcile(t *testing.T, env *quotaEnv) *client.Snapshot {
	t.Helper()
	snap, err := env.client.Reconcile(context.Background(), e2eScope)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	return snap
}
