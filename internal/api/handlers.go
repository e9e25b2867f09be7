package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/engine"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/stores"
	"github.com/tillworks/quota/internal/validation"
)

const (
	// DefaultEventsLimit is the events page size when no limit is given.
	DefaultEventsLimit = 50

	// MaxEventsLimit is the maximum events page size.
	MaxEventsLimit = 500
)

// Handler implements the API handlers.
type Handler struct {
	manager  *stores.Manager
	upstream engine.GoalStore
	apiKey   string
	version  string
	devMode  bool
}

// NewHandler creates a Handler over the scope manager and the upstream
// goal store. In dev mode the API is served unauthenticated.
func NewHandler(manager *stores.Manager, upstream engine.GoalStore, apiKey, version string, devMode bool) *Handler {
	return &Handler{
		manager:  manager,
		upstream: upstream,
		apiKey:   apiKey,
		version:  version,
		devMode:  devMode,
	}
}

// ScopeCtx resolves the {scope} URL parameter to a managed scope handle and
// attaches it to the request context. Unknown or malformed scopes become 404
// problems before any handler runs.
func (h *Handler) ScopeCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := chi.URLParam(r, "scope")
		handle, err := h.manager.Get(r.Context(), scope)
		if err != nil {
			MapEngineError(w, r, err)
			return
		}
		ctx := WithScope(WithHandle(r.Context(), handle), scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Scopes  int    `json:"scopes"`
}

// Health returns the health status. Public, no auth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	infos, err := h.manager.List(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := healthResponse{
		Status:  "healthy",
		Version: h.version,
		Scopes:  len(infos),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type storesResponse struct {
	Stores []stores.Info `json:"stores"`
}

// ListStores handles GET /api/v1/stores
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	infos, err := h.manager.List(r.Context())
	if err != nil {
		slog.Error("scope listing failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if infos == nil {
		infos = []stores.Info{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(storesResponse{Stores: infos})
}

// State handles GET /api/v1/stores/{scope}/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())
	writeSnapshot(w, handle)
}

type createGoalRequest struct {
	Track        goal.Track `json:"track"`
	TargetAmount float64    `json:"target_amount"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
}

// CreateGoal handles POST /api/v1/stores/{scope}/goals. The goal is created
// upstream first; only an upstream-acknowledged goal is applied locally, as
// an explicit override on its track.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())

	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return
	}

	input := goal.NewGoal{
		Track:        req.Track,
		TargetAmount: req.TargetAmount,
		PeriodStart:  req.PeriodStart,
		PeriodEnd:    req.PeriodEnd,
		StoreScope:   handle.Scope,
	}
	if errs := validation.ValidateNewGoal(input); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	// Absent bounds default to the track's current period window.
	if input.PeriodStart == nil && input.PeriodEnd == nil {
		var start, end time.Time
		if input.Track == goal.TrackDaily {
			start, end = goal.DayWindow(time.Now())
		} else {
			start, end = goal.MonthWindow(time.Now())
		}
		input.PeriodStart, input.PeriodEnd = &start, &end
	}

	created, err := h.upstream.CreateGoal(r.Context(), input)
	if err != nil {
		slog.Error("goal creation failed",
			"component", "api",
			"store_scope", handle.Scope,
			"track", string(input.Track),
			"error", err,
		)
		MapEngineError(w, r, err)
		return
	}

	if created.Track == goal.TrackDaily {
		err = handle.Engine.SetDailyGoal(r.Context(), *created)
	} else {
		err = handle.Engine.SetMonthlyGoal(r.Context(), *created)
	}
	if err != nil {
		MapEngineError(w, r, err)
		return
	}

	slog.Info("goal created",
		"component", "api",
		"store_scope", handle.Scope,
		"track", string(created.Track),
		"goal", created.ID,
		"target", created.TargetAmount,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// Reconcile handles POST /api/v1/stores/{scope}/reconcile. It runs one full
// cycle and returns the resulting state; an in-flight cycle yields 409.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())
	if err := handle.Engine.LoadGoals(r.Context()); err != nil {
		MapEngineError(w, r, err)
		return
	}
	writeSnapshot(w, handle)
}

// Progress handles POST /api/v1/stores/{scope}/progress. It refreshes sales
// totals and evaluates achievements against the fresh progress.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())
	if err := handle.Engine.UpdateProgress(r.Context()); err != nil {
		MapEngineError(w, r, err)
		return
	}
	if err := handle.Engine.CheckAchievements(r.Context()); err != nil {
		MapEngineError(w, r, err)
		return
	}
	writeSnapshot(w, handle)
}

// Achievements handles POST /api/v1/stores/{scope}/achievements
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())
	if err := handle.Engine.CheckAchievements(r.Context()); err != nil {
		MapEngineError(w, r, err)
		return
	}
	writeSnapshot(w, handle)
}

// ClearCelebration handles DELETE /api/v1/stores/{scope}/celebration
func (h *Handler) ClearCelebration(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())
	if err := handle.Engine.ClearLastCelebration(); err != nil {
		MapEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventsResponse struct {
	Events []cache.AuditEvent `json:"events"`
}

// Events handles GET /api/v1/stores/{scope}/events?limit=N
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	handle := MustHandleFromContext(r.Context())

	limit := DefaultEventsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "invalid limit parameter: must be an integer")
			return
		}
		if verr := validation.ValidateIntRange("limit", n, 1, MaxEventsLimit); verr != nil {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
			return
		}
		limit = n
	}

	events, err := handle.Cache.RecentEvents(r.Context(), limit)
	if err != nil {
		slog.Error("event listing failed",
			"component", "api",
			"store_scope", handle.Scope,
			"error", err,
		)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if events == nil {
		events = []cache.AuditEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventsResponse{Events: events})
}

func writeSnapshot(w http.ResponseWriter, handle *stores.Handle) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handle.Engine.Snapshot())
}
