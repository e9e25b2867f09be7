package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/tillworks/quota/internal/goal"
)

// --- Upstream Outage ---

// TestUpstreamOutage_FallsBackToCache verifies that goals resolved while the
// platform was reachable keep serving from the scope cache during an outage,
// and that the audit trail marks the degraded cycle.
func TestUpstreamOutage_FallsBackToCache(t *testing.T) {
	env := setupQuotaEnv(t)
	ctx := context.Background()

	june10 := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.Local)
	env.clock.Set(june10)

	dayStart, dayEnd := goal.DayWindow(june10)
	monthStart, monthEnd := goal.MonthWindow(june10)
	daily := env.upstream.seedGoal(goal.TrackDaily, 4000, dayStart, dayEnd)
	monthly := env.upstream.seedGoal(goal.TrackMonthly, 80000, monthStart, monthEnd)

	env.upstream.setTotals(1000, 20000)
	snap := mustReconcile(t, env)
	if snap.DailyGoal == nil || snap.DailyGoal.ID != daily.ID {
		t.Fatalf("expected daily goal %s before outage, got %+v", daily.ID, snap.DailyGoal)
	}

	env.upstream.setDown(true)
	snap = mustReconcile(t, env)

	if snap.DailyGoal == nil || snap.DailyGoal.ID != daily.ID {
		t.Fatalf("expected cached daily goal %s during outage, got %+v", daily.ID, snap.DailyGoal)
	}
	if snap.MonthlyGoal == nil || snap.MonthlyGoal.ID != monthly.ID {
		t.Fatalf("expected cached monthly goal %s during outage, got %+v", monthly.ID, snap.MonthlyGoal)
	}
	if snap.Error != "" {
		t.Errorf("expected no snapshot error while cache serves goals, got %q", snap.Error)
	}
	if snap.DailyProgress == nil || snap.DailyProgress.CurrentAmount != 1000 {
		t.Fatalf("expected previous progress retained through outage, got %+v", snap.DailyProgress)
	}

	events, err := env.client.Events(ctx, e2eScope, 1)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != "reconcile" {
		t.Fatalf("expected latest event to be a reconcile, got %+v", events)
	}
	var detail struct {
		Fallback bool `json:"fallback"`
	}
	if err := json.Unmarshal(events[0].Detail, &detail); err != nil {
		t.Fatalf("decode event detail: %v", err)
	}
	if !detail.Fallback {
		t.Error("expected the outage reconcile to be marked as a fallback")
	}
}

func TestUpstreamOutage_NoCachedGoals(t *testing.T) {
	env := setupQuotaEnv(t)

	env.upstream.setDown(true)
	snap := mustReconcile(t, env)

	if snap.DailyGoal != nil || snap.MonthlyGoal != nil {
		t.Errorf("expected no goals with upstream down and an empty cache, got %+v / %+v",
			snap.DailyGoal, snap.MonthlyGoal)
	}
	if snap.Error == "" {
		t.Error("expected snapshot error when no track can be resolved")
	}
}

// --- Restart ---

// TestRestartRetainsCachedGoals verifies the per-scope cache database
// carries goal state across a service restart, even into an outage.
func TestRestartRetainsCachedGoals(t *testing.T) {
	env := setupQuotaEnv(t)

	june10 := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.Local)
	env.clock.Set(june10)

	dayStart, dayEnd := goal.DayWindow(june10)
	monthStart, monthEnd := goal.MonthWindow(june10)
	daily := env.upstream.seedGoal(goal.TrackDaily, 4000, dayStart, dayEnd)
	monthly := env.upstream.seedGoal(goal.TrackMonthly, 80000, monthStart, monthEnd)

	env.upstream.setTotals(500, 10000)
	mustReconcile(t, env)

	env.restart(t)
	env.upstream.setDown(true)

	snap := mustReconcile(t, env)
	if snap.DailyGoal == nil || snap.DailyGoal.ID != daily.ID {
		t.Fatalf("expected daily goal %s after restart, got %+v", daily.ID, snap.DailyGoal)
	}
	if snap.MonthlyGoal == nil || snap.MonthlyGoal.ID != monthly.ID {
		t.Fatalf("expected monthly goal %s after restart, got %+v", monthly.ID, snap.MonthlyGoal)
	}
	if snap.Error != "" {
		t.Errorf("expected no snapshot error, got %q", snap.Error)
	}
}

// TestRestartKeepsCelebrationMarker verifies a celebrated period stays
// celebrated across a restart: the marker lives in the cache, not in memory.
func TestRestartKeepsCelebrationMarker(t *testing.T) {
	env := setupQuotaEnv(t)
	ctx := context.Background()

	june10 := time.Date(2026, time.June, 10, 16, 0, 0, 0, time.Local)
	env.clock.Set(june10)

	dayStart, dayEnd := goal.DayWindow(june10)
	env.upstream.seedGoal(goal.TrackDaily, 4000, dayStart, dayEnd)

	env.upstream.setTotals(4200, 0)
	snap := mustReconcile(t, env)
	if snap.LastCelebration == nil {
		t.Fatal("expected a celebration before restart")
	}
	if err := env.client.ClearCelebration(ctx, e2eScope); err != nil {
		t.Fatalf("ClearCelebration() error = %v", err)
	}

	env.restart(t)

	snap = mustReconcile(t, env)
	if snap.LastCelebration != nil {
		t.Errorf("expected no re-celebration after restart, got %+v", snap.LastCelebration)
	}
	if got := len(env.notifier.notifications()); got != 1 {
		t.Errorf("expected a single notification across the restart, got %d", got)
	}
}
