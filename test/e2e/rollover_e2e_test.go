package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/tillworks/quota/internal/goal"
)

// TestMonthRollover_CarryOverAndDerivation drives the first-of-month cycle:
// May's monthly goal is carried into June at the same target, and June 1st's
// daily goal is derived by spreading that target over the 30 days remaining.
func TestMonthRollover_CarryOverAndDerivation(t *testing.T) {
	env := setupQuotaEnv(t)
	ctx := context.Background()

	june1 := time.Date(2026, time.June, 1, 8, 30, 0, 0, time.Local)
	env.clock.Set(june1)

	mayStart, mayEnd := goal.MonthWindow(time.Date(2026, time.May, 15, 0, 0, 0, 0, time.Local))
	mayGoal := env.upstream.seedGoal(goal.TrackMonthly, 45000, mayStart, mayEnd)

	env.upstream.setTotals(0, 0)
	snap := mustReconcile(t, env)

	if snap.MonthlyGoal == nil {
		t.Fatal("expected a carried monthly goal")
	}
	if snap.MonthlyGoal.ID == mayGoal.ID {
		t.Error("expected a fresh goal record, not May's")
	}
	if snap.MonthlyGoal.TargetAmount != 45000 {
		t.Errorf("expected carried target 45000, got %v", snap.MonthlyGoal.TargetAmount)
	}
	if snap.MonthlyGoal.PeriodStart == nil || snap.MonthlyGoal.PeriodEnd == nil {
		t.Fatal("expected the carried goal to span the full June window")
	}
	if got := *snap.MonthlyGoal.PeriodStart; got.Month() != time.June || got.Day() != 1 {
		t.Errorf("expected period start June 1, got %v", got)
	}
	if got := *snap.MonthlyGoal.PeriodEnd; got.Month() != time.June || got.Day() != 30 {
		t.Errorf("expected period end June 30, got %v", got)
	}

	if snap.DailyGoal == nil {
		t.Fatal("expected a derived daily goal")
	}
	// ceil(45000/30) = 1500.
	if snap.DailyGoal.TargetAmount != 1500 {
		t.Errorf("expected derived daily target 1500, got %v", snap.DailyGoal.TargetAmount)
	}

	// May's record plus the carried monthly and the derived daily.
	if got := env.upstream.goalCount(); got != 3 {
		t.Errorf("expected 3 upstream goals after carry-over, got %d", got)
	}

	if snap.MonthlyProgress == nil || snap.MonthlyProgress.Percentage != 0 {
		t.Fatalf("expected fresh month at 0%%, got %+v", snap.MonthlyProgress)
	}

	events, err := env.client.Events(ctx, e2eScope, 0)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	kinds := make(map[string]bool)
	for _, e := range events {
		kinds[e.Kind] = true
	}
	if !kinds["carry_over"] {
		t.Errorf("expected carry_over event, got kinds %v", kinds)
	}
	if !kinds["derive_daily"] {
		t.Errorf("expected derive_daily event, got kinds %v", kinds)
	}

	// A second cycle resolves both tracks from the upstream listing and
	// creates nothing new.
	carried := snap.MonthlyGoal.ID
	snap = mustReconcile(t, env)
	if snap.MonthlyGoal == nil || snap.MonthlyGoal.ID != carried {
		t.Fatalf("expected second cycle to reuse goal %s, got %+v", carried, snap.MonthlyGoal)
	}
	if got := env.upstream.goalCount(); got != 3 {
		t.Errorf("expected no extra goals on the second cycle, got %d", got)
	}
}

// TestMonthRollover_SkipsCarryOverMidMonth pins the clock to June 2nd: the
// carry-over is gated to the first of the month, so an expired May goal
// leaves both tracks unresolved.
func TestMonthRollover_SkipsCarryOverMidMonth(t *testing.T) {
	env := setupQuotaEnv(t)

	june2 := time.Date(2026, time.June, 2, 8, 30, 0, 0, time.Local)
	env.clock.Set(june2)

	mayStart, mayEnd := goal.MonthWindow(time.Date(2026, time.May, 15, 0, 0, 0, 0, time.Local))
	env.upstream.seedGoal(goal.TrackMonthly, 45000, mayStart, mayEnd)

	env.upstream.setTotals(0, 0)
	snap := mustReconcile(t, env)

	if snap.MonthlyGoal != nil {
		t.Errorf("expected no monthly goal on June 2, got %+v", snap.MonthlyGoal)
	}
	if snap.DailyGoal != nil {
		t.Errorf("expected no derived daily goal without a monthly, got %+v", snap.DailyGoal)
	}
	if got := env.upstream.goalCount(); got != 1 {
		t.Errorf("expected upstream untouched, got %d goals", got)
	}
	// The listing itself succeeded; an empty result is not an error.
	if snap.Error != "" {
		t.Errorf("expected no snapshot error, got %q", snap.Error)
	}
}
