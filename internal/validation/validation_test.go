package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/tillworks/quota/internal/goal"
)

// --- ValidateRequired Tests ---

func TestValidateRequired_NonEmpty(t *testing.T) {
	err := ValidateRequired("field", "value")
	if err != nil {
		t.Errorf("ValidateRequired(value) = %v, want nil", err)
	}
}

func TestValidateRequired_Empty(t *testing.T) {
	err := ValidateRequired("track", "")
	if err == nil {
		t.Error("ValidateRequired(empty) = nil, want error")
	}
	if err != nil && err.Field != "track" {
		t.Errorf("error.Field = %q, want %q", err.Field, "track")
	}
}

func TestValidateRequired_WhitespaceOnly(t *testing.T) {
	tests := []string{" ", "   ", "\t", "\n", "  \t\n  "}
	for _, value := range tests {
		t.Run("whitespace", func(t *testing.T) {
			err := ValidateRequired("field", value)
			if err == nil {
				t.Errorf("ValidateRequired(%q) = nil, want error", value)
			}
		})
	}
}

// --- ValidateEnum Tests ---

func TestValidateEnum_Valid(t *testing.T) {
	allowed := []string{"daily", "monthly"}

	for _, track := range allowed {
		t.Run(track, func(t *testing.T) {
			err := ValidateEnum("track", track, allowed)
			if err != nil {
				t.Errorf("ValidateEnum(%q) = %v, want nil", track, err)
			}
		})
	}
}

func TestValidateEnum_Invalid(t *testing.T) {
	allowed := []string{"daily", "monthly"}
	err := ValidateEnum("track", "weekly", allowed)
	if err == nil {
		t.Error("ValidateEnum(invalid) = nil, want error")
	}
	if err != nil && err.Field != "track" {
		t.Errorf("error.Field = %q, want %q", err.Field, "track")
	}
}

func TestValidateEnum_CaseSensitive(t *testing.T) {
	allowed := []string{"daily"}
	err := ValidateEnum("track", "Daily", allowed)
	if err == nil {
		t.Error("ValidateEnum(mixed case) = nil, want error (case sensitive)")
	}
}

// --- ValidatePositive Tests ---

func TestValidatePositive_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"small", 0.01},
		{"typical", 5000},
		{"large", 250000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("target_amount", tt.value)
			if err != nil {
				t.Errorf("ValidatePositive(%v) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidatePositive_Zero(t *testing.T) {
	err := ValidatePositive("target_amount", 0)
	if err == nil {
		t.Error("ValidatePositive(0) = nil, want error")
	}
	if err != nil && err.Field != "target_amount" {
		t.Errorf("error.Field = %q, want %q", err.Field, "target_amount")
	}
}

func TestValidatePositive_Negative(t *testing.T) {
	err := ValidatePositive("target_amount", -500)
	if err == nil {
		t.Error("ValidatePositive(-500) = nil, want error")
	}
}

// --- ValidateIntRange Tests ---

func TestValidateIntRange_Within(t *testing.T) {
	tests := []struct {
		name  string
		value int
	}{
		{"min", 1},
		{"middle", 50},
		{"max", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange("limit", tt.value, 1, 500)
			if err != nil {
				t.Errorf("ValidateIntRange(%d, 1, 500) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidateIntRange_BelowMin(t *testing.T) {
	err := ValidateIntRange("limit", 0, 1, 500)
	if err == nil {
		t.Error("ValidateIntRange(0, 1, 500) = nil, want error")
	}
	if err != nil && err.Field != "limit" {
		t.Errorf("error.Field = %q, want %q", err.Field, "limit")
	}
}

func TestValidateIntRange_AboveMax(t *testing.T) {
	err := ValidateIntRange("limit", 501, 1, 500)
	if err == nil {
		t.Error("ValidateIntRange(501, 1, 500) = nil, want error")
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength_Within(t *testing.T) {
	value := strings.Repeat("a", 100)
	err := ValidateMaxLength("description", value, 256)
	if err != nil {
		t.Errorf("ValidateMaxLength(100 chars, max 256) = %v, want nil", err)
	}
}

func TestValidateMaxLength_AtLimit(t *testing.T) {
	value := strings.Repeat("a", 256)
	err := ValidateMaxLength("description", value, 256)
	if err != nil {
		t.Errorf("ValidateMaxLength(256 chars, max 256) = %v, want nil", err)
	}
}

func TestValidateMaxLength_Exceeds(t *testing.T) {
	value := strings.Repeat("a", 257)
	err := ValidateMaxLength("description", value, 256)
	if err == nil {
		t.Error("ValidateMaxLength(257 chars, max 256) = nil, want error")
	}
	if err != nil && err.Field != "description" {
		t.Errorf("error.Field = %q, want %q", err.Field, "description")
	}
}

func TestValidateMaxLength_MultibyteRunes(t *testing.T) {
	// 256 emoji characters (each 4 bytes in UTF-8, but counts as 1 rune)
	value := strings.Repeat("🎯", 256)
	err := ValidateMaxLength("description", value, 256)
	if err != nil {
		t.Errorf("ValidateMaxLength(256 emoji, max 256) = %v, want nil (counts runes)", err)
	}
}

// --- ValidateNewGoal Tests ---

func validNewGoal() goal.NewGoal {
	return goal.NewGoal{
		Track:        goal.TrackDaily,
		TargetAmount: 5000,
	}
}

func TestValidateNewGoal_Valid(t *testing.T) {
	errs := ValidateNewGoal(validNewGoal())
	if len(errs) != 0 {
		t.Errorf("ValidateNewGoal(valid) = %v, want no errors", errs)
	}
}

func TestValidateNewGoal_ValidWithPeriodBounds(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	g := goal.NewGoal{
		Track:        goal.TrackMonthly,
		TargetAmount: 120000,
		PeriodStart:  &start,
		PeriodEnd:    &end,
	}

	errs := ValidateNewGoal(g)
	if len(errs) != 0 {
		t.Errorf("ValidateNewGoal(valid with bounds) = %v, want no errors", errs)
	}
}

func TestValidateNewGoal_TrackRequired(t *testing.T) {
	g := validNewGoal()
	g.Track = ""

	errs := ValidateNewGoal(g)
	hasTrackError := false
	for _, e := range errs {
		if e.Field == "track" && strings.Contains(e.Message, "required") {
			hasTrackError = true
			break
		}
	}
	if !hasTrackError {
		t.Errorf("ValidateNewGoal(empty track) missing track required error, got: %v", errs)
	}
}

func TestValidateNewGoal_TrackRequired_SingleError(t *testing.T) {
	g := validNewGoal()
	g.Track = ""

	errs := ValidateNewGoal(g)
	trackErrors := 0
	for _, e := range errs {
		if e.Field == "track" {
			trackErrors++
		}
	}
	if trackErrors != 1 {
		t.Errorf("ValidateNewGoal(empty track) = %d track errors, want 1 (required only, not enum too)", trackErrors)
	}
}

func TestValidateNewGoal_UnknownTrack(t *testing.T) {
	g := validNewGoal()
	g.Track = "weekly"

	errs := ValidateNewGoal(g)
	hasEnumError := false
	for _, e := range errs {
		if e.Field == "track" && strings.Contains(e.Message, "must be one of") {
			hasEnumError = true
			break
		}
	}
	if !hasEnumError {
		t.Errorf("ValidateNewGoal(weekly) missing track enum error, got: %v", errs)
	}
}

func TestValidateNewGoal_ZeroTarget(t *testing.T) {
	g := validNewGoal()
	g.TargetAmount = 0

	errs := ValidateNewGoal(g)
	hasTargetError := false
	for _, e := range errs {
		if e.Field == "target_amount" && strings.Contains(e.Message, "greater than zero") {
			hasTargetError = true
			break
		}
	}
	if !hasTargetError {
		t.Errorf("ValidateNewGoal(zero target) missing target error, got: %v", errs)
	}
}

func TestValidateNewGoal_NegativeTarget(t *testing.T) {
	g := validNewGoal()
	g.TargetAmount = -2500

	errs := ValidateNewGoal(g)
	hasTargetError := false
	for _, e := range errs {
		if e.Field == "target_amount" {
			hasTargetError = true
			break
		}
	}
	if !hasTargetError {
		t.Errorf("ValidateNewGoal(negative target) missing target error, got: %v", errs)
	}
}

func TestValidateNewGoal_PeriodStartWithoutEnd(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g := validNewGoal()
	g.PeriodStart = &start

	errs := ValidateNewGoal(g)
	hasPairError := false
	for _, e := range errs {
		if e.Field == "period_end" && strings.Contains(e.Message, "period_start") {
			hasPairError = true
			break
		}
	}
	if !hasPairError {
		t.Errorf("ValidateNewGoal(start without end) missing pair error, got: %v", errs)
	}
}

func TestValidateNewGoal_PeriodEndWithoutStart(t *testing.T) {
	end := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	g := validNewGoal()
	g.PeriodEnd = &end

	errs := ValidateNewGoal(g)
	hasPairError := false
	for _, e := range errs {
		if e.Field == "period_start" && strings.Contains(e.Message, "period_end") {
			hasPairError = true
			break
		}
	}
	if !hasPairError {
		t.Errorf("ValidateNewGoal(end without start) missing pair error, got: %v", errs)
	}
}

func TestValidateNewGoal_PeriodStartAfterEnd(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g := validNewGoal()
	g.PeriodStart = &start
	g.PeriodEnd = &end

	errs := ValidateNewGoal(g)
	hasOrderError := false
	for _, e := range errs {
		if e.Field == "period_start" && strings.Contains(e.Message, "before") {
			hasOrderError = true
			break
		}
	}
	if !hasOrderError {
		t.Errorf("ValidateNewGoal(start after end) missing ordering error, got: %v", errs)
	}
}

func TestValidateNewGoal_PeriodStartEqualsEnd(t *testing.T) {
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	g := validNewGoal()
	g.PeriodStart = &at
	g.PeriodEnd = &at

	errs := ValidateNewGoal(g)
	hasOrderError := false
	for _, e := range errs {
		if e.Field == "period_start" && strings.Contains(e.Message, "before") {
			hasOrderError = true
			break
		}
	}
	if !hasOrderError {
		t.Errorf("ValidateNewGoal(start equals end) missing ordering error, got: %v", errs)
	}
}

func TestValidateNewGoal_AllFieldsInvalid(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	g := goal.NewGoal{
		Track:        "quarterly",
		TargetAmount: -1,
		PeriodStart:  &start,
	}

	errs := ValidateNewGoal(g)
	if len(errs) != 3 {
		t.Errorf("ValidateNewGoal(all invalid) = %d errors, want 3: %v", len(errs), errs)
	}
}
