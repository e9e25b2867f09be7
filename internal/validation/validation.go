package validation

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tillworks/quota/internal/goal"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func fieldError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return fieldError(field, "is required")
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fieldError(field, "must be one of: %s", strings.Join(allowed, ", "))
}

// ValidatePositive returns an error if the value is not strictly greater
// than zero.
func ValidatePositive(field string, value float64) *ValidationError {
	if value > 0 {
		return nil
	}
	return fieldError(field, "must be greater than zero")
}

// ValidateIntRange returns an error if the value is outside [min, max].
func ValidateIntRange(field string, value, min, max int) *ValidationError {
	if value >= min && value <= max {
		return nil
	}
	return fieldError(field, "must be between %d and %d", min, max)
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) <= max {
		return nil
	}
	return fieldError(field, "exceeds maximum length of %d characters", max)
}

// ValidateNewGoal validates a goal creation request. All field failures are
// reported at once so callers can surface the complete list in a single
// response.
func ValidateNewGoal(g goal.NewGoal) []ValidationError {
	var errs []ValidationError
	add := func(err *ValidationError) {
		if err != nil {
			errs = append(errs, *err)
		}
	}

	if err := ValidateRequired("track", string(g.Track)); err != nil {
		add(err)
	} else {
		add(ValidateEnum("track", string(g.Track), []string{
			string(goal.TrackDaily),
			string(goal.TrackMonthly),
		}))
	}

	add(ValidatePositive("target_amount", g.TargetAmount))

	// Period bounds are optional but must come as a pair; a one-sided bound
	// would make the goal match every window.
	switch {
	case g.PeriodStart != nil && g.PeriodEnd == nil:
		add(fieldError("period_end", "must be provided when period_start is set"))
	case g.PeriodStart == nil && g.PeriodEnd != nil:
		add(fieldError("period_start", "must be provided when period_end is set"))
	case g.PeriodStart != nil && g.PeriodEnd != nil:
		if !g.PeriodStart.Before(*g.PeriodEnd) {
			add(fieldError("period_start", "must be before period_end"))
		}
	}

	return errs
}
