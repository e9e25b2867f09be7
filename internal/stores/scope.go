package stores

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxScopeLength is the maximum length of a store scope.
const MaxScopeLength = 64

var (
	// ErrInvalidScope indicates a store scope failed validation.
	ErrInvalidScope = errors.New("invalid store scope")
	// ErrScopeNotFound indicates the requested scope does not exist.
	ErrScopeNotFound = errors.New("store scope not found")
	// ErrScopeAlreadyExists indicates a scope already exists during creation.
	ErrScopeAlreadyExists = errors.New("store scope already exists")
)

// scopePattern matches a valid scope. Scopes must start and end with an
// alphanumeric and may contain hyphens in the middle.
var scopePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateScope validates a store scope against format rules.
// Returns nil if valid, ErrInvalidScope with details if invalid.
func ValidateScope(scope string) error {
	if scope == "" {
		return fmt.Errorf("%w: empty scope", ErrInvalidScope)
	}
	if len(scope) > MaxScopeLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidScope, MaxScopeLength)
	}
	if !scopePattern.MatchString(scope) {
		return fmt.Errorf("%w: %q (must be lowercase alphanumeric with hyphens)", ErrInvalidScope, scope)
	}
	return nil
}
