package api

import (
	"context"
	"errors"

	"github.com/tillworks/quota/internal/stores"
)

// handleContextKey is the context key for the resolved scope handle.
type handleContextKey struct{}

// scopeContextKey is the context key for the scope name (for logging).
type scopeContextKey struct{}

// ErrNoHandleInContext indicates no scope handle was found in the context.
var ErrNoHandleInContext = errors.New("no scope handle in context")

// WithHandle returns a new context with the scope handle attached.
func WithHandle(ctx context.Context, h *stores.Handle) context.Context {
	return context.WithValue(ctx, handleContextKey{}, h)
}

// HandleFromContext extracts the scope handle from the context.
// Returns ErrNoHandleInContext if not present or nil.
func HandleFromContext(ctx context.Context) (*stores.Handle, error) {
	h, ok := ctx.Value(handleContextKey{}).(*stores.Handle)
	if !ok || h == nil {
		return nil, ErrNoHandleInContext
	}
	return h, nil
}

// MustHandleFromContext extracts the scope handle or panics.
// Use only when middleware guarantees handle presence.
func MustHandleFromContext(ctx context.Context) *stores.Handle {
	h, err := HandleFromContext(ctx)
	if err != nil {
		panic("scope handle not in context: middleware misconfiguration")
	}
	return h
}

// WithScope returns a new context with the scope name attached.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the scope name from the context.
// Returns an empty string if not present.
func ScopeFromContext(ctx context.Context) string {
	scope, ok := ctx.Value(scopeContextKey{}).(string)
	if !ok {
		return ""
	}
	return scope
}
