package api

import (
	"context"
	"testing"

	"github.com/tillworks/quota/internal/stores"
)

// TestWithHandle_HandleFromContext_RoundTrip verifies a handle can be added
// and extracted from context.
func TestWithHandle_HandleFromContext_RoundTrip(t *testing.T) {
	handle := &stores.Handle{Scope: "downtown"}
	ctx := context.Background()

	ctx = WithHandle(ctx, handle)

	got, err := HandleFromContext(ctx)
	if err != nil {
		t.Fatalf("HandleFromContext returned error: %v", err)
	}

	if got != handle {
		t.Errorf("got different handle instance, want same instance")
	}
}

// TestHandleFromContext_NoHandle verifies error when no handle in context.
func TestHandleFromContext_NoHandle(t *testing.T) {
	ctx := context.Background()

	_, err := HandleFromContext(ctx)
	if err != ErrNoHandleInContext {
		t.Errorf("error = %v, want ErrNoHandleInContext", err)
	}
}

// TestHandleFromContext_NilHandle verifies error when nil handle in context.
func TestHandleFromContext_NilHandle(t *testing.T) {
	ctx := context.Background()
	ctx = WithHandle(ctx, nil)

	_, err := HandleFromContext(ctx)
	if err != ErrNoHandleInContext {
		t.Errorf("error = %v, want ErrNoHandleInContext", err)
	}
}

// TestMustHandleFromContext_Panics verifies panic when no handle in context.
func TestMustHandleFromContext_Panics(t *testing.T) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustHandleFromContext did not panic")
		}
	}()

	MustHandleFromContext(ctx)
}

// TestMustHandleFromContext_ReturnsHandle verifies the happy path.
func TestMustHandleFromContext_ReturnsHandle(t *testing.T) {
	handle := &stores.Handle{Scope: "airport"}
	ctx := WithHandle(context.Background(), handle)

	got := MustHandleFromContext(ctx)
	if got != handle {
		t.Errorf("got different handle instance, want same instance")
	}
}

// TestWithScope_ScopeFromContext_RoundTrip verifies the scope name round-trips.
func TestWithScope_ScopeFromContext_RoundTrip(t *testing.T) {
	ctx := WithScope(context.Background(), "mall-east")

	if got := ScopeFromContext(ctx); got != "mall-east" {
		t.Errorf("ScopeFromContext = %q, want %q", got, "mall-east")
	}
}

// TestScopeFromContext_Missing verifies empty string when no scope set.
func TestScopeFromContext_Missing(t *testing.T) {
	if got := ScopeFromContext(context.Background()); got != "" {
		t.Errorf("ScopeFromContext = %q, want empty string", got)
	}
}
