package notify

import (
	"sync"
)

// registry holds all registered notification backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Backend)
	fallback   Backend
)

// Register adds a backend to the registry.
// Backends should be registered during init() or early in main().
// Panics if a backend with the same name is already registered.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := b.Name()
	if _, exists := backends[name]; exists {
		panic("notification backend already registered: " + name)
	}
	backends[name] = b
}

// Get returns the backend with the given name.
// If no such backend is registered, returns the fallback backend.
// The boolean indicates whether a named backend was found.
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if b, ok := backends[name]; ok {
		return b, true
	}
	return fallback, false
}

// SetFallback sets the backend used when no named backend exists.
// Should be called during initialization before any Get() calls.
func SetFallback(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fallback = b
}

// RegisteredNames returns all registered backend names.
// Useful for config validation and health checks.
func RegisteredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Reset clears the registry. Only for testing.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends = make(map[string]Backend)
	fallback = nil
}
