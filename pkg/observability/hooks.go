// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup
// to receive events about history transitions, effect computation, painting,
// cache operations and API requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so there are no import
// cycles and the editing core stays free of any metrics framework.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    hooks := observability.NewLogHooks(logger)
//	    observability.SetHistoryHooks(hooks)
//	    observability.SetRenderHooks(hooks)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Effect().OnEffectStart(ctx, "sepia")
//	// ... compute ...
//	observability.Effect().OnEffectComplete(ctx, "sepia", duration, cached, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// History Hooks
// =============================================================================

// HistoryHooks receives edit-history transitions.
type HistoryHooks interface {
	// OnTransition records a state-changing commit, undo, redo or reset.
	// Boundary no-ops are not reported.
	OnTransition(op string, seq uint64, cursor, length int)
}

// =============================================================================
// Effect Hooks
// =============================================================================

// EffectHooks receives events from effect computation.
type EffectHooks interface {
	OnEffectStart(ctx context.Context, kind string)
	OnEffectComplete(ctx context.Context, kind string, duration time.Duration, cached bool, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the render surface.
type RenderHooks interface {
	// OnPaint records a frame applied to the surface.
	OnPaint(seq uint64, width, height int, duration time.Duration)

	// OnStale records a decode completion dropped because a newer request exists.
	OnStale(seq, latest uint64)

	// OnDecodeError records a state that could not be painted.
	OnDecodeError(seq uint64, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events for inbound API requests.
type HTTPHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopHistoryHooks is a no-op implementation of HistoryHooks.
type NoopHistoryHooks struct{}

func (NoopHistoryHooks) OnTransition(string, uint64, int, int) {}

// NoopEffectHooks is a no-op implementation of EffectHooks.
type NoopEffectHooks struct{}

func (NoopEffectHooks) OnEffectStart(context.Context, string)                                  {}
func (NoopEffectHooks) OnEffectComplete(context.Context, string, time.Duration, bool, error) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnPaint(uint64, int, int, time.Duration) {}
func (NoopRenderHooks) OnStale(uint64, uint64)                  {}
func (NoopRenderHooks) OnDecodeError(uint64, error)             {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	historyHooks HistoryHooks = NoopHistoryHooks{}
	effectHooks  EffectHooks  = NoopEffectHooks{}
	renderHooks  RenderHooks  = NoopRenderHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetHistoryHooks registers custom history hooks.
// This should be called once at application startup before any session is created.
func SetHistoryHooks(h HistoryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		historyHooks = h
	}
}

// SetEffectHooks registers custom effect hooks.
func SetEffectHooks(h EffectHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		effectHooks = h
	}
}

// SetRenderHooks registers custom render hooks.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// History returns the registered history hooks.
func History() HistoryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return historyHooks
}

// Effect returns the registered effect hooks.
func Effect() EffectHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return effectHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	historyHooks = NoopHistoryHooks{}
	effectHooks = NoopEffectHooks{}
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
