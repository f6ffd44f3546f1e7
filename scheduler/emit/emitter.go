// Package emit provides event emission and observability for the dynamic
// spawn scheduler.
package emit

import "context"

// Emitter receives observability events from strategy execution.
//
// Emitters enable pluggable observability backends: logging, distributed
// tracing, metrics. Implementations should be non-blocking, thread-safe
// (Emit is called concurrently from both the local and remote branch
// goroutines of every race), and resilient — a misbehaving emitter must
// never cause a spawn to fail.
type Emitter interface {
	// Emit sends a single observability event. Must not block strategy
	// execution; must not panic.
	Emit(event Event)

	// EmitBatch sends multiple events in one call, preserving order.
	// Returns an error only on catastrophic, non-recoverable failures;
	// per-event delivery failures should be absorbed internally.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events have been delivered or the
	// context expires. Safe to call multiple times.
	Flush(ctx context.Context) error
}
