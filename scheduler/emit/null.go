package emit

import "context"

// NullEmitter discards all events. Used when observability is not wired
// up (the zero-value default) or in tests where event capture is noise.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything it receives.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}

// EmitBatch discards every event in the batch and never errors.
func (n *NullEmitter) EmitBatch(_ context.Context, _ []Event) error {
	return nil
}

// Flush is a no-op; there is nothing buffered to deliver.
func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
