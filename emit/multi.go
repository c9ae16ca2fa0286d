package emit

import "context"

// MultiEmitter fans an event out to every wrapped Emitter, letting the CLI
// send the same event stream to both a human-readable log and an
// OpenTelemetry tracer at once.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter builds a MultiEmitter wrapping emitters, in the order
// they should receive each event.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit sends event to every wrapped emitter in order.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

// EmitBatch sends events to every wrapped emitter, continuing past a
// failure in one so the rest still receive the batch. It returns the first
// error encountered, if any.
func (m *MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes every wrapped emitter, continuing past a failure in one.
// It returns the first error encountered, if any.
func (m *MultiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
