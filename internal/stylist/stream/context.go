package stream

import "context"

type emitterKey struct{}

// WithEmitter returns a context carrying the emitter for this run. Workflow
// code never holds an emitter directly; it travels with the context so
// nodes, callbacks, and collaborators can all report progress.
func WithEmitter(ctx context.Context, em Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, em)
}

// FromContext returns the emitter bound to ctx. Contexts without one get a
// NullEmitter so call sites can emit unconditionally.
func FromContext(ctx context.Context) Emitter {
	if em, ok := ctx.Value(emitterKey{}).(Emitter); ok && em != nil {
		return em
	}
	return NullEmitter{}
}

// Emit sends an event through the context-bound emitter.
func Emit(ctx context.Context, ev Event) {
	FromContext(ctx).Emit(ctx, ev)
}
