package trace

import "context"

type ctxKey struct{}

// FromContext returns the tracer stored by WithTracer, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// WithTracer stores t in ctx; a nil t stores Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}
