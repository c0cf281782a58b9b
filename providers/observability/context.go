package observability

import "context"

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var spanContextKey = contextKey{}

type observerKey struct{}

var observerContextKey = observerKey{}

// SpanFromContext extracts a Span from the context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey).(Span)
	return span
}

// ContextWithSpan returns a new context with the given span attached.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, spanContextKey, span)
}

// ObserverFromContext extracts the active Provider from the context.
// Returns a no-op provider if none is present, so call sites never need a
// nil check before recording observations.
func ObserverFromContext(ctx context.Context) Provider {
	if ctx == nil {
		return NoopProvider{}
	}
	if observer, ok := ctx.Value(observerContextKey).(Provider); ok && observer != nil {
		return observer
	}
	return NoopProvider{}
}

// ContextWithObserver returns a new context with the given observer attached.
func ContextWithObserver(ctx context.Context, observer Provider) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, observerContextKey, observer)
}
