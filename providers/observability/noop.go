package observability

import "context"

// NoopProvider is a Provider that discards every observation. It is the
// fallback returned by ObserverFromContext when no observer was configured.
type NoopProvider struct{}

var _ Provider = NoopProvider{}

// StartSpan returns the context unchanged and a span that does nothing.
func (NoopProvider) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

// Counter returns a counter that discards every Add.
func (NoopProvider) Counter(string) Counter { return noopCounter{} }

// Histogram returns a histogram that discards every Record.
func (NoopProvider) Histogram(string) Histogram { return noopHistogram{} }

func (NoopProvider) Trace(context.Context, string, ...Attribute) {}
func (NoopProvider) Debug(context.Context, string, ...Attribute) {}
func (NoopProvider) Info(context.Context, string, ...Attribute)  {}
func (NoopProvider) Warn(context.Context, string, ...Attribute)  {}
func (NoopProvider) Error(context.Context, string, ...Attribute) {}

type noopSpan struct{}

func (noopSpan) End()                          {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) SetStatus(StatusCode, string)  {}
func (noopSpan) RecordError(error)             {}
func (noopSpan) AddEvent(string, ...Attribute) {}

type noopCounter struct{}

func (noopCounter) Add(context.Context, int64, ...Attribute) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...Attribute) {}
