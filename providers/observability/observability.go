package observability

import (
	"context"
	"time"
)

// Provider is the single dependency a component needs to emit traces,
// metrics, and structured logs. Implementations: slogobs (log/slog backed)
// and NoopProvider.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer starts spans. StartSpan may return the context unchanged;
// implementations that propagate span identity return a derived one.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one traced unit of work. Callers must End it exactly once.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	// AddEvent marks a point in time within the span, for example a
	// scheduled retry.
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the final disposition of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Metrics hands out named instruments. Fetching the same name twice returns
// the same instrument, so callers need not cache them.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter is a monotonically increasing value.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution of observed values.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// Logger is levelled structured logging. Trace sits below Debug and is
// meant for per-delta noise that would swamp debug output.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is one key-value pair attached to a span, metric, or log record.
// Keys should come from the semconv constants where one exists.
type Attribute struct {
	Key   string
	Value interface{}
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func StringSlice(key string, value []string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error builds the conventional "error" attribute from err's message. A nil
// err yields an empty value so callers can pass errors through unchecked.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: "error", Value: ""}
	}
	return Attribute{Key: "error", Value: err.Error()}
}
