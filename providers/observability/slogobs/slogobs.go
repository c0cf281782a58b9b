// Package slogobs implements observability.Provider on top of log/slog.
// Spans and metrics become structured log records, which is enough signal
// for development and single-binary deployments without an OTLP backend.
package slogobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/leofalp/aigate/providers/observability"
)

// LevelTrace sits below slog.LevelDebug and is filtered out unless enabled
// explicitly via WithLevel or AIGATE_LOG_LEVEL=TRACE.
const LevelTrace = slog.LevelDebug - 4

// Format selects the wire shape of emitted records.
type Format string

const (
	// FormatText is slog's key=value text output, the default.
	FormatText Format = "text"
	// FormatJSON emits one JSON object per record, for log aggregation.
	FormatJSON Format = "json"
)

// Option configures New.
type Option func(*config)

type config struct {
	level  slog.Level
	format Format
	output io.Writer
	logger *slog.Logger
}

// WithLevel sets the minimum level. Overrides AIGATE_LOG_LEVEL.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithFormat sets the output format. Overrides AIGATE_LOG_FORMAT.
func WithFormat(format Format) Option {
	return func(c *config) { c.format = format }
}

// WithOutput redirects records away from os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithLogger uses an existing slog.Logger and ignores the level, format, and
// output options.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Observer routes spans, metrics, and log events through one slog.Logger.
// Metrics are kept in memory; each update is also logged at debug level.
type Observer struct {
	logger *slog.Logger

	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

var _ observability.Provider = (*Observer)(nil)

// New builds an Observer. Without options the level and format come from the
// AIGATE_LOG_LEVEL and AIGATE_LOG_FORMAT environment variables (falling back
// to LOG_LEVEL and LOG_FORMAT), defaulting to INFO text on stdout.
func New(opts ...Option) *Observer {
	cfg := config{
		level:  levelFromEnv(),
		format: formatFromEnv(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		handlerOpts := &slog.HandlerOptions{Level: cfg.level}
		if cfg.format == FormatJSON {
			logger = slog.New(slog.NewJSONHandler(cfg.output, handlerOpts))
		} else {
			logger = slog.New(slog.NewTextHandler(cfg.output, handlerOpts))
		}
	}

	return &Observer{
		logger:     logger,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

func levelFromEnv() slog.Level {
	raw := os.Getenv("AIGATE_LOG_LEVEL")
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	return ParseLevel(raw)
}

func formatFromEnv() Format {
	raw := os.Getenv("AIGATE_LOG_FORMAT")
	if raw == "" {
		raw = os.Getenv("LOG_FORMAT")
	}
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel maps TRACE, DEBUG, INFO, WARN, WARNING, and ERROR
// (case-insensitive) to slog levels. Anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartSpan logs the span start at debug level and returns a span whose End
// logs the elapsed time together with every attribute accumulated on it.
// The context is returned unchanged.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, "span start",
		append([]slog.Attr{slog.String("span", name)}, slogAttrs(attrs)...)...)

	return ctx, &span{
		name:   name,
		start:  time.Now(),
		logger: o.logger,
		attrs:  attrs,
	}
}

type span struct {
	name   string
	start  time.Time
	logger *slog.Logger

	mu    sync.Mutex
	attrs []observability.Attribute
}

func (s *span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("span", s.name),
		slog.Duration("duration", time.Since(s.start)),
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "span end",
		append(logAttrs, slogAttrs(s.attrs)...)...)
}

func (s *span) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *span) SetStatus(code observability.StatusCode, description string) {
	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

func (s *span) RecordError(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	s.attrs = append(s.attrs, observability.Error(err))
	s.mu.Unlock()

	s.logger.LogAttrs(context.Background(), slog.LevelError, "span failed",
		slog.String("span", s.name),
		slog.String("error", err.Error()))
}

func (s *span) AddEvent(name string, attrs ...observability.Attribute) {
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "span event",
		append([]slog.Attr{
			slog.String("span", s.name),
			slog.String("event", name),
		}, slogAttrs(attrs)...)...)
}

// Counter returns the named counter, creating it on first use. The same
// instance is returned on every call, so callers need not cache it.
func (o *Observer) Counter(name string) observability.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, ok := o.counters[name]
	if !ok {
		c = &counter{name: name, logger: o.logger}
		o.counters[name] = c
	}
	return c
}

// Histogram returns the named histogram, creating it on first use.
func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	h, ok := o.histograms[name]
	if !ok {
		h = &histogram{name: name, logger: o.logger}
		o.histograms[name] = h
	}
	return h
}

type counter struct {
	name   string
	logger *slog.Logger

	mu    sync.Mutex
	total int64
}

func (c *counter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.mu.Lock()
	c.total += value
	total := c.total
	c.mu.Unlock()

	c.logger.LogAttrs(ctx, slog.LevelDebug, "counter",
		append([]slog.Attr{
			slog.String("metric", c.name),
			slog.Int64("delta", value),
			slog.Int64("total", total),
		}, slogAttrs(attrs)...)...)
}

type histogram struct {
	name   string
	logger *slog.Logger
}

func (h *histogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	h.logger.LogAttrs(ctx, slog.LevelDebug, "histogram",
		append([]slog.Attr{
			slog.String("metric", h.name),
			slog.Float64("value", value),
		}, slogAttrs(attrs)...)...)
}

// Trace logs below debug level, see LevelTrace.
func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, LevelTrace, msg, slogAttrs(attrs)...)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, msg, slogAttrs(attrs)...)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, msg, slogAttrs(attrs)...)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelWarn, msg, slogAttrs(attrs)...)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelError, msg, slogAttrs(attrs)...)
}

func slogAttrs(attrs []observability.Attribute) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, slog.Any(attr.Key, attr.Value))
	}
	return out
}
