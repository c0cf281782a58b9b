package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leofalp/aigate/core/parse"
	"github.com/leofalp/aigate/internal/jsonschema"
	"github.com/leofalp/aigate/providers/ai"
	"github.com/leofalp/aigate/providers/observability"
)

// CallableTool is the provider-agnostic interface over a typed [Tool]. It is
// what example programs register and what the gateway's sequential queue
// executes: metadata for advertising the tool to a model, plus a JSON-in,
// JSON-out invocation.
type CallableTool interface {
	// ToolInfo returns the metadata (name, description, parameter schema)
	// advertised to the model.
	ToolInfo() ai.ToolDescription

	// Call invokes the tool with the model-supplied JSON arguments and
	// returns the JSON-encoded result.
	Call(ctx context.Context, inputJSON string) (string, error)
}

// Tool binds a name and description to a strongly-typed function. The JSON
// schema for the input type is derived by reflection, so a tool author only
// writes the function and its argument struct.
type Tool[I, O any] struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Function    func(ctx context.Context, input I) (O, error)
}

// Option configures a tool built by [New].
type Option func(*options)

type options struct {
	description string
}

// WithDescription sets the description surfaced to the model alongside the
// tool's name and schema.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// New builds a typed tool. The input schema is derived from I; an input type
// the schema generator cannot express is a programming error and is returned
// as such.
func New[I, O any](name string, function func(ctx context.Context, input I) (O, error), opts ...Option) (*Tool[I, O], error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	parameters, err := jsonschema.GenerateJSONSchema[I]()
	if err != nil {
		return nil, fmt.Errorf("failed to derive schema for tool %q: %w", name, err)
	}

	return &Tool[I, O]{
		Name:        name,
		Description: o.description,
		Parameters:  parameters,
		Function:    function,
	}, nil
}

// ToolInfo returns the ai.ToolDescription advertised to providers.
func (t *Tool[I, O]) ToolInfo() ai.ToolDescription {
	return ai.ToolDescription{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Call parses the model-supplied arguments leniently (models emit imperfect
// JSON; the parser repairs what it can), runs the function, and marshals the
// result. Parse and execution failures are reported to the caller, which
// normally feeds them back to the model as a tool-result turn.
func (t *Tool[I, O]) Call(ctx context.Context, inputJSON string) (string, error) {
	observer := observability.ObserverFromContext(ctx)
	span := observability.SpanFromContext(ctx)

	start := time.Now()
	if span != nil {
		span.SetAttributes(observability.String(observability.AttrToolName, t.Name))
	}

	input, err := parse.As[I](inputJSON)
	if err != nil {
		return "", fmt.Errorf("tool %q: invalid arguments: %w", t.Name, err)
	}

	output, err := t.Function(ctx, input)
	duration := time.Since(start)
	if err != nil {
		observer.Warn(ctx, "Tool execution failed",
			observability.String(observability.AttrToolName, t.Name),
			observability.Duration(observability.AttrDuration, duration),
			observability.Error(err),
		)
		if span != nil {
			span.RecordError(err)
		}
		return "", fmt.Errorf("tool %q: %w", t.Name, err)
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("tool %q: failed to encode output: %w", t.Name, err)
	}

	observer.Debug(ctx, "Tool executed",
		observability.String(observability.AttrToolName, t.Name),
		observability.Duration(observability.AttrDuration, duration),
	)
	return string(encoded), nil
}
