package ai

import "encoding/json"

// EventType identifies the variant carried by a StreamEvent.
type EventType string

const (
	// EventMessageDelta carries an incremental text fragment for a message.
	EventMessageDelta EventType = "message_delta"
	// EventMessageComplete carries the full content of a finished message.
	// For a given MessageID the concatenation of all message_delta fragments,
	// in ascending Order, equals the Content of this terminal event.
	EventMessageComplete EventType = "message_complete"
	// EventToolStart announces a fully-formed tool call. Arguments are always
	// valid JSON by the time this event is visible to a consumer.
	EventToolStart EventType = "tool_start"
	// EventToolDelta is a placeholder emitted while a tool call's arguments
	// are still streaming in. Its ToolCall carries the id and name with an
	// empty-object argument body.
	EventToolDelta EventType = "tool_delta"
	// EventFileComplete carries a binary payload produced by the model
	// (generated image, synthesized audio).
	EventFileComplete EventType = "file_complete"
	// EventCostUpdate carries the usage snapshot and resolved price for the
	// stream. Emitted exactly once per stream, even when the vendor never
	// reported usage (the snapshot is then zero and flagged estimated).
	EventCostUpdate EventType = "cost_update"
	// EventError reports a stream error. Non-fatal errors are informational
	// and the stream continues; a fatal error is terminal.
	EventError EventType = "error"
)

// StreamEvent is the unified event protocol shared by every provider adapter.
// Exactly one payload field is populated, selected by Type. Events are never
// mutated after emission; the gateway forwards them unchanged.
type StreamEvent struct {
	Type EventType `json:"type"`

	// MessageID identifies the logical assistant message this event belongs
	// to. One adapter stream may carry several message ids (e.g. a visible
	// answer plus generated files), but each id has at most one terminal
	// message_complete.
	MessageID string `json:"message_id,omitempty"`

	// Order is strictly increasing across the message_delta events of one
	// MessageID. There is no cross-message ordering guarantee.
	Order int `json:"order,omitempty"`

	Content  string       `json:"content,omitempty"`  // message_delta / message_complete
	Thinking string       `json:"thinking,omitempty"` // optional reasoning text on message_complete
	ToolCall *ToolCall    `json:"tool_call,omitempty"`
	File     *FilePayload `json:"file,omitempty"`
	Cost     *CostUpdate  `json:"cost,omitempty"`
	Err      *StreamError `json:"error,omitempty"`
}

// ToolCall is a normalized function-call request. Arguments hold a JSON
// document as a string; adapters must not surface a tool_start whose
// Arguments fail json.Valid.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"` // always "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction is the name/arguments pair of a ToolCall.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ValidArguments reports whether the call's arguments parse as JSON.
func (tc ToolCall) ValidArguments() bool {
	return json.Valid([]byte(tc.Function.Arguments))
}

// FilePayload carries a binary artifact emitted by the model.
type FilePayload struct {
	MimeType string `json:"mime_type"`
	// Data is the raw payload. Adapters decode vendor base64 framing before
	// emitting, so consumers always see raw bytes.
	Data []byte `json:"data"`
}

// CostUpdate is the usage and price snapshot for one stream.
type CostUpdate struct {
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
	// Cost is the resolved price in USD. Zero when NoPricing is set.
	Cost float64 `json:"cost"`
	// Estimated is set when the vendor never reported usage and the snapshot
	// is a zero/estimated marker rather than authoritative counters.
	Estimated bool `json:"estimated,omitempty"`
	// NoPricing is set when the model is known but carries no price data.
	NoPricing bool `json:"no_pricing,omitempty"`
}

// StreamError reports a vendor or transport failure inside the event stream.
type StreamError struct {
	Message string `json:"message"`
	// Fatal marks the error as terminal: no further events follow it.
	// Non-fatal errors are emitted inline so partial content still reaches
	// the consumer.
	Fatal bool `json:"fatal,omitempty"`
}

func (e *StreamError) Error() string { return e.Message }
