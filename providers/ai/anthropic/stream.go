package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/leofalp/aigate/core/buffer"
	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/providers/ai"
	"github.com/leofalp/aigate/providers/observability"
	"github.com/leofalp/aigate/providers/observability/reqlog"
)

// StreamMessage implements ai.StreamProvider over the SDK event stream. Text
// deltas run through the delta buffer, tool_use blocks are announced as
// placeholder tool_delta events while their input accumulates, and the stream
// ends with exactly one message_complete and one cost_update.
func (p *Provider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.EventStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, p.Name()),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool("llm.streaming", true),
		)
	}

	observer.Trace(ctx, "Anthropic provider preparing streaming request",
		observability.String(observability.AttrLLMProvider, p.Name()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
	)

	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	params := buildMessageParams(request)
	requestBody, _ := json.Marshal(params)
	recorder := reqlog.Start(ctx, p.Name(), request.Model, string(requestBody))

	stream := p.client.Messages.NewStreaming(ctx, params)
	decoder := newStreamDecoder(p, request.Model)
	control := ai.ControlFromContext(ctx)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer stream.Close()

		accumulated := anthropic.Message{}
		for stream.Next() {
			// Honor the process-wide pause token and cancellation between
			// events, without abandoning the underlying connection.
			if err := control.Wait(ctx); err != nil {
				yield(ai.StreamEvent{}, err)
				return
			}

			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				recorder.Finish(ctx, "", err)
				yield(ai.StreamEvent{}, fmt.Errorf("failed to accumulate stream event: %w", err))
				return
			}

			for _, out := range decoder.decode(ctx, event) {
				if !yield(out, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			recorder.Finish(ctx, "", err)
			yield(ai.StreamEvent{}, fmt.Errorf("anthropic streaming error: %w", err))
			return
		}

		for _, out := range decoder.finish(ctx, accumulated.Usage) {
			if !yield(out, nil) {
				return
			}
		}
		recorder.Finish(ctx, decoder.content(), nil)
	}

	return ai.NewEventStream(iteratorFunc), nil
}

// pendingTool accumulates one streamed tool_use block until its stop event.
type pendingTool struct {
	id   string
	name string
	args strings.Builder
}

// streamDecoder folds SDK events into unified events for one stream.
type streamDecoder struct {
	provider *Provider
	model    string

	messageID string
	buf       *buffer.Buffer
	thinking  strings.Builder

	tools     map[int64]*pendingTool
	toolOrder []int64
	seenIDs   map[string]bool

	terminalEmitted bool
}

func newStreamDecoder(provider *Provider, model string) *streamDecoder {
	return &streamDecoder{
		provider: provider,
		model:    model,
		tools:    make(map[int64]*pendingTool),
		seenIDs:  make(map[string]bool),
	}
}

// content returns the full accumulated text, for logging.
func (d *streamDecoder) content() string {
	if d.buf == nil {
		return ""
	}
	return d.buf.Total()
}

// ensureMessage fixes the logical message id on first use. The message_start
// id is preferred; a uuid covers streams that never sent one.
func (d *streamDecoder) ensureMessage(messageID string) {
	if d.messageID != "" {
		return
	}
	if messageID == "" {
		messageID = "msg_" + uuid.NewString()
	}
	d.messageID = messageID
	d.buf = buffer.New(d.messageID, 0)
}

// decode converts one SDK event into zero or more unified events.
func (d *streamDecoder) decode(ctx context.Context, event anthropic.MessageStreamEventUnion) []ai.StreamEvent {
	var events []ai.StreamEvent

	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		d.ensureMessage(e.Message.ID)

	case anthropic.ContentBlockStartEvent:
		d.ensureMessage("")
		if e.ContentBlock.Type == "tool_use" {
			d.tools[e.Index] = &pendingTool{id: e.ContentBlock.ID, name: e.ContentBlock.Name}
			d.toolOrder = append(d.toolOrder, e.Index)
			events = append(events, ai.StreamEvent{
				Type:      ai.EventToolDelta,
				MessageID: d.messageID,
				ToolCall: &ai.ToolCall{
					ID:       e.ContentBlock.ID,
					Type:     "function",
					Function: ai.ToolCallFunction{Name: e.ContentBlock.Name, Arguments: "{}"},
				},
			})
		}

	case anthropic.ContentBlockDeltaEvent:
		d.ensureMessage("")
		switch e.Delta.Type {
		case "text_delta":
			if out, ok := d.buf.Write(e.Delta.Text); ok {
				events = append(events, out)
			}
		case "thinking_delta":
			d.thinking.WriteString(e.Delta.Thinking)
		case "input_json_delta":
			if tool, ok := d.tools[e.Index]; ok {
				tool.args.WriteString(e.Delta.PartialJSON)
			}
		}

	case anthropic.ContentBlockStopEvent:
		if tool, ok := d.tools[e.Index]; ok {
			delete(d.tools, e.Index)
			if out, ok := d.finalizeTool(ctx, tool); ok {
				events = append(events, out)
			}
		}

	case anthropic.MessageStopEvent:
		events = append(events, d.emitTerminal(ctx)...)
	}

	return events
}

// finalizeTool validates a completed tool_use block and emits its tool_start.
// Blocks whose input never becomes valid JSON (even after repair) are
// dropped, as are duplicate ids re-sent by the vendor.
func (d *streamDecoder) finalizeTool(ctx context.Context, tool *pendingTool) (ai.StreamEvent, bool) {
	observer := observability.ObserverFromContext(ctx)

	if tool.name == "" {
		return ai.StreamEvent{}, false
	}
	if tool.id != "" && d.seenIDs[tool.id] {
		observer.Warn(ctx, "Duplicate tool use id from vendor, dropping",
			observability.String(observability.AttrToolCallID, tool.id))
		return ai.StreamEvent{}, false
	}

	arguments, ok := normalizeArguments(tool.args.String())
	if !ok {
		observer.Warn(ctx, "Tool use input never became valid JSON, dropping",
			observability.String(observability.AttrToolName, tool.name))
		return ai.StreamEvent{}, false
	}

	if tool.id == "" {
		tool.id = "toolu_" + uuid.NewString()
	}
	d.seenIDs[tool.id] = true

	return ai.StreamEvent{
		Type:      ai.EventToolStart,
		MessageID: d.messageID,
		ToolCall: &ai.ToolCall{
			ID:       tool.id,
			Type:     "function",
			Function: ai.ToolCallFunction{Name: tool.name, Arguments: arguments},
		},
	}, true
}

// emitTerminal flushes the buffer and emits the single message_complete, plus
// any tool blocks that never saw their stop event. Double terminal signals
// are suppressed.
func (d *streamDecoder) emitTerminal(ctx context.Context) []ai.StreamEvent {
	if d.terminalEmitted {
		return nil
	}
	d.terminalEmitted = true
	d.ensureMessage("")

	var events []ai.StreamEvent
	if out, ok := d.buf.Flush(); ok {
		events = append(events, out)
	}
	events = append(events, ai.StreamEvent{
		Type:      ai.EventMessageComplete,
		MessageID: d.messageID,
		Content:   d.buf.Total(),
		Thinking:  d.thinking.String(),
	})

	// Finalize never-stopped blocks in the order they started.
	for _, index := range d.toolOrder {
		tool, ok := d.tools[index]
		if !ok {
			continue
		}
		delete(d.tools, index)
		if out, ok := d.finalizeTool(ctx, tool); ok {
			events = append(events, out)
		}
	}
	return events
}

// finish closes out the stream: the terminal sequence if the vendor never
// sent message_stop, then the single cost_update built from the accumulated
// usage counters.
func (d *streamDecoder) finish(ctx context.Context, usage anthropic.Usage) []ai.StreamEvent {
	events := d.emitTerminal(ctx)

	update := cost.Snapshot(d.provider.resolver, d.model, usageToGeneric(usage))
	return append(events, ai.StreamEvent{Type: ai.EventCostUpdate, MessageID: d.messageID, Cost: update})
}
