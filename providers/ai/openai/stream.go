package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/aigate/core/buffer"
	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/core/simcall"
	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
	"github.com/leofalp/aigate/providers/observability"
	"github.com/leofalp/aigate/providers/observability/reqlog"
)

// StreamMessage implements ai.StreamProvider over the chat completions SSE
// protocol. It decodes vendor chunks into unified events: text runs through
// the delta buffer, tool calls are announced as placeholder tool_delta events
// while their arguments accumulate, and the stream ends with exactly one
// message_complete (plus finalized tool_start events) and one cost_update.
func (p *Provider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.EventStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, p.Name()),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool("llm.streaming", true),
		)
	}

	observer.Trace(ctx, "OpenAI provider preparing streaming request",
		observability.String(observability.AttrLLMProvider, p.Name()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
	)

	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	if p.simulated() {
		request = simulatedSystemPrompt(request)
	}
	wire := requestToWire(request, p.simulated())
	wire.Stream = utils.Ptr(true)
	wire.StreamOptions = &streamOptions{IncludeUsage: true}

	requestBody, _ := json.Marshal(wire)
	recorder := reqlog.Start(ctx, p.Name(), request.Model, string(requestBody))

	streamURL := p.baseURL + chatCompletionsEndpoint
	httpResponse, err := utils.DoPostStream(ctx, p.client, streamURL, p.apiKey, wire)
	if err != nil {
		recorder.Finish(ctx, "", err)
		return nil, err
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)
	decoder := newStreamDecoder(p, request.Model)
	control := ai.ControlFromContext(ctx)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			// Honor the process-wide pause token and cancellation between
			// chunks, without abandoning the underlying socket.
			if err := control.Wait(ctx); err != nil {
				yield(ai.StreamEvent{}, err)
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				for _, event := range decoder.finish(ctx) {
					if !yield(event, nil) {
						return
					}
				}
				recorder.Finish(ctx, decoder.content(), nil)
				return
			}
			if sseErr != nil {
				recorder.Finish(ctx, "", sseErr)
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			chunk, parseErr := unmarshalStreamChunk(payload)
			if parseErr != nil {
				recorder.Finish(ctx, "", parseErr)
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse streaming chunk: %w", parseErr))
				return
			}

			for _, event := range decoder.decode(ctx, chunk) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}

	return ai.NewEventStream(iteratorFunc), nil
}

// pendingCall accumulates one streamed tool call until finalization.
type pendingCall struct {
	id        string
	name      string
	arguments strings.Builder
	announced bool
}

// streamDecoder folds vendor chunks into unified events for one stream.
type streamDecoder struct {
	provider *Provider
	model    string

	messageID string
	buf       *buffer.Buffer
	thinking  strings.Builder
	usage     ai.Usage

	calls     map[int]*pendingCall
	callOrder []int
	seenIDs   map[string]bool

	terminalEmitted bool
}

func newStreamDecoder(provider *Provider, model string) *streamDecoder {
	return &streamDecoder{
		provider: provider,
		model:    model,
		calls:    make(map[int]*pendingCall),
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

// ensureMessage fixes the logical message id on first use. The vendor chunk
// id is preferred; a uuid covers vendors that omit it.
func (d *streamDecoder) ensureMessage(chunkID string) {
	if d.messageID != "" {
		return
	}
	if chunkID == "" {
		chunkID = "msg_" + uuid.NewString()
	}
	d.messageID = chunkID

	// Simulated mode withholds deltas until the marker scan at stream end,
	// otherwise scrubbed marker text would desynchronize deltas from the
	// terminal content. An unreachable threshold keeps everything pending.
	threshold := 0
	if d.provider.simulated() {
		threshold = int(^uint(0) >> 1)
	}
	d.buf = buffer.New(d.messageID, threshold)
}

// decode converts one chunk into zero or more events.
func (d *streamDecoder) decode(ctx context.Context, chunk *streamChunk) []ai.StreamEvent {
	d.ensureMessage(chunk.ID)

	var events []ai.StreamEvent

	if chunk.Usage != nil {
		d.usage.Merge(usageToGeneric(chunk.Usage))
	}

	for _, choice := range chunk.Choices {
		delta := choice.Delta

		if delta.Content != nil && *delta.Content != "" {
			if event, ok := d.buf.Write(*delta.Content); ok {
				events = append(events, event)
			}
		}

		if delta.Reasoning != nil {
			d.thinking.WriteString(*delta.Reasoning)
		}

		for _, part := range delta.ToolCalls {
			if event, ok := d.accumulateToolCall(part); ok {
				events = append(events, event)
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			events = append(events, d.emitTerminal(ctx)...)
		}
	}

	return events
}

// accumulateToolCall folds one tool-call fragment into its pending call. The
// first fragment of a call announces it with a placeholder tool_delta; the
// real tool_start waits until the arguments are complete and valid.
func (d *streamDecoder) accumulateToolCall(part chatToolCall) (ai.StreamEvent, bool) {
	index := 0
	if part.Index != nil {
		index = *part.Index
	}

	call, exists := d.calls[index]
	if !exists {
		call = &pendingCall{}
		d.calls[index] = call
		d.callOrder = append(d.callOrder, index)
	}
	if part.ID != "" {
		call.id = part.ID
	}
	if part.Function.Name != "" {
		call.name = part.Function.Name
	}
	call.arguments.WriteString(part.Function.Arguments)

	if call.announced || call.name == "" {
		return ai.StreamEvent{}, false
	}
	call.announced = true
	return ai.StreamEvent{
		Type:      ai.EventToolDelta,
		MessageID: d.messageID,
		ToolCall: &ai.ToolCall{
			ID:       call.id,
			Type:     "function",
			Function: ai.ToolCallFunction{Name: call.name, Arguments: "{}"},
		},
	}, true
}

// emitTerminal flushes the buffer and emits the single message_complete plus
// finalized tool_start events. Double terminal signals from the vendor are
// suppressed.
func (d *streamDecoder) emitTerminal(ctx context.Context) []ai.StreamEvent {
	if d.terminalEmitted {
		return nil
	}
	d.terminalEmitted = true
	d.ensureMessage("")

	var events []ai.StreamEvent

	if d.provider.simulated() {
		events = append(events, d.emitSimulatedTerminal(ctx)...)
	} else {
		if event, ok := d.buf.Flush(); ok {
			events = append(events, event)
		}
		events = append(events, ai.StreamEvent{
			Type:      ai.EventMessageComplete,
			MessageID: d.messageID,
			Content:   d.buf.Total(),
			Thinking:  d.thinking.String(),
		})
	}

	events = append(events, d.finalizeToolCalls(ctx)...)
	return events
}

// emitSimulatedTerminal runs the marker scan over the full withheld content
// and emits the scrubbed text as one delta plus the terminal, followed by the
// recovered calls.
func (d *streamDecoder) emitSimulatedTerminal(ctx context.Context) []ai.StreamEvent {
	extraction := simcall.Extract(d.buf.Total())

	var events []ai.StreamEvent
	if extraction.Content != "" {
		events = append(events, ai.StreamEvent{
			Type:      ai.EventMessageDelta,
			MessageID: d.messageID,
			Order:     0,
			Content:   extraction.Content,
		})
	}
	events = append(events, ai.StreamEvent{
		Type:      ai.EventMessageComplete,
		MessageID: d.messageID,
		Content:   extraction.Content,
		Thinking:  d.thinking.String(),
	})

	observer := observability.ObserverFromContext(ctx)
	for i := range extraction.Calls {
		call := extraction.Calls[i]
		if call.ID != "" && d.seenIDs[call.ID] {
			continue
		}
		d.seenIDs[call.ID] = true
		observer.Debug(ctx, "Recovered simulated tool call",
			observability.String(observability.AttrToolName, call.Function.Name),
			observability.Bool(observability.AttrToolSimulated, true),
		)
		events = append(events, ai.StreamEvent{Type: ai.EventToolStart, MessageID: d.messageID, ToolCall: &call})
	}
	return events
}

// finalizeToolCalls validates every accumulated native call and emits it as a
// tool_start. Calls whose arguments never become valid JSON (even after
// repair) are dropped, as are duplicate ids re-sent by the vendor.
func (d *streamDecoder) finalizeToolCalls(ctx context.Context) []ai.StreamEvent {
	observer := observability.ObserverFromContext(ctx)

	var events []ai.StreamEvent
	for _, index := range d.callOrder {
		call := d.calls[index]
		if call.name == "" {
			continue
		}
		if call.id != "" && d.seenIDs[call.id] {
			observer.Warn(ctx, "Duplicate tool call id from vendor, dropping",
				observability.String(observability.AttrToolCallID, call.id))
			continue
		}

		arguments := call.arguments.String()
		if arguments == "" {
			arguments = "{}"
		}
		if !json.Valid([]byte(arguments)) {
			repaired, err := jsonrepair.JSONRepair(arguments)
			if err != nil || !json.Valid([]byte(repaired)) {
				observer.Warn(ctx, "Tool call arguments never became valid JSON, dropping",
					observability.String(observability.AttrToolName, call.name))
				continue
			}
			arguments = repaired
		}

		if call.id == "" {
			call.id = "call_" + uuid.NewString()
		}
		d.seenIDs[call.id] = true

		events = append(events, ai.StreamEvent{
			Type:      ai.EventToolStart,
			MessageID: d.messageID,
			ToolCall: &ai.ToolCall{
				ID:       call.id,
				Type:     "function",
				Function: ai.ToolCallFunction{Name: call.name, Arguments: arguments},
			},
		})
	}
	d.calls = make(map[int]*pendingCall)
	d.callOrder = nil
	return events
}

// finish closes out the stream at EOF: the terminal sequence if the vendor
// never sent a finish_reason, then the single cost_update. A stream that
// never reported usage still gets a snapshot, flagged estimated.
func (d *streamDecoder) finish(ctx context.Context) []ai.StreamEvent {
	events := d.emitTerminal(ctx)

	update := cost.Snapshot(d.provider.resolver, d.model, d.usage)
	events = append(events, ai.StreamEvent{Type: ai.EventCostUpdate, MessageID: d.messageID, Cost: update})
	return events
}
