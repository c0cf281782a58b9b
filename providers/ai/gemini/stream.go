package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/leofalp/aigate/core/buffer"
	"github.com/leofalp/aigate/core/citation"
	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
	"github.com/leofalp/aigate/providers/observability"
	"github.com/leofalp/aigate/providers/observability/reqlog"
)

// StreamMessage implements ai.StreamProvider over the streamGenerateContent
// SSE endpoint. Each SSE chunk is a generateContentResponse carrying
// incremental text parts, complete function calls, inline media, and
// cumulative usage. Grounded web sources collect footnote indices during the
// stream and the footnote block is appended to the visible text before the
// terminal, so the delta/terminal identity holds for cited answers too.
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

	observer.Trace(ctx, "Gemini provider preparing streaming request",
		observability.String(observability.AttrLLMProvider, p.Name()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
	)

	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	wire := requestToWire(request)
	requestBody, _ := json.Marshal(wire)
	recorder := reqlog.Start(ctx, p.Name(), request.Model, string(requestBody))

	streamURL := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, request.Model)
	httpResponse, err := utils.DoPostStream(ctx, p.client, streamURL, "", wire, p.apiKeyHeader())
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

			var chunk generateContentResponse
			if parseErr := json.Unmarshal([]byte(payload), &chunk); parseErr != nil {
				recorder.Finish(ctx, "", parseErr)
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse streaming chunk: %w", parseErr))
				return
			}

			if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
				blockErr := fmt.Errorf("prompt blocked: %s", chunk.PromptFeedback.BlockReason)
				recorder.Finish(ctx, "", blockErr)
				yield(ai.StreamEvent{}, blockErr)
				return
			}

			for _, event := range decoder.decode(ctx, &chunk) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}

	return ai.NewEventStream(iteratorFunc), nil
}

// streamDecoder folds vendor chunks into unified events for one stream.
type streamDecoder struct {
	provider *Provider
	model    string

	messageID string
	buf       *buffer.Buffer
	thinking  strings.Builder
	usage     ai.Usage
	images    int
	tracker   *citation.Tracker

	terminalEmitted bool
}

func newStreamDecoder(provider *Provider, model string) *streamDecoder {
	return &streamDecoder{
		provider: provider,
		model:    model,
		tracker:  citation.NewTracker(),
	}
}

// content returns the full accumulated text, for logging.
func (d *streamDecoder) content() string {
	if d.buf == nil {
		return ""
	}
	return d.buf.Total()
}

// ensureMessage fixes the logical message id on first use. The chunk's
// responseId is preferred; a uuid covers streams that omit it.
func (d *streamDecoder) ensureMessage(responseID string) {
	if d.messageID != "" {
		return
	}
	if responseID == "" {
		responseID = "gen_" + uuid.NewString()
	}
	d.messageID = responseID
	d.buf = buffer.New(d.messageID, 0)
}

// decode converts one chunk into zero or more events.
func (d *streamDecoder) decode(ctx context.Context, chunk *generateContentResponse) []ai.StreamEvent {
	d.ensureMessage(chunk.ResponseID)

	var events []ai.StreamEvent

	if chunk.UsageMetadata != nil {
		d.usage.Merge(usageToGeneric(chunk.UsageMetadata))
	}

	if len(chunk.Candidates) == 0 {
		return events
	}
	first := chunk.Candidates[0]
	registerSources(d.tracker, first.GroundingMetadata)

	if first.Content != nil {
		for _, fragment := range first.Content.Parts {
			events = append(events, d.decodePart(ctx, fragment)...)
		}
	}

	if first.FinishReason != "" {
		events = append(events, d.emitTerminal(ctx)...)
	}

	return events
}

// decodePart converts one content part. Function calls arrive complete, so
// they emit a tool_start directly; there is no argument-streaming phase.
func (d *streamDecoder) decodePart(ctx context.Context, fragment part) []ai.StreamEvent {
	var events []ai.StreamEvent

	if fragment.Text != "" {
		if fragment.Thought {
			d.thinking.WriteString(fragment.Text)
		} else if event, ok := d.buf.Write(fragment.Text); ok {
			events = append(events, event)
		}
	}

	if fragment.FunctionCall != nil {
		observer := observability.ObserverFromContext(ctx)
		arguments, ok := normalizeArgs(string(fragment.FunctionCall.Args))
		if !ok {
			observer.Warn(ctx, "Function call arguments never became valid JSON, dropping",
				observability.String(observability.AttrToolName, fragment.FunctionCall.Name))
		} else {
			events = append(events, ai.StreamEvent{
				Type:      ai.EventToolStart,
				MessageID: d.messageID,
				ToolCall: &ai.ToolCall{
					ID:       "call_" + uuid.NewString(),
					Type:     "function",
					Function: ai.ToolCallFunction{Name: fragment.FunctionCall.Name, Arguments: arguments},
				},
			})
		}
	}

	if fragment.InlineData != nil {
		payload, err := base64.StdEncoding.DecodeString(fragment.InlineData.Data)
		if err == nil {
			if strings.HasPrefix(fragment.InlineData.MimeType, "image/") {
				d.images++
			}
			events = append(events, ai.StreamEvent{
				Type:      ai.EventFileComplete,
				MessageID: d.messageID,
				File:      &ai.FilePayload{MimeType: fragment.InlineData.MimeType, Data: payload},
			})
		}
	}

	return events
}

// emitTerminal appends the footnote block for any cited sources, flushes the
// buffer, and emits the single message_complete. Double terminal signals are
// suppressed.
func (d *streamDecoder) emitTerminal(ctx context.Context) []ai.StreamEvent {
	if d.terminalEmitted {
		return nil
	}
	d.terminalEmitted = true
	d.ensureMessage("")

	var events []ai.StreamEvent

	if footnotes := d.tracker.GenerateFootnotes(); footnotes != "" {
		if event, ok := d.buf.Write(footnotes); ok {
			events = append(events, event)
		}
	}
	if event, ok := d.buf.Flush(); ok {
		events = append(events, event)
	}
	events = append(events, ai.StreamEvent{
		Type:      ai.EventMessageComplete,
		MessageID: d.messageID,
		Content:   d.buf.Total(),
		Thinking:  d.thinking.String(),
	})
	return events
}

// finish closes out the stream at EOF: the terminal sequence if the vendor
// never sent a finish reason, then the single cost_update with generated
// images counted for per-image pricing.
func (d *streamDecoder) finish(ctx context.Context) []ai.StreamEvent {
	events := d.emitTerminal(ctx)

	d.usage.Images = max(d.usage.Images, d.images)
	update := cost.Snapshot(d.provider.resolver, d.model, d.usage)
	return append(events, ai.StreamEvent{Type: ai.EventCostUpdate, MessageID: d.messageID, Cost: update})
}
