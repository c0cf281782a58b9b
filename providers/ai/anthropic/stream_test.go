package anthropic

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/providers/ai"
)

func eventFromJSON(t *testing.T, raw string) anthropic.MessageStreamEventUnion {
	t.Helper()
	var event anthropic.MessageStreamEventUnion
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("unmarshal stream event: %v", err)
	}
	return event
}

func decodeAll(t *testing.T, decoder *streamDecoder, raws ...string) []ai.StreamEvent {
	t.Helper()
	var events []ai.StreamEvent
	for _, raw := range raws {
		events = append(events, decoder.decode(context.Background(), eventFromJSON(t, raw))...)
	}
	return events
}

func eventsOfType(events []ai.StreamEvent, eventType ai.EventType) []ai.StreamEvent {
	var matched []ai.StreamEvent
	for _, event := range events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func TestStreamDecoder_DeltaIdentity(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4","content":[],"usage":{"input_tokens":10,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"The quick brown fox "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"jumps over "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"the lazy dog."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop"}`,
	)
	events = append(events, decoder.finish(context.Background(), anthropic.Usage{InputTokens: 10, OutputTokens: 9})...)

	completes := eventsOfType(events, ai.EventMessageComplete)
	if len(completes) != 1 {
		t.Fatalf("message_complete count = %d, want 1", len(completes))
	}
	if completes[0].MessageID != "msg_1" {
		t.Errorf("message id = %q", completes[0].MessageID)
	}

	var concatenated strings.Builder
	lastOrder := -1
	for _, delta := range eventsOfType(events, ai.EventMessageDelta) {
		if delta.Order <= lastOrder {
			t.Errorf("delta order %d not increasing past %d", delta.Order, lastOrder)
		}
		lastOrder = delta.Order
		concatenated.WriteString(delta.Content)
	}
	if concatenated.String() != completes[0].Content {
		t.Errorf("delta concatenation %q != terminal content %q", concatenated.String(), completes[0].Content)
	}
	if completes[0].Content != "The quick brown fox jumps over the lazy dog." {
		t.Errorf("content = %q", completes[0].Content)
	}

	costs := eventsOfType(events, ai.EventCostUpdate)
	if len(costs) != 1 {
		t.Fatalf("cost_update count = %d, want 1", len(costs))
	}
	usage := costs[0].Cost.Usage
	if usage.InputTokens != 10 || usage.OutputTokens != 9 {
		t.Errorf("usage = %+v", usage)
	}
	if !costs[0].Cost.NoPricing {
		t.Errorf("expected no-pricing snapshot without a resolver, got %+v", costs[0].Cost)
	}
}

func TestStreamDecoder_ToolUseTwoPhase(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4","content":[],"usage":{"input_tokens":5,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Rome\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop"}`,
	)

	deltas := eventsOfType(events, ai.EventToolDelta)
	if len(deltas) != 1 {
		t.Fatalf("tool_delta count = %d, want 1", len(deltas))
	}
	if deltas[0].ToolCall.Function.Name != "get_weather" || deltas[0].ToolCall.Function.Arguments != "{}" {
		t.Errorf("placeholder = %+v", deltas[0].ToolCall)
	}

	starts := eventsOfType(events, ai.EventToolStart)
	if len(starts) != 1 {
		t.Fatalf("tool_start count = %d, want 1", len(starts))
	}
	call := starts[0].ToolCall
	if call.ID != "toolu_1" || call.Function.Name != "get_weather" {
		t.Errorf("call = %+v", call)
	}
	if call.Function.Arguments != `{"city":"Rome"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
}

func TestStreamDecoder_TruncatedToolInputRepaired(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"query\":\"golang"}}`,
		`{"type":"content_block_stop","index":0}`,
	)

	starts := eventsOfType(events, ai.EventToolStart)
	if len(starts) != 1 {
		t.Fatalf("tool_start count = %d, want 1", len(starts))
	}
	if !starts[0].ToolCall.ValidArguments() {
		t.Errorf("arguments not valid JSON after repair: %q", starts[0].ToolCall.Function.Arguments)
	}
}

func TestStreamDecoder_UnstoppedToolsFinalizeInStartOrder(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	// Neither block gets a content_block_stop before message_stop.
	events := decodeAll(t, decoder,
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4","content":[],"usage":{"input_tokens":5,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"first","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_2","name":"second","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
		`{"type":"message_stop"}`,
	)

	starts := eventsOfType(events, ai.EventToolStart)
	if len(starts) != 2 {
		t.Fatalf("tool_start count = %d, want 2", len(starts))
	}
	if starts[0].ToolCall.Function.Name != "first" || starts[1].ToolCall.Function.Name != "second" {
		t.Errorf("tool order = %q, %q, want first then second",
			starts[0].ToolCall.Function.Name, starts[1].ToolCall.Function.Name)
	}
}

func TestStreamDecoder_DuplicateToolIDsDropped(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"query\":\"a\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"search","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"query\":\"b\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
	)

	starts := eventsOfType(events, ai.EventToolStart)
	if len(starts) != 1 {
		t.Fatalf("tool_start count = %d, want 1 after dedup", len(starts))
	}
	if starts[0].ToolCall.Function.Arguments != `{"query":"a"}` {
		t.Errorf("first call should win, got %q", starts[0].ToolCall.Function.Arguments)
	}
}

func TestStreamDecoder_ThinkingOnComplete(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"step one. "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"step two."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Done."}}`,
		`{"type":"message_stop"}`,
	)

	completes := eventsOfType(events, ai.EventMessageComplete)
	if len(completes) != 1 {
		t.Fatalf("message_complete count = %d, want 1", len(completes))
	}
	if completes[0].Thinking != "step one. step two." {
		t.Errorf("thinking = %q", completes[0].Thinking)
	}
	if completes[0].Content != "Done." {
		t.Errorf("content = %q", completes[0].Content)
	}
}

func TestStreamDecoder_DoubleTerminalSuppressed(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decodeAll(t, decoder,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`,
		`{"type":"message_stop"}`,
		`{"type":"message_stop"}`,
	)
	events = append(events, decoder.finish(context.Background(), anthropic.Usage{})...)

	if got := len(eventsOfType(events, ai.EventMessageComplete)); got != 1 {
		t.Errorf("message_complete count = %d, want 1", got)
	}
}

func TestStreamDecoder_FinishWithoutUsage(t *testing.T) {
	decoder := newStreamDecoder(New(), "claude-sonnet-4")

	events := decoder.finish(context.Background(), anthropic.Usage{})

	costs := eventsOfType(events, ai.EventCostUpdate)
	if len(costs) != 1 {
		t.Fatalf("cost_update count = %d, want 1", len(costs))
	}
	if !costs[0].Cost.Estimated || !costs[0].Cost.NoPricing {
		t.Errorf("snapshot = %+v, want estimated no-pricing", costs[0].Cost)
	}
}

type flatLookup struct{}

func (flatLookup) PricingFor(modelID string) (cost.Pricing, string, error) {
	return cost.Pricing{Flat: &cost.Rates{InputPerMillion: 3, OutputPerMillion: 15}}, modelID, nil
}

func TestStreamDecoder_FinishWithResolver(t *testing.T) {
	provider := New().WithCostResolver(cost.NewResolver(flatLookup{}))
	decoder := newStreamDecoder(provider, "claude-sonnet-4")

	events := decoder.finish(context.Background(), anthropic.Usage{InputTokens: 1_000_000, OutputTokens: 100_000})

	costs := eventsOfType(events, ai.EventCostUpdate)
	if len(costs) != 1 {
		t.Fatalf("cost_update count = %d, want 1", len(costs))
	}
	update := costs[0].Cost
	if update.NoPricing || update.Estimated {
		t.Errorf("flags = %+v", update)
	}
	if update.Cost < 4.49 || update.Cost > 4.51 {
		t.Errorf("cost = %v, want 4.50", update.Cost)
	}
}
