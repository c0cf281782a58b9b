package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"

	"github.com/leofalp/aigate/core/buffer"
	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/core/simcall"
	"github.com/leofalp/aigate/providers/ai"
)

// Provider is an offline provider that streams lorem ipsum text. It needs no
// network or API key and speaks the simulated tool-call marker protocol, so
// the full pipeline (delta buffering, marker extraction, tool dispatch, cost
// snapshots) can be exercised end to end in examples and tests.
type Provider struct {
	generator  *loremgen.Lorem
	resolver   *cost.Resolver
	chunkDelay time.Duration
	sentences  int
}

var _ ai.StreamProvider = (*Provider)(nil)

// New creates a lorem provider with a default of three sentences per answer.
func New() *Provider {
	return &Provider{
		generator: loremgen.New(),
		sentences: 3,
	}
}

// Name returns the vendor identifier used in catalog routing.
func (p *Provider) Name() string { return "lorem" }

// WithAPIKey is a no-op: the offline provider needs no credentials.
func (p *Provider) WithAPIKey(string) ai.Provider { return p }

// WithBaseURL is a no-op: the offline provider makes no network calls.
func (p *Provider) WithBaseURL(string) ai.Provider { return p }

// WithHTTPClient is a no-op: the offline provider makes no network calls.
func (p *Provider) WithHTTPClient(*http.Client) ai.Provider { return p }

// WithCostResolver wires a pricing resolver. The stock catalog carries no
// price data for lorem models, so snapshots stay flagged no-pricing either way.
func (p *Provider) WithCostResolver(resolver *cost.Resolver) *Provider {
	p.resolver = resolver
	return p
}

// WithChunkDelay adds a pause between streamed fragments, simulating network
// pacing. Zero (the default) streams as fast as the consumer reads.
func (p *Provider) WithChunkDelay(delay time.Duration) *Provider {
	p.chunkDelay = delay
	return p
}

// WithSentences sets how many sentences each answer carries.
func (p *Provider) WithSentences(count int) *Provider {
	if count > 0 {
		p.sentences = count
	}
	return p
}

// generate produces the raw model output for one request: lorem sentences,
// plus a trailing marker block invoking the first declared tool when the
// request offers tools.
func (p *Provider) generate(request ai.ChatRequest) string {
	var sb strings.Builder
	for i := 0; i < p.sentences; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(p.generator.Sentence(5, 12))
	}

	if len(request.Tools) > 0 && request.ToolChoice != "none" {
		arguments := map[string]string{"query": p.generator.Word(3, 8)}
		argumentsJSON, _ := json.Marshal(arguments)
		callsJSON, _ := json.Marshal([]map[string]any{{
			"name":      request.Tools[0].Name,
			"arguments": json.RawMessage(argumentsJSON),
		}})
		fmt.Fprintf(&sb, "\n\n%s %s", simcall.Marker, callsJSON)
	}

	return sb.String()
}

// SendMessage produces a complete response immediately.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraction := simcall.Extract(p.generate(request))
	response := &ai.ChatResponse{
		MessageID: "lorem_" + uuid.NewString(),
		Model:     request.Model,
		Content:   extraction.Content,
		ToolCalls: extraction.Calls,
	}

	usage := p.estimateUsage(request, extraction.Content)
	response.Cost = cost.Snapshot(p.resolver, request.Model, usage)
	return response, nil
}

// StreamMessage streams the visible text word by word through the delta
// buffer and ends with the recovered tool calls and a cost snapshot. The
// marker block never reaches the consumer, matching the behavior of real
// adapters in simulated tool mode.
func (p *Provider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.EventStream, error) {
	extraction := simcall.Extract(p.generate(request))
	messageID := "lorem_" + uuid.NewString()
	control := ai.ControlFromContext(ctx)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		buf := buffer.New(messageID, 0)

		for _, word := range strings.SplitAfter(extraction.Content, " ") {
			if err := control.Wait(ctx); err != nil {
				yield(ai.StreamEvent{}, err)
				return
			}
			if p.chunkDelay > 0 {
				select {
				case <-time.After(p.chunkDelay):
				case <-ctx.Done():
					yield(ai.StreamEvent{}, ctx.Err())
					return
				}
			}
			if event, ok := buf.Write(word); ok {
				if !yield(event, nil) {
					return
				}
			}
		}

		if event, ok := buf.Flush(); ok {
			if !yield(event, nil) {
				return
			}
		}
		if !yield(ai.StreamEvent{
			Type:      ai.EventMessageComplete,
			MessageID: messageID,
			Content:   buf.Total(),
		}, nil) {
			return
		}

		for i := range extraction.Calls {
			call := extraction.Calls[i]
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			if !yield(ai.StreamEvent{Type: ai.EventToolStart, MessageID: messageID, ToolCall: &call}, nil) {
				return
			}
		}

		usage := p.estimateUsage(request, extraction.Content)
		update := cost.Snapshot(p.resolver, request.Model, usage)
		yield(ai.StreamEvent{Type: ai.EventCostUpdate, MessageID: messageID, Cost: update}, nil)
	}

	return ai.NewEventStream(iteratorFunc), nil
}

// estimateUsage approximates token counts by word count. Good enough for a
// mock; real adapters report vendor counters.
func (p *Provider) estimateUsage(request ai.ChatRequest, output string) ai.Usage {
	inputWords := 0
	for _, message := range request.Messages {
		inputWords += len(strings.Fields(message.Content))
	}
	outputWords := len(strings.Fields(output))
	return ai.Usage{
		InputTokens:  inputWords,
		OutputTokens: outputWords,
		TotalTokens:  inputWords + outputWords,
	}
}
