package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/core/simcall"
	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// Provider implements ai.StreamProvider for OpenAI-compatible APIs.
type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities Capabilities
	resolver     *cost.Resolver
}

var _ ai.StreamProvider = (*Provider)(nil)

// New creates a provider instance with defaults from the environment.
func New() *Provider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		apiKey:       apiKey,
		baseURL:      baseURL,
		client:       &http.Client{},
		capabilities: detectCapabilities(baseURL),
	}
}

// Name returns the vendor identifier used in catalog routing.
func (p *Provider) Name() string { return "openai" }

// WithAPIKey sets the API key for the provider
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API and re-detects capabilities.
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	p.capabilities = detectCapabilities(baseURL)
	return p
}

// WithHTTPClient sets a custom HTTP client
func (p *Provider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithCapabilities overrides the auto-detected capabilities. Use this for
// OpenAI-compatible hosts the detection heuristics do not know about.
func (p *Provider) WithCapabilities(capabilities Capabilities) *Provider {
	p.capabilities = capabilities
	return p
}

// WithCostResolver wires a pricing resolver so streams end with a priced
// cost_update. Without one the snapshot carries raw usage flagged no-pricing.
func (p *Provider) WithCostResolver(resolver *cost.Resolver) *Provider {
	p.resolver = resolver
	return p
}

// simulated reports whether this provider runs the marker-based tool protocol.
func (p *Provider) simulated() bool {
	return p.capabilities.ToolCallMode == ToolCallModeSimulated
}

// SendMessage performs a synchronous (non-streaming) completion.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	if p.simulated() {
		request = simulatedSystemPrompt(request)
	}
	wire := requestToWire(request, p.simulated())

	resp, err := utils.DoPostSync[chatResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, wire)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return p.responseToGeneric(resp), nil
}

// responseToGeneric maps a completed wire response onto the unified shape,
// deduplicating tool-call ids and recovering simulated calls from the text.
func (p *Provider) responseToGeneric(resp *chatResponse) *ai.ChatResponse {
	choice := resp.Choices[0]
	response := &ai.ChatResponse{
		MessageID: resp.ID,
		Model:     resp.Model,
		Content:   choice.Message.Content,
		Thinking:  choice.Message.Reasoning,
	}

	seen := make(map[string]bool)
	for _, call := range choice.Message.ToolCalls {
		if call.ID != "" && seen[call.ID] {
			continue
		}
		seen[call.ID] = true
		response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: ai.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}

	if p.simulated() {
		extraction := simcall.Extract(response.Content)
		response.Content = extraction.Content
		response.ToolCalls = append(response.ToolCalls, extraction.Calls...)
	}

	response.Cost = cost.Snapshot(p.resolver, resp.Model, usageToGeneric(resp.Usage))
	return response
}
