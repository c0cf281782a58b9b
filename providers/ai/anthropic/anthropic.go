package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/providers/ai"
)

// Provider implements ai.StreamProvider for Anthropic Claude models through
// the official SDK. Claude speaks native tool use, so this adapter never
// falls back to the simulated marker protocol.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	client     anthropic.Client
	resolver   *cost.Resolver
}

var _ ai.StreamProvider = (*Provider)(nil)

// New creates a provider instance with defaults from the environment.
func New() *Provider {
	p := &Provider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: os.Getenv("ANTHROPIC_API_BASE_URL"),
	}
	p.rebuild()
	return p
}

// rebuild reconstructs the SDK client after a configuration change.
func (p *Provider) rebuild() {
	options := []option.RequestOption{option.WithAPIKey(p.apiKey)}
	if p.baseURL != "" {
		options = append(options, option.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		options = append(options, option.WithHTTPClient(p.httpClient))
	}
	p.client = anthropic.NewClient(options...)
}

// Name returns the vendor identifier used in catalog routing.
func (p *Provider) Name() string { return "anthropic" }

// WithAPIKey sets the API key for the provider
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	p.rebuild()
	return p
}

// WithBaseURL sets the base URL for the API
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	p.rebuild()
	return p
}

// WithHTTPClient sets a custom HTTP client
func (p *Provider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.httpClient = httpClient
	p.rebuild()
	return p
}

// WithCostResolver wires a pricing resolver so streams end with a priced
// cost_update. Without one the snapshot carries raw usage flagged no-pricing.
func (p *Provider) WithCostResolver(resolver *cost.Resolver) *Provider {
	p.resolver = resolver
	return p
}

// SendMessage performs a synchronous (non-streaming) completion.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	message, err := p.client.Messages.New(ctx, buildMessageParams(request))
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	return p.responseToGeneric(message), nil
}

// responseToGeneric maps a completed SDK message onto the unified shape,
// deduplicating tool-use ids and coercing tool input into valid JSON.
func (p *Provider) responseToGeneric(message *anthropic.Message) *ai.ChatResponse {
	response := &ai.ChatResponse{
		MessageID: message.ID,
		Model:     string(message.Model),
	}

	seen := make(map[string]bool)
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			response.Content += block.Text
		case "thinking":
			response.Thinking += block.Thinking
		case "tool_use":
			if block.ID != "" && seen[block.ID] {
				continue
			}
			arguments, ok := normalizeArguments(string(block.Input))
			if !ok {
				continue
			}
			seen[block.ID] = true
			response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: ai.ToolCallFunction{Name: block.Name, Arguments: arguments},
			})
		}
	}

	response.Cost = cost.Snapshot(p.resolver, string(message.Model), usageToGeneric(message.Usage))
	return response
}
