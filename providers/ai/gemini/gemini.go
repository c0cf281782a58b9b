package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/aigate/core/citation"
	"github.com/leofalp/aigate/core/cost"
	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider implements ai.StreamProvider for the Gemini API.
type Provider struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	resolver *cost.Resolver
}

var _ ai.StreamProvider = (*Provider)(nil)

// New creates a provider instance with defaults from the environment.
func New() *Provider {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Name returns the vendor identifier used in catalog routing.
func (p *Provider) Name() string { return "gemini" }

// WithAPIKey sets the API key for the provider
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHTTPClient sets a custom HTTP client
func (p *Provider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithCostResolver wires a pricing resolver so streams end with a priced
// cost_update. Without one the snapshot carries raw usage flagged no-pricing.
func (p *Provider) WithCostResolver(resolver *cost.Resolver) *Provider {
	p.resolver = resolver
	return p
}

// apiKeyHeader returns the Gemini auth header. The key travels in
// x-goog-api-key rather than a Bearer token.
func (p *Provider) apiKeyHeader() utils.HeaderOption {
	return utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey}
}

// SendMessage performs a synchronous (non-streaming) completion.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, request.Model)
	resp, err := utils.DoPostSync[generateContentResponse](ctx, p.client, url, "", requestToWire(request), p.apiKeyHeader())
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates in response")
	}

	return p.responseToGeneric(request.Model, resp), nil
}

// responseToGeneric maps a completed response onto the unified shape. Cited
// web sources get stable footnote indices appended after the visible text.
func (p *Provider) responseToGeneric(model string, resp *generateContentResponse) *ai.ChatResponse {
	messageID := resp.ResponseID
	if messageID == "" {
		messageID = "gen_" + uuid.NewString()
	}

	response := &ai.ChatResponse{
		MessageID: messageID,
		Model:     firstNonEmpty(resp.ModelVersion, model),
	}

	tracker := citation.NewTracker()
	first := resp.Candidates[0]

	if first.Content != nil {
		var text, thinking []string
		for _, fragment := range first.Content.Parts {
			if fragment.Text != "" {
				if fragment.Thought {
					thinking = append(thinking, fragment.Text)
				} else {
					text = append(text, fragment.Text)
				}
			}
			if fragment.FunctionCall != nil {
				arguments, ok := normalizeArgs(string(fragment.FunctionCall.Args))
				if !ok {
					continue
				}
				response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
					ID:       "call_" + uuid.NewString(),
					Type:     "function",
					Function: ai.ToolCallFunction{Name: fragment.FunctionCall.Name, Arguments: arguments},
				})
			}
			if fragment.InlineData != nil {
				if payload, err := base64.StdEncoding.DecodeString(fragment.InlineData.Data); err == nil {
					response.Files = append(response.Files, ai.FilePayload{
						MimeType: fragment.InlineData.MimeType,
						Data:     payload,
					})
				}
			}
		}
		response.Content = strings.Join(text, "")
		response.Thinking = strings.Join(thinking, "")
	}

	registerSources(tracker, first.GroundingMetadata)
	response.Content += tracker.GenerateFootnotes()

	usage := usageToGeneric(resp.UsageMetadata)
	usage.Images = countImages(response.Files)
	response.Cost = cost.Snapshot(p.resolver, model, usage)
	return response
}

// registerSources allocates footnote indices for every grounded web source,
// in the order the vendor listed them.
func registerSources(tracker *citation.Tracker, metadata *groundingMetadata) {
	if metadata == nil {
		return
	}
	for _, chunk := range metadata.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			tracker.FormatCitation(citation.Source{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}
}

func countImages(files []ai.FilePayload) int {
	images := 0
	for _, file := range files {
		if strings.HasPrefix(file.MimeType, "image/") {
			images++
		}
	}
	return images
}

// normalizeArgs coerces function-call arguments into a valid JSON body.
func normalizeArgs(raw string) (string, bool) {
	if raw == "" || raw == "null" {
		return "{}", true
	}
	if json.Valid([]byte(raw)) {
		return raw, true
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil || !json.Valid([]byte(repaired)) {
		return "", false
	}
	return repaired, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
