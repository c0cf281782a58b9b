package ai

import (
	"github.com/leofalp/aigate/internal/jsonschema"
)

/*
	##### ADAPTER INPUT #####
*/

// ChatRequest represents one logical request to a provider adapter: the full
// conversation history plus the model identifier and optional settings.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`             // Model id, alias, or intensity-suffixed variant
	Messages         []Message         `json:"messages"`                    // Conversation history, oldest first, system prompt excluded
	SystemPrompt     string            `json:"system_prompt,omitempty"`     // Optional system prompt
	Tools            []ToolDescription `json:"tools,omitempty"`             // Tool definitions offered to the model
	ToolChoice       string            `json:"tool_choice,omitempty"`       // "auto", "none", or a specific tool name
	ResponseFormat   *ResponseFormat   `json:"response_format,omitempty"`   // Optional structured-output constraint
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"` // Optional sampling settings

	// AgentID scopes the request to a logical owner. The gateway uses it as
	// the sequential-queue owner key for tool execution ordering.
	AgentID string `json:"agent_id,omitempty"`
}

// ToolDescription declares one tool the model may call.
type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Message represents a single turn in a conversation. The Role field selects
// which of the optional fields are meaningful.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	// Tool calling fields
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // role=assistant requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool, links back to the originating call
	Name       string     `json:"name,omitempty"`         // role=tool, name of the tool that produced this result

	// Thinking holds chain-of-thought text for assistant turns that carried
	// reasoning content. Adapters that support it replay the turn verbatim.
	Thinking string `json:"thinking,omitempty"`

	// Images are inline image attachments for user turns. Payloads must
	// already be vendor-size compliant; callers run oversized media through
	// a Transcoder first.
	Images []FilePayload `json:"images,omitempty"`
}

// GenerationConfig carries optional sampling parameters. Zero values mean
// "provider default".
type GenerationConfig struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"` // [0..2]; higher is more random
	TopP        float32 `json:"top_p,omitempty"`       // Nucleus sampling [0..1]
}

// ResponseFormat constrains the shape of the model's output.
type ResponseFormat struct {
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"` // JSON-schema constraint, provider support varies
	Strict       bool               `json:"strict,omitempty"`
}

/*
	##### ADAPTER OUTPUT #####
*/

// Usage holds raw token counters accumulated over one stream. Vendors spread
// these across multiple chunks; adapters merge every snapshot they see.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`

	// Extended token metrics
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	CachedTokens    int `json:"cached_tokens,omitempty"` // Prompt tokens served from vendor cache

	// Images counts non-text output units for per-unit pricing.
	Images int `json:"images,omitempty"`
}

// Merge folds a later usage snapshot into u, keeping the larger counter for
// each field. Vendors re-send running totals rather than increments, so max
// is the correct combination.
func (u *Usage) Merge(other Usage) {
	u.InputTokens = max(u.InputTokens, other.InputTokens)
	u.OutputTokens = max(u.OutputTokens, other.OutputTokens)
	u.TotalTokens = max(u.TotalTokens, other.TotalTokens)
	u.ReasoningTokens = max(u.ReasoningTokens, other.ReasoningTokens)
	u.CachedTokens = max(u.CachedTokens, other.CachedTokens)
	u.Images = max(u.Images, other.Images)
}

// IsZero reports whether no counter was ever populated.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// ChatResponse is the accumulated, non-streaming view of one assistant
// answer, produced by EventStream.Collect or a synchronous SendMessage.
type ChatResponse struct {
	MessageID string        `json:"message_id"`
	Model     string        `json:"model"`
	Content   string        `json:"content"`
	Thinking  string        `json:"thinking,omitempty"`
	ToolCalls []ToolCall    `json:"tool_calls,omitempty"`
	Files     []FilePayload `json:"files,omitempty"`
	Cost      *CostUpdate   `json:"cost,omitempty"`
}

// MessageRole represents the role of a message; compatible with string.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)
