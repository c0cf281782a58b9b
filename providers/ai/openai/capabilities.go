package openai

import "strings"

// Capabilities represents the feature set of a given OpenAI-compatible
// endpoint. It drives tool-calling mode selection and optional features such
// as structured outputs. Capabilities are populated automatically by
// [detectCapabilities] but can be overridden via [Provider.WithCapabilities]
// for non-standard hosts.
type Capabilities struct {
	// ToolCallMode selects how tool declarations reach the model.
	ToolCallMode ToolCallMode

	SupportsMultimodal        bool // Vision support
	SupportsStructuredOutputs bool // Strict JSON schema
	SupportsReasoning         bool // o-series reasoning deltas
}

// ToolCallMode specifies how a provider handles function calling.
type ToolCallMode string

const (
	// ToolCallModeNative sends tool declarations through the tools field and
	// receives calls as structured tool_calls deltas.
	ToolCallModeNative ToolCallMode = "native"

	// ToolCallModeSimulated folds tool declarations into the system prompt
	// and recovers calls from trailing marker blocks in the visible text.
	// Used for hosts whose function calling is absent or unreliable.
	ToolCallModeSimulated ToolCallMode = "simulated"
)

// detectCapabilities attempts to detect endpoint capabilities based on baseURL
func detectCapabilities(baseURL string) Capabilities {
	baseURL = strings.ToLower(baseURL)

	// Real OpenAI API
	if strings.Contains(baseURL, "api.openai.com") {
		return Capabilities{
			ToolCallMode:              ToolCallModeNative,
			SupportsMultimodal:        true,
			SupportsStructuredOutputs: true,
			SupportsReasoning:         true,
		}
	}

	// Azure OpenAI
	if strings.Contains(baseURL, "azure.com") || strings.Contains(baseURL, "openai.azure") {
		return Capabilities{
			ToolCallMode:              ToolCallModeNative,
			SupportsMultimodal:        true,
			SupportsStructuredOutputs: true,
		}
	}

	// Local Ollama deployments: function calling exists but is unreliable on
	// most community models, so fall back to the marker protocol.
	if strings.Contains(baseURL, "localhost:11434") || strings.Contains(baseURL, "127.0.0.1:11434") {
		return Capabilities{
			ToolCallMode:       ToolCallModeSimulated,
			SupportsMultimodal: true,
		}
	}

	// Conservative defaults for unknown providers
	return Capabilities{
		ToolCallMode: ToolCallModeNative,
	}
}
