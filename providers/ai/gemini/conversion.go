package gemini

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/leofalp/aigate/providers/ai"
)

// Built-in grounding tools, selected by name in the unified tool list.
const (
	ToolGoogleSearch = "google_search"
	ToolURLContext   = "url_context"
)

// requestToWire converts a unified request into a generateContentRequest.
func requestToWire(request ai.ChatRequest) generateContentRequest {
	wire := generateContentRequest{
		Contents: contentsToWire(request.Messages),
	}

	if request.SystemPrompt != "" {
		wire.SystemInstruction = &systemInstruction{Parts: []part{{Text: request.SystemPrompt}}}
	}

	wire.GenerationConfig = generationConfigToWire(request.GenerationConfig, request.ResponseFormat)

	if len(request.Tools) > 0 {
		wire.Tools = toolsToWire(request.Tools)
		wire.ToolConfig = toolConfigToWire(request.ToolChoice)
	}

	return wire
}

// contentsToWire converts the conversation history. Role mapping: user stays
// user, assistant becomes model, tool results become user turns carrying a
// functionResponse part.
func contentsToWire(messages []ai.Message) []content {
	var contents []content

	for _, message := range messages {
		switch message.Role {
		case ai.RoleAssistant:
			turn := content{Role: "model"}
			if message.Content != "" {
				turn.Parts = append(turn.Parts, part{Text: message.Content})
			}
			for _, call := range message.ToolCalls {
				turn.Parts = append(turn.Parts, part{FunctionCall: &functionCall{
					Name: call.Function.Name,
					Args: json.RawMessage(call.Function.Arguments),
				}})
			}
			if len(turn.Parts) > 0 {
				contents = append(contents, turn)
			}

		case ai.RoleTool:
			contents = append(contents, content{
				Role: "user",
				Parts: []part{{FunctionResponse: &functionResponse{
					Name:     message.Name,
					Response: toolResultToWire(message.Content),
				}}},
			})

		default:
			turn := content{Role: "user"}
			if message.Content != "" || len(message.Images) == 0 {
				turn.Parts = append(turn.Parts, part{Text: message.Content})
			}
			for _, image := range message.Images {
				turn.Parts = append(turn.Parts, part{InlineData: &inlineData{
					MimeType: image.MimeType,
					Data:     base64.StdEncoding.EncodeToString(image.Data),
				}})
			}
			contents = append(contents, turn)
		}
	}

	return contents
}

// toolResultToWire wraps a tool result for the functionResponse part. Gemini
// requires a JSON object; plain-text results are wrapped in one.
func toolResultToWire(result string) json.RawMessage {
	trimmed := strings.TrimSpace(result)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"result": result})
	return wrapped
}

func generationConfigToWire(config *ai.GenerationConfig, format *ai.ResponseFormat) *generationConfig {
	if config == nil && format == nil {
		return nil
	}

	wire := &generationConfig{}
	if config != nil {
		if config.Temperature > 0 {
			temperature := float64(config.Temperature)
			wire.Temperature = &temperature
		}
		if config.TopP > 0 {
			topP := float64(config.TopP)
			wire.TopP = &topP
		}
		if config.MaxTokens > 0 {
			maxTokens := config.MaxTokens
			wire.MaxOutputTokens = &maxTokens
		}
	}

	if format != nil && format.OutputSchema != nil {
		wire.ResponseMimeType = "application/json"
		if schema, err := json.Marshal(format.OutputSchema); err == nil {
			wire.ResponseSchema = schema
		}
	}

	return wire
}

// toolsToWire converts tool declarations, routing the built-in grounding
// tools by name and collecting the rest as function declarations.
func toolsToWire(tools []ai.ToolDescription) []tool {
	var wire []tool
	var declarations []functionDeclaration

	for _, description := range tools {
		switch description.Name {
		case ToolGoogleSearch:
			wire = append(wire, tool{GoogleSearch: &googleSearchTool{}})
		case ToolURLContext:
			wire = append(wire, tool{URLContext: &urlContextTool{}})
		default:
			declaration := functionDeclaration{
				Name:        description.Name,
				Description: description.Description,
			}
			if description.Parameters != nil {
				if parameters, err := json.Marshal(description.Parameters); err == nil {
					declaration.Parameters = parameters
				}
			}
			declarations = append(declarations, declaration)
		}
	}

	if len(declarations) > 0 {
		wire = append(wire, tool{FunctionDeclarations: declarations})
	}
	return wire
}

func toolConfigToWire(choice string) *toolConfig {
	config := &functionCallingConfig{}
	switch choice {
	case "", "auto":
		config.Mode = "AUTO"
	case "none":
		config.Mode = "NONE"
	case "required":
		config.Mode = "ANY"
	default:
		config.Mode = "ANY"
		config.AllowedFunctionNames = []string{choice}
	}
	return &toolConfig{FunctionCallingConfig: config}
}

// usageToGeneric maps a usage snapshot onto the unified shape. Gemini re-sends
// cumulative counters on every chunk; callers merge snapshots.
func usageToGeneric(metadata *usageMetadata) ai.Usage {
	if metadata == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		InputTokens:     metadata.PromptTokenCount,
		OutputTokens:    metadata.CandidatesTokenCount,
		TotalTokens:     metadata.TotalTokenCount,
		ReasoningTokens: metadata.ThoughtsTokenCount,
		CachedTokens:    metadata.CachedContentTokenCount,
	}
}
