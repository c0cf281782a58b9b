package openai

import (
	"github.com/leofalp/aigate/core/simcall"
	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
)

// requestToWire builds the chat completions request body. In simulated
// tool-call mode the tool declarations are folded into the system prompt as
// marker instructions instead of being sent as native tools.
func requestToWire(request ai.ChatRequest, simulate bool) chatRequest {
	wire := chatRequest{
		Model:    request.Model,
		Messages: messagesToWire(request),
	}

	if len(request.Tools) > 0 && !simulate {
		wire.Tools = make([]chatTool, 0, len(request.Tools))
		for _, tool := range request.Tools {
			wire.Tools = append(wire.Tools, chatTool{
				Type: "function",
				Function: chatToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		wire.ToolChoice = toolChoiceToWire(request.ToolChoice)
	}

	if request.ResponseFormat != nil && request.ResponseFormat.OutputSchema != nil {
		wire.ResponseFormat = &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaSpec{
				Name:   "response",
				Strict: request.ResponseFormat.Strict,
				Schema: request.ResponseFormat.OutputSchema,
			},
		}
	}

	if config := request.GenerationConfig; config != nil {
		if config.Temperature != 0 {
			wire.Temperature = utils.Ptr(config.Temperature)
		}
		if config.TopP != 0 {
			wire.TopP = utils.Ptr(config.TopP)
		}
		if config.MaxTokens != 0 {
			wire.MaxTokens = utils.Ptr(config.MaxTokens)
		}
	}

	return wire
}

// messagesToWire flattens the system prompt and history into the wire message
// list. Simulated-mode marker instructions are appended to the system prompt
// by the caller before conversion via systemPrompt.
func messagesToWire(request ai.ChatRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(request.Messages)+1)

	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: request.SystemPrompt})
	}

	for _, message := range request.Messages {
		messages = append(messages, messageToWire(message))
	}

	return messages
}

func messageToWire(message ai.Message) chatMessage {
	wire := chatMessage{Role: string(message.Role)}

	switch message.Role {
	case ai.RoleTool:
		wire.ToolCallID = message.ToolCallID
		wire.Name = message.Name
		wire.Content = message.Content

	case ai.RoleAssistant:
		if message.Content != "" {
			wire.Content = message.Content
		}
		for _, call := range message.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, chatToolCall{
				ID:   call.ID,
				Type: "function",
				Function: chatToolCallFunction{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}

	default:
		if len(message.Images) == 0 {
			wire.Content = message.Content
			break
		}
		parts := []contentPart{{Type: "text", Text: message.Content}}
		for _, image := range message.Images {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURLBlock{URL: dataURL(image.MimeType, image.Data)},
			})
		}
		wire.Content = parts
	}

	return wire
}

// toolChoiceToWire maps the request's tool-choice strategy onto the wire
// representation: "auto"/"none" pass through, anything else names a specific
// tool the model is forced to call.
func toolChoiceToWire(choice string) any {
	switch choice {
	case "", "auto":
		return "auto"
	case "none", "required":
		return choice
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": choice},
		}
	}
}

// simulatedSystemPrompt appends the marker-protocol instructions to the
// request's system prompt so the model emits trailing TOOL_CALLS blocks.
func simulatedSystemPrompt(request ai.ChatRequest) ai.ChatRequest {
	if len(request.Tools) == 0 {
		return request
	}
	instructions := simcall.Instructions(request.Tools)
	if request.SystemPrompt != "" {
		request.SystemPrompt += "\n\n" + instructions
	} else {
		request.SystemPrompt = instructions
	}
	return request
}

// usageToGeneric converts the wire usage block into the unified counters.
func usageToGeneric(usage *chatUsage) ai.Usage {
	if usage == nil {
		return ai.Usage{}
	}
	generic := ai.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}
	if usage.PromptTokensDetails != nil {
		generic.CachedTokens = usage.PromptTokensDetails.CachedTokens
	}
	if usage.CompletionTokensDetails != nil {
		generic.ReasoningTokens = usage.CompletionTokensDetails.ReasoningTokens
	}
	return generic
}
