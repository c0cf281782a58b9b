package anthropic

import (
	"encoding/base64"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/aigate/providers/ai"
)

// Anthropic requires max_tokens on every request; this is the fallback when
// the caller does not set one.
const defaultMaxTokens = 4096

// buildMessageParams converts a unified request into SDK parameters. Shared
// by the sync and streaming paths.
func buildMessageParams(request ai.ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messagesToParams(request.Messages),
		MaxTokens: int64(defaultMaxTokens),
	}

	if request.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: request.SystemPrompt}}
	}

	if config := request.GenerationConfig; config != nil {
		if config.MaxTokens > 0 {
			params.MaxTokens = int64(config.MaxTokens)
		}
		if config.Temperature > 0 {
			params.Temperature = anthropic.Float(float64(config.Temperature))
		}
		if config.TopP > 0 {
			params.TopP = anthropic.Float(float64(config.TopP))
		}
	}

	if len(request.Tools) > 0 {
		params.Tools = toolsToParams(request.Tools)
		if choice, ok := toolChoiceToParam(request.ToolChoice); ok {
			params.ToolChoice = choice
		}
	}

	return params
}

// messagesToParams converts the conversation history. Runs of tool results
// are folded into a single user message, since every tool_result answering
// one assistant turn must travel in the same turn.
func messagesToParams(messages []ai.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for i := 0; i < len(messages); i++ {
		message := messages[i]
		switch message.Role {
		case ai.RoleTool:
			blocks := []anthropic.ContentBlockParamUnion{
				anthropic.NewToolResultBlock(message.ToolCallID, message.Content, false),
			}
			for i+1 < len(messages) && messages[i+1].Role == ai.RoleTool {
				i++
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[i].ToolCallID, messages[i].Content, false))
			}
			params = append(params, anthropic.NewUserMessage(blocks...))

		case ai.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if message.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(message.Content))
			}
			for _, call := range message.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(
					call.ID, json.RawMessage(call.Function.Arguments), call.Function.Name))
			}
			params = append(params, anthropic.NewAssistantMessage(blocks...))

		default:
			var blocks []anthropic.ContentBlockParamUnion
			if message.Content != "" || len(message.Images) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(message.Content))
			}
			for _, image := range message.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(
					image.MimeType, base64.StdEncoding.EncodeToString(image.Data)))
			}
			params = append(params, anthropic.NewUserMessage(blocks...))
		}
	}

	return params
}

// toolsToParams converts unified tool declarations into custom tool params.
func toolsToParams(tools []ai.ToolDescription) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if tool.Parameters != nil {
			schema.Properties = tool.Parameters.Properties
			schema.Required = tool.Parameters.Required
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description)
		}
		params = append(params, param)
	}
	return params
}

// toolChoiceToParam maps the unified tool choice onto the SDK union. An empty
// choice returns ok=false so the provider default applies.
func toolChoiceToParam(choice string) (anthropic.ToolChoiceUnionParam, bool) {
	switch choice {
	case "":
		return anthropic.ToolChoiceUnionParam{}, false
	case "auto":
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}, true
	case "none":
		none := anthropic.NewToolChoiceNoneParam()
		return anthropic.ToolChoiceUnionParam{OfNone: &none}, true
	case "required":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}, true
	default:
		return anthropic.ToolChoiceParamOfTool(choice), true
	}
}

// usageToGeneric maps SDK counters onto the unified usage shape. Anthropic
// reports cache reads separately from input tokens.
func usageToGeneric(usage anthropic.Usage) ai.Usage {
	generic := ai.Usage{
		InputTokens:  int(usage.InputTokens),
		OutputTokens: int(usage.OutputTokens),
		CachedTokens: int(usage.CacheReadInputTokens),
	}
	if generic.InputTokens > 0 || generic.OutputTokens > 0 {
		generic.TotalTokens = generic.InputTokens + generic.CachedTokens + generic.OutputTokens
	}
	return generic
}

// normalizeArguments coerces accumulated tool input into a valid JSON body.
// Empty input means a no-argument call. Returns ok=false when the input
// cannot be repaired into JSON.
func normalizeArguments(raw string) (string, bool) {
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
