package openai

import (
	"strings"
	"testing"

	"github.com/leofalp/aigate/providers/ai"
)

func TestRequestToWire_NativeTools(t *testing.T) {
	request := ai.ChatRequest{
		Model:        "gpt-4o",
		SystemPrompt: "be brief",
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
		Tools:        []ai.ToolDescription{{Name: "search", Description: "web search"}},
		ToolChoice:   "auto",
	}

	wire := requestToWire(request, false)

	if len(wire.Tools) != 1 || wire.Tools[0].Function.Name != "search" {
		t.Errorf("tools = %+v", wire.Tools)
	}
	if wire.ToolChoice != "auto" {
		t.Errorf("tool_choice = %v", wire.ToolChoice)
	}
	if len(wire.Messages) != 2 || wire.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", wire.Messages)
	}
}

func TestRequestToWire_SimulatedOmitsNativeTools(t *testing.T) {
	request := simulatedSystemPrompt(ai.ChatRequest{
		Model:    "gpt-4o",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
		Tools:    []ai.ToolDescription{{Name: "search"}},
	})

	wire := requestToWire(request, true)

	if len(wire.Tools) != 0 {
		t.Errorf("simulated mode must not send native tools, got %+v", wire.Tools)
	}
	if !strings.Contains(request.SystemPrompt, "TOOL_CALLS:") {
		t.Errorf("system prompt missing marker instructions: %q", request.SystemPrompt)
	}
	if !strings.Contains(request.SystemPrompt, "search") {
		t.Errorf("system prompt missing tool name: %q", request.SystemPrompt)
	}
}

func TestToolChoiceToWire(t *testing.T) {
	if got := toolChoiceToWire(""); got != "auto" {
		t.Errorf("empty choice = %v", got)
	}
	if got := toolChoiceToWire("none"); got != "none" {
		t.Errorf("none = %v", got)
	}
	forced, ok := toolChoiceToWire("get_weather").(map[string]any)
	if !ok {
		t.Fatalf("named choice not a map")
	}
	function := forced["function"].(map[string]any)
	if function["name"] != "get_weather" {
		t.Errorf("forced choice = %v", forced)
	}
}

func TestMessageToWire_ToolResult(t *testing.T) {
	wire := messageToWire(ai.Message{
		Role:       ai.RoleTool,
		Content:    `{"temp":21}`,
		ToolCallID: "call_1",
		Name:       "get_weather",
	})

	if wire.Role != "tool" || wire.ToolCallID != "call_1" || wire.Name != "get_weather" {
		t.Errorf("wire = %+v", wire)
	}
}

func TestMessageToWire_AssistantToolCalls(t *testing.T) {
	wire := messageToWire(ai.Message{
		Role: ai.RoleAssistant,
		ToolCalls: []ai.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: ai.ToolCallFunction{Name: "search", Arguments: `{"q":"go"}`},
		}},
	})

	if len(wire.ToolCalls) != 1 || wire.ToolCalls[0].Function.Name != "search" {
		t.Errorf("wire = %+v", wire)
	}
}

func TestMessageToWire_UserImages(t *testing.T) {
	wire := messageToWire(ai.Message{
		Role:    ai.RoleUser,
		Content: "what is this?",
		Images:  []ai.FilePayload{{MimeType: "image/png", Data: []byte{1, 2, 3}}},
	})

	parts, ok := wire.Content.([]contentPart)
	if !ok {
		t.Fatalf("content is %T, want part array", wire.Content)
	}
	if len(parts) != 2 || parts[0].Type != "text" || parts[1].Type != "image_url" {
		t.Errorf("parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}
}

func TestUsageToGeneric(t *testing.T) {
	usage := usageToGeneric(&chatUsage{
		PromptTokens:            100,
		CompletionTokens:        40,
		TotalTokens:             140,
		PromptTokensDetails:     &promptTokenDetails{CachedTokens: 60},
		CompletionTokensDetails: &outputTokenDetails{ReasoningTokens: 10},
	})

	if usage.InputTokens != 100 || usage.OutputTokens != 40 || usage.TotalTokens != 140 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.CachedTokens != 60 || usage.ReasoningTokens != 10 {
		t.Errorf("details = %+v", usage)
	}
}

func TestUsageToGeneric_Nil(t *testing.T) {
	if got := usageToGeneric(nil); !got.IsZero() {
		t.Errorf("nil usage = %+v", got)
	}
}
