package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/leofalp/aigate/internal/jsonschema"
	"github.com/leofalp/aigate/providers/ai"
)

func TestBuildMessageParams_Basics(t *testing.T) {
	params := buildMessageParams(ai.ChatRequest{
		Model:        "claude-sonnet-4",
		SystemPrompt: "be brief",
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
		GenerationConfig: &ai.GenerationConfig{
			MaxTokens:   1024,
			Temperature: 0.5,
		},
	})

	if string(params.Model) != "claude-sonnet-4" {
		t.Errorf("model = %q", params.Model)
	}
	if params.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "be brief" {
		t.Errorf("system = %+v", params.System)
	}
	if params.Temperature.Value != 0.5 {
		t.Errorf("temperature = %+v", params.Temperature)
	}
	if len(params.Messages) != 1 || len(params.Messages[0].Content) != 1 {
		t.Fatalf("messages = %+v", params.Messages)
	}
	if params.Messages[0].Content[0].OfText == nil {
		t.Errorf("expected a text block, got %+v", params.Messages[0].Content[0])
	}
}

func TestBuildMessageParams_DefaultMaxTokens(t *testing.T) {
	params := buildMessageParams(ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
	})

	if params.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", params.MaxTokens, defaultMaxTokens)
	}
	if len(params.System) != 0 {
		t.Errorf("system should be empty, got %+v", params.System)
	}
}

func TestBuildMessageParams_Tools(t *testing.T) {
	params := buildMessageParams(ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "weather?"}},
		Tools: []ai.ToolDescription{{
			Name:        "get_weather",
			Description: "look up current weather",
			Parameters: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"city": {Type: "string"}},
				Required:   []string{"city"},
			},
		}},
		ToolChoice: "get_weather",
	})

	if len(params.Tools) != 1 || params.Tools[0].OfTool == nil {
		t.Fatalf("tools = %+v", params.Tools)
	}
	tool := params.Tools[0].OfTool
	if string(tool.Name) != "get_weather" {
		t.Errorf("tool name = %q", tool.Name)
	}
	if tool.Description.Value != "look up current weather" {
		t.Errorf("description = %+v", tool.Description)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "city" {
		t.Errorf("required = %+v", tool.InputSchema.Required)
	}

	if params.ToolChoice.OfTool == nil || params.ToolChoice.OfTool.Name != "get_weather" {
		t.Errorf("tool_choice = %+v", params.ToolChoice)
	}
}

func TestToolChoiceToParam(t *testing.T) {
	if _, ok := toolChoiceToParam(""); ok {
		t.Errorf("empty choice should fall through to the provider default")
	}
	if choice, ok := toolChoiceToParam("auto"); !ok || choice.OfAuto == nil {
		t.Errorf("auto = %+v", choice)
	}
	if choice, ok := toolChoiceToParam("none"); !ok || choice.OfNone == nil {
		t.Errorf("none = %+v", choice)
	}
	if choice, ok := toolChoiceToParam("required"); !ok || choice.OfAny == nil {
		t.Errorf("required = %+v", choice)
	}
}

func TestMessagesToParams_ToolResultsMergeIntoOneTurn(t *testing.T) {
	params := messagesToParams([]ai.Message{
		{Role: ai.RoleUser, Content: "weather in Rome and Paris?"},
		{Role: ai.RoleAssistant, ToolCalls: []ai.ToolCall{
			{ID: "toolu_1", Type: "function", Function: ai.ToolCallFunction{Name: "get_weather", Arguments: `{"city":"Rome"}`}},
			{ID: "toolu_2", Type: "function", Function: ai.ToolCallFunction{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
		}},
		{Role: ai.RoleTool, ToolCallID: "toolu_1", Name: "get_weather", Content: `{"temp":21}`},
		{Role: ai.RoleTool, ToolCallID: "toolu_2", Name: "get_weather", Content: `{"temp":18}`},
	})

	if len(params) != 3 {
		t.Fatalf("message count = %d, want 3", len(params))
	}

	assistant := params[1]
	if len(assistant.Content) != 2 || assistant.Content[0].OfToolUse == nil {
		t.Fatalf("assistant blocks = %+v", assistant.Content)
	}
	if assistant.Content[0].OfToolUse.ID != "toolu_1" {
		t.Errorf("tool_use id = %q", assistant.Content[0].OfToolUse.ID)
	}

	results := params[2]
	if len(results.Content) != 2 {
		t.Fatalf("tool result blocks = %d, want 2 in one turn", len(results.Content))
	}
	for i, id := range []string{"toolu_1", "toolu_2"} {
		block := results.Content[i].OfToolResult
		if block == nil || block.ToolUseID != id {
			t.Errorf("result %d = %+v, want tool_use_id %q", i, results.Content[i], id)
		}
	}
}

func TestMessagesToParams_UserImages(t *testing.T) {
	params := messagesToParams([]ai.Message{{
		Role:    ai.RoleUser,
		Content: "what is this?",
		Images:  []ai.FilePayload{{MimeType: "image/png", Data: []byte{1, 2, 3}}},
	}})

	if len(params) != 1 || len(params[0].Content) != 2 {
		t.Fatalf("params = %+v", params)
	}
	if params[0].Content[0].OfText == nil || params[0].Content[1].OfImage == nil {
		t.Errorf("blocks = %+v", params[0].Content)
	}
}

func TestUsageToGeneric_CacheReads(t *testing.T) {
	usage := usageToGeneric(anthropic.Usage{
		InputTokens:          900,
		OutputTokens:         40,
		CacheReadInputTokens: 100,
	})

	if usage.InputTokens != 900 || usage.OutputTokens != 40 || usage.CachedTokens != 100 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.TotalTokens != 1040 {
		t.Errorf("total = %d, want 1040", usage.TotalTokens)
	}
}

func TestNormalizeArguments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"empty becomes object", "", "{}", true},
		{"null becomes object", "null", "{}", true},
		{"valid passes through", `{"a":1}`, `{"a":1}`, true},
		{"truncated repaired", `{"a":"b`, `{"a":"b"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := normalizeArguments(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Errorf("normalizeArguments(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}
