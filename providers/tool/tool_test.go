package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type echoInput struct {
	Text    string `json:"text"`
	Repeats int    `json:"repeats"`
}

type echoOutput struct {
	Result string `json:"result"`
}

func echoTool(t *testing.T) *Tool[echoInput, echoOutput] {
	t.Helper()
	echo, err := New("echo", func(_ context.Context, input echoInput) (echoOutput, error) {
		repeats := max(input.Repeats, 1)
		return echoOutput{Result: strings.Repeat(input.Text, repeats)}, nil
	}, WithDescription("repeats text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return echo
}

func TestToolInfo_CarriesDerivedSchema(t *testing.T) {
	info := echoTool(t).ToolInfo()

	if info.Name != "echo" || info.Description != "repeats text" {
		t.Errorf("info = %+v", info)
	}
	if info.Parameters == nil || info.Parameters.Properties["text"] == nil {
		t.Fatalf("parameters = %+v", info.Parameters)
	}
	if info.Parameters.Properties["text"].Type != "string" {
		t.Errorf("text schema = %+v", info.Parameters.Properties["text"])
	}
}

func TestCall_RoundTrip(t *testing.T) {
	result, err := echoTool(t).Call(context.Background(), `{"text":"ab","repeats":2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"result":"abab"}` {
		t.Errorf("result = %q", result)
	}
}

func TestCall_RepairsSloppyArguments(t *testing.T) {
	result, err := echoTool(t).Call(context.Background(), `{'text': 'hi'}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "hi") {
		t.Errorf("result = %q", result)
	}
}

func TestCall_FunctionErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	failing, err := New("failing", func(context.Context, echoInput) (echoOutput, error) {
		return echoOutput{}, boom
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := failing.Call(context.Background(), `{}`); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
}
