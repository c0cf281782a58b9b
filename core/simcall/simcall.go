// Package simcall extracts tool-call intent embedded in free text. Vendors
// without reliable native function calling are instructed to end their answer
// with a TOOL_CALLS marker holding a JSON array of call objects; this package
// finds that marker, repairs the payloads the models actually produce, and
// normalizes the several shapes of the same logical call object into the
// canonical ai.ToolCall.
package simcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"

	"github.com/leofalp/aigate/providers/ai"
)

// Marker is the sentinel the model is instructed to emit before its call
// array.
const Marker = "TOOL_CALLS:"

// Placeholder replaces scrubbed marker blocks in the visible text.
const Placeholder = "[tool call]"

// Extraction is the result of scanning one complete message.
type Extraction struct {
	// Content is the visible text with every marker occurrence scrubbed and
	// replaced by Placeholder.
	Content string

	// Calls holds the normalized calls recovered from the last marker
	// occurrence. Empty when no valid call survived parsing and repair.
	Calls []ai.ToolCall
}

// occurrence is one marker block located in the text: the span to scrub and
// the captured array text (which may be empty or truncated).
type occurrence struct {
	start, end int
	captured   string
}

// Extract scans the full accumulated content for marker blocks. All
// occurrences are scrubbed from the visible text; only the last one is
// parsed, because earlier occurrences are the model thinking aloud about the
// call it eventually makes.
func Extract(content string) Extraction {
	occurrences := findOccurrences(content)
	if len(occurrences) == 0 {
		return Extraction{Content: content}
	}

	var scrubbed strings.Builder
	cursor := 0
	for _, occ := range occurrences {
		scrubbed.WriteString(content[cursor:occ.start])
		scrubbed.WriteString(Placeholder)
		cursor = occ.end
	}
	scrubbed.WriteString(content[cursor:])

	last := occurrences[len(occurrences)-1]
	calls := parseCalls(last.captured)

	return Extraction{
		Content: strings.TrimSpace(scrubbed.String()),
		Calls:   calls,
	}
}

// findOccurrences locates every marker block, including optional surrounding
// code-fence syntax, in order of appearance.
func findOccurrences(content string) []occurrence {
	var occurrences []occurrence

	searchFrom := 0
	for {
		markerAt := strings.Index(content[searchFrom:], Marker)
		if markerAt == -1 {
			return occurrences
		}
		markerAt += searchFrom

		occ := occurrence{start: markerAt}

		// Extend the scrub span backwards over an opening code fence.
		occ.start = fenceStart(content, markerAt)

		// Capture the array after the marker. A missing or truncated array
		// still yields an occurrence so the dangling marker gets scrubbed.
		payloadFrom := markerAt + len(Marker)
		captured, capturedEnd := captureArray(content, payloadFrom)
		occ.captured = captured
		occ.end = capturedEnd

		// Extend the scrub span forwards over a closing code fence.
		occ.end = fenceEnd(content, occ.end)

		occurrences = append(occurrences, occ)
		searchFrom = occ.end
	}
}

// fenceStart walks backwards from the marker over whitespace and an optional
// ``` or ```json fence, returning the adjusted scrub start.
func fenceStart(content string, markerAt int) int {
	i := markerAt
	for i > 0 && (content[i-1] == ' ' || content[i-1] == '\n' || content[i-1] == '\t' || content[i-1] == '\r') {
		i--
	}
	for _, fence := range []string{"```json", "```"} {
		if strings.HasSuffix(content[:i], fence) {
			return i - len(fence)
		}
	}
	return markerAt
}

// fenceEnd walks forwards from the capture end over whitespace and an
// optional closing fence, returning the adjusted scrub end.
func fenceEnd(content string, from int) int {
	i := from
	for i < len(content) && (content[i] == ' ' || content[i] == '\n' || content[i] == '\t' || content[i] == '\r') {
		i++
	}
	if strings.HasPrefix(content[i:], "```") {
		return i + 3
	}
	return from
}

// captureArray returns the bracket-balanced JSON array starting at or after
// `from`, respecting string literals and escapes. A truncated array (stream
// cut mid-payload) captures to end of input.
func captureArray(content string, from int) (captured string, end int) {
	i := from
	for i < len(content) && (content[i] == ' ' || content[i] == '\n' || content[i] == '\t' || content[i] == '\r') {
		i++
	}
	if i >= len(content) || content[i] != '[' {
		return "", i
	}

	depth := 0
	inString := false
	escaped := false
	for j := i; j < len(content); j++ {
		ch := content[j]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return content[i : j+1], j + 1
			}
		}
	}

	// Truncated block: capture everything for a best-effort repair.
	return content[i:], len(content)
}

// parseCalls turns a captured array into normalized tool calls. Parse order:
// strict JSON, then the concatenated-objects fallback, then jsonrepair. An
// unparseable block yields no calls and the message degrades to plain text.
func parseCalls(captured string) []ai.ToolCall {
	if captured == "" {
		return nil
	}

	items, ok := parseArray(captured)
	if !ok {
		// Concatenated objects: keep the first well-formed one, the rest is
		// treated as garbage the model appended.
		if first, found := firstObject(captured); found {
			items = []json.RawMessage{json.RawMessage(first)}
			ok = true
		}
	}
	if !ok {
		if repaired, err := jsonrepair.JSONRepair(captured); err == nil {
			items, ok = parseArray(repaired)
		}
	}
	if !ok {
		return nil
	}

	var calls []ai.ToolCall
	for _, item := range items {
		if call, valid := normalizeCall(item); valid {
			calls = append(calls, call)
		}
	}
	return calls
}

func parseArray(text string) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	return items, true
}

// firstObject extracts the first balanced JSON object from text containing
// concatenated objects ("}{"), validating it parses.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 || !strings.Contains(text, "}{") {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// normalizeCall maps the duck-typed call shapes models emit onto the
// canonical ToolCall. Supported shapes:
//
//	{"function": {"name": "...", "arguments": ...}}
//	{"name": "...", "arguments": ...}
//
// Arguments may be a JSON object or a string holding one. A call lacking a
// usable name is dropped.
func normalizeCall(raw json.RawMessage) (ai.ToolCall, bool) {
	doc := gjson.ParseBytes(raw)
	if doc.Type != gjson.JSON {
		return ai.ToolCall{}, false
	}

	name := doc.Get("function.name").String()
	arguments := doc.Get("function.arguments")
	id := doc.Get("id").String()

	if name == "" {
		name = doc.Get("name").String()
		arguments = doc.Get("arguments")
	}
	if name == "" {
		return ai.ToolCall{}, false
	}
	if id == "" {
		id = "call_" + uuid.NewString()
	}

	return ai.ToolCall{
		ID:   id,
		Type: "function",
		Function: ai.ToolCallFunction{
			Name:      name,
			Arguments: normalizeArguments(arguments),
		},
	}, true
}

// normalizeArguments guarantees the returned string parses as JSON.
func normalizeArguments(arguments gjson.Result) string {
	switch arguments.Type {
	case gjson.Null:
		return "{}"

	case gjson.String:
		text := arguments.String()
		if strings.TrimSpace(text) == "" {
			return "{}"
		}
		if json.Valid([]byte(text)) {
			return text
		}
		// Concatenated objects inside the string: keep the first one.
		if first, ok := firstObject(text); ok {
			return first
		}
		if repaired, err := jsonrepair.JSONRepair(text); err == nil && json.Valid([]byte(repaired)) {
			return repaired
		}
		// Unsalvageable: re-wrap the raw text as a JSON string literal so
		// downstream consumers still receive valid JSON.
		wrapped, err := json.Marshal(text)
		if err != nil {
			return "{}"
		}
		return string(wrapped)

	default:
		// Object, array, number, bool: the raw JSON is already valid.
		return arguments.Raw
	}
}

// Instructions renders the system-prompt block teaching a model without
// native function calling how to request tools through the marker protocol.
func Instructions(tools []ai.ToolDescription) string {
	if len(tools) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You can call the following tools. To call one or more tools, end your answer with a single line of the form:\n\n")
	sb.WriteString(Marker)
	sb.WriteString(` [{"name": "<tool name>", "arguments": {<JSON arguments>}}]`)
	sb.WriteString("\n\nAvailable tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&sb, "- %s", tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(&sb, ": %s", tool.Description)
		}
		if tool.Parameters != nil {
			if schema, err := json.Marshal(tool.Parameters); err == nil {
				fmt.Fprintf(&sb, " (arguments schema: %s)", schema)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
