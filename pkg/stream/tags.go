package stream

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolResultName is the tool name given to results recovered from inline
// result tags, which do not carry one.
const ToolResultName = "databricks-tool-call"

// toolTagPattern matches one complete tag pair, non-greedily.
var toolTagPattern = regexp.MustCompile(
	`<uc_function_call>.*?</uc_function_call>` +
		`|<uc_function_result>.*?</uc_function_result>` +
		`|<tool_call>.*?</tool_call>` +
		`|<tool_call_result>.*?</tool_call_result>`,
)

type tagPair struct {
	open  string
	close string
}

var (
	callTags = []tagPair{
		{"<uc_function_call>", "</uc_function_call>"},
		{"<tool_call>", "</tool_call>"},
	}
	resultTags = []tagPair{
		{"<uc_function_result>", "</uc_function_result>"},
		{"<tool_call_result>", "</tool_call_result>"},
	}
)

// ExtractTaggedContent splits text on inline tool tags. Well formed tool call
// and tool result tags become tool-call and tool-result events; everything
// else, including tags around malformed JSON, becomes a text-delta for id
// carrying the segment verbatim. Empty segments are dropped.
func ExtractTaggedContent(id, text string) []Event {
	var out []Event
	addSegment := func(seg string) {
		if seg == "" {
			return
		}
		if ev, ok := parseTaggedSegment(seg); ok {
			out = append(out, ev)
			return
		}
		out = append(out, TextDelta(id, seg))
	}

	pos := 0
	for _, loc := range toolTagPattern.FindAllStringIndex(text, -1) {
		addSegment(text[pos:loc[0]])
		addSegment(text[loc[0]:loc[1]])
		pos = loc[1]
	}
	addSegment(text[pos:])

	return out
}

// ExtractToolTags is a Transformer that expands inline tool tags carried by
// text-delta events. Other events pass through.
func ExtractToolTags(events []Event, last *Event) ([]Event, *Event) {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Type != TypeTextDelta || !strings.Contains(ev.Delta, "<") {
			out = append(out, ev)
			continue
		}
		out = append(out, ExtractTaggedContent(ev.ID, ev.Delta)...)
	}
	if len(out) == 0 {
		return out, last
	}
	return out, &out[len(out)-1]
}

func parseTaggedSegment(seg string) (Event, bool) {
	trimmed := strings.TrimSpace(seg)
	if !strings.HasPrefix(trimmed, "<") {
		return Event{}, false
	}

	if body, ok := unwrap(trimmed, callTags); ok {
		var call struct {
			ID        string          `json:"id"`
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(body), &call); err != nil {
			return Event{}, false
		}
		return Event{
			Type:             TypeToolCall,
			ToolCallID:       call.ID,
			ToolName:         call.Name,
			Input:            argumentsString(call.Arguments),
			ProviderExecuted: true,
		}, true
	}

	if body, ok := unwrap(trimmed, resultTags); ok {
		var result struct {
			ID      string          `json:"id"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal([]byte(body), &result); err != nil {
			return Event{}, false
		}
		return Event{
			Type:       TypeToolResult,
			ToolCallID: result.ID,
			ToolName:   ToolResultName,
			Result:     result.Content,
		}, true
	}

	return Event{}, false
}

func unwrap(s string, pairs []tagPair) (string, bool) {
	for _, p := range pairs {
		if strings.HasPrefix(s, p.open) && strings.HasSuffix(s, p.close) && len(s) >= len(p.open)+len(p.close) {
			body := strings.TrimSpace(s[len(p.open) : len(s)-len(p.close)])
			// only objects carry the fields we need
			return body, strings.HasPrefix(body, "{")
		}
	}
	return "", false
}

// argumentsString returns the tool input as a string. Arguments are either a
// JSON encoded string (chat completions style) or an inline JSON value.
func argumentsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
