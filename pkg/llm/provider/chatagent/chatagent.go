// Package chatagent adapts the Databricks chat agent streaming format, in
// which each chunk carries a whole agent message delta with a role.
package chatagent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/stream"
)

// ToolResultName names tool results reported by agents, which do not say
// which tool produced them.
const ToolResultName = stream.ToolResultName

type provider struct{}

func New() *provider { return &provider{} }

func (p *provider) Name() string {
	return "chatagent"
}

func (p *provider) CanHandle(chunk []byte) bool {
	role := gjson.GetBytes(chunk, "delta.role")
	return role.Exists() && role.Type == gjson.String
}

func (p *provider) ChunkSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"delta"},
		Properties: map[string]*jsonschema.Schema{
			"id": {Type: "string"},
			"delta": {
				Type:     "object",
				Required: []string{"role"},
				Properties: map[string]*jsonschema.Schema{
					"role":         {Enum: []any{"user", "assistant", "tool"}},
					"content":      {Type: "string"},
					"id":           {Type: "string"},
					"tool_call_id": {Type: "string"},
					"tool_calls":   {Type: "array"},
				},
			},
		},
	}
}

func (p *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	out := agentRequest{Stream: true}
	index := 0
	nextID := func(role string) string {
		id := fmt.Sprintf("%s-%d", role, index)
		index++
		return id
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "user":
			out.Messages = append(out.Messages, agentMessage{
				Role:    "user",
				Content: joinText(msg, false),
				ID:      nextID("user"),
			})

		case "assistant":
			am := agentMessage{
				Role:    "assistant",
				Content: joinText(msg, true),
				ID:      nextID("assistant"),
			}
			for _, tu := range msg.ToolUses() {
				tc := toolCall{ID: tu.ToolUseID, Type: "function"}
				tc.Function.Name = tu.ToolName
				tc.Function.Arguments = tu.ToolInput
				if tc.Function.Arguments == "" {
					tc.Function.Arguments = "{}"
				}
				am.ToolCalls = append(am.ToolCalls, tc)
			}
			out.Messages = append(out.Messages, am)

			for _, tr := range msg.ToolResults() {
				out.Messages = append(out.Messages, toolMessage(tr, nextID("tool")))
			}

		case "tool":
			for _, tr := range msg.ToolResults() {
				out.Messages = append(out.Messages, toolMessage(tr, nextID("tool")))
			}
		}
		// system prompts are owned by the agent
	}

	return json.Marshal(out)
}

func (p *provider) NewDecoder() llm.StreamDecoder {
	return &decoder{}
}

func toolMessage(tr llm.ContentBlock, id string) agentMessage {
	return agentMessage{
		Role:       "tool",
		Name:       tr.ToolName,
		Content:    tr.ToolOutput,
		ToolCallID: tr.ToolResultID,
		ID:         id,
	}
}

// joinText joins text blocks with newlines, and reasoning blocks too when
// withReasoning is set.
func joinText(msg llm.Message, withReasoning bool) string {
	var parts []string
	for _, b := range msg.Content {
		if b.Type == "text" || (withReasoning && b.Type == "reasoning") {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type decoder struct{}

func (d *decoder) Decode(data []byte) ([]stream.Event, error) {
	var c chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding chat agent chunk: %w", err)
	}

	msg := c.Delta
	var out []stream.Event
	switch msg.Role {
	case "assistant":
		if msg.Content != "" {
			out = append(out, stream.TextDelta(msg.ID, msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			out = append(out, stream.Event{
				Type:       stream.TypeToolCall,
				ToolCallID: tc.ID,
				ToolName:   tc.Function.Name,
				Input:      tc.Function.Arguments,
			})
		}
	case "tool":
		result, err := json.Marshal(msg.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, stream.Event{
			Type:       stream.TypeToolResult,
			ToolCallID: msg.ToolCallID,
			ToolName:   ToolResultName,
			Result:     result,
		})
	}
	return out, nil
}

func (d *decoder) Finish() []stream.Event {
	return []stream.Event{stream.Finish(stream.FinishUnknown, nil)}
}
