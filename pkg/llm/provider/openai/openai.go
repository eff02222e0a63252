// Package openai adapts the Chat Completions streaming format, including
// Databricks foundation model endpoints that inline tool calls as tagged
// text and stream reasoning summaries as content arrays.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/relay/pkg/llm"
)

// provider implements the Provider interface for the Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "openai"
}

func (o *provider) CanHandle(chunk []byte) bool {
	if gjson.GetBytes(chunk, "object").String() == "chat.completion.chunk" {
		return true
	}
	return gjson.GetBytes(chunk, "choices.0.delta").Exists()
}

func (o *provider) ChunkSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"choices"},
		Properties: map[string]*jsonschema.Schema{
			"id": {Type: "string"},
			"choices": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"delta"},
					Properties: map[string]*jsonschema.Schema{
						"delta": {Type: "object"},
					},
				},
			},
		},
	}
}

func (o *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	out := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		converted := chatMessage{Role: msg.Role, Content: textOf(msg)}

		// Handle tool calls in assistant messages
		for _, tu := range msg.ToolUses() {
			tc := toolCall{ID: tu.ToolUseID, Type: "function"}
			tc.Function.Name = tu.ToolName
			tc.Function.Arguments = tu.ToolInput
			converted.ToolCalls = append(converted.ToolCalls, tc)
		}
		if converted.Content != "" || len(converted.ToolCalls) > 0 {
			out.Messages = append(out.Messages, converted)
		}

		// Tool results become their own "tool" messages
		for _, tr := range msg.ToolResults() {
			out.Messages = append(out.Messages, chatMessage{
				Role:       "tool",
				Content:    tr.ToolOutput,
				ToolCallID: tr.ToolResultID,
			})
		}
	}

	return json.Marshal(out)
}

func (o *provider) NewDecoder() llm.StreamDecoder {
	return newDecoder()
}

// textOf joins the text blocks of msg. Reasoning is not sent back upstream.
func textOf(msg llm.Message) string {
	var parts []string
	for _, b := range msg.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
