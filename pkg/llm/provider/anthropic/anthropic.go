// Package anthropic adapts the Messages API streaming format.
package anthropic

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/relay/pkg/llm"
)

// DefaultMaxTokens is sent when the request does not set a limit; the
// Messages API requires one.
const DefaultMaxTokens = 4096

var streamEventTypes = map[string]bool{
	"message_start":       true,
	"message_delta":       true,
	"message_stop":        true,
	"content_block_start": true,
	"content_block_delta": true,
	"content_block_stop":  true,
	"ping":                true,
	"error":               true,
}

// provider implements the Provider interface for Anthropic's Messages API.
type provider struct{}

// New
func New() *provider { return &provider{} }

// Name
func (p *provider) Name() string {
	return "anthropic"
}

func (p *provider) CanHandle(chunk []byte) bool {
	return streamEventTypes[gjson.GetBytes(chunk, "type").String()]
}

func (p *provider) ChunkSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"type"},
		Properties: map[string]*jsonschema.Schema{
			"type":          {Type: "string"},
			"index":         {Type: "integer"},
			"message":       {Type: "object"},
			"content_block": {Type: "object"},
			"delta":         {Type: "object"},
		},
	}
}

func (p *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	out := anthropicRequest{
		Model:       req.Model,
		System:      req.System,
		MaxTokens:   DefaultMaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		var blocks []anthropicContentBlock
		var results []anthropicContentBlock
		for _, b := range msg.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					blocks = append(blocks, anthropicContentBlock{Type: "text", Text: b.Text})
				}
			case "tool_use":
				input := json.RawMessage(b.ToolInput)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    b.ToolUseID,
					Name:  b.ToolName,
					Input: input,
				})
			case "tool_result":
				results = append(results, anthropicContentBlock{
					Type:      "tool_result",
					ToolUseID: b.ToolResultID,
					Content:   b.ToolOutput,
				})
			}
		}

		role := msg.Role
		if role == "tool" {
			role = "user"
		}
		if len(blocks) > 0 {
			out.Messages = append(out.Messages, anthropicMessage{Role: role, Content: blocks})
		}
		// tool results travel in the following user turn
		if len(results) > 0 {
			out.Messages = append(out.Messages, anthropicMessage{Role: "user", Content: results})
		}
	}

	return json.Marshal(out)
}

func (p *provider) NewDecoder() llm.StreamDecoder {
	return newDecoder()
}
