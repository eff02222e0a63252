package relay

import (
	"encoding/json"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/stream"
)

// chatMessage is the user message of a chat request, either in UI form
// (parts) or as plain content.
type chatMessage struct {
	ID      string         `json:"id"`
	Role    string         `json:"role"`
	Parts   []message.Part `json:"parts,omitempty"`
	Content string         `json:"content,omitempty"`
}

func (m chatMessage) text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var text string
	for _, p := range m.Parts {
		if p.Type == message.PartText {
			text += p.Text
		}
	}
	return text
}

// toLLMMessage converts an assembled UI message to transcript form.
func toLLMMessage(msg message.Message) llm.Message {
	out := llm.Message{Role: msg.Role}
	for _, p := range msg.Parts {
		switch p.Type {
		case message.PartText:
			out.Content = append(out.Content, llm.ContentBlock{Type: "text", Text: p.Text})
		case message.PartReasoning:
			out.Content = append(out.Content, llm.ContentBlock{Type: "reasoning", Text: p.Text})
		case message.PartTool:
			if p.Input != "" || p.Output == nil {
				out.Content = append(out.Content, llm.ContentBlock{
					Type:      "tool_use",
					ToolUseID: p.ToolCallID,
					ToolName:  p.ToolName,
					ToolInput: p.Input,
				})
			}
			if p.Output != nil {
				out.Content = append(out.Content, llm.ContentBlock{
					Type:         "tool_result",
					ToolResultID: p.ToolCallID,
					ToolName:     p.ToolName,
					ToolOutput:   outputString(p.Output),
				})
			}
		}
	}
	return out
}

// outputString unwraps JSON string results and keeps anything else as JSON.
func outputString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func toLLMUsage(u *stream.Usage) *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}
