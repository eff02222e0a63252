// Package message assembles canonical stream events into the UI message a
// client renders: an ordered list of text, reasoning, tool and data parts.
package message

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// PartType discriminates message parts.
type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
	PartTool      PartType = "tool"
	PartData      PartType = "data"
)

// Part states.
const (
	StateStreaming       = "streaming"
	StateDone            = "done"
	StateInputAvailable  = "input-available"
	StateOutputAvailable = "output-available"
)

// Part is one renderable piece of a message.
type Part struct {
	Type  PartType `json:"type"`
	ID    string   `json:"id,omitempty"`
	State string   `json:"state,omitempty"`

	// text and reasoning
	Text string `json:"text,omitempty"`

	// tool
	ToolCallID       string          `json:"toolCallId,omitempty"`
	ToolName         string          `json:"toolName,omitempty"`
	Input            string          `json:"input,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`
	ProviderExecuted bool            `json:"providerExecuted,omitempty"`

	// data
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IsText reports whether the part carries streamed text.
func (p Part) IsText() bool {
	return p.Type == PartText || p.Type == PartReasoning
}

// Message is a chat message made of parts.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the text parts, skipping reasoning.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ContentLength is the cumulative length of text and reasoning parts, in
// characters.
func (m Message) ContentLength() int {
	n := 0
	for _, p := range m.Parts {
		if p.IsText() {
			n += utf8.RuneCountInString(p.Text)
		}
	}
	return n
}

// ActivityMetric grows whenever anything new is rendered. Text counts its
// length, any other part counts one.
func (m Message) ActivityMetric() int {
	n := 0
	for _, p := range m.Parts {
		if p.IsText() {
			n += utf8.RuneCountInString(p.Text)
		} else {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the part list.
func (m Message) Clone() Message {
	out := m
	out.Parts = make([]Part, len(m.Parts))
	copy(out.Parts, m.Parts)
	return out
}
