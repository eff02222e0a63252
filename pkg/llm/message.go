package llm

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks so tool calls and results
// survive the round trip through transcripts and upstream requests.
type Message struct {
	Role    string         `json:"role"`    // "system", "user", "assistant", "tool"
	Content []ContentBlock `json:"content"` // Array of content blocks
}

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Type string `json:"type"` // "text", "reasoning", "tool_use", "tool_result"

	// Text content (type="text" or "reasoning")
	Text string `json:"text,omitempty"`

	// Tool use (type="tool_use") - assistant requesting tool execution
	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput string `json:"tool_input,omitempty"` // JSON arguments as sent upstream

	// Tool result (type="tool_result") - result from tool execution
	ToolResultID string `json:"tool_result_id,omitempty"` // References the tool_use_id
	ToolOutput   string `json:"tool_output,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == "text" {
			result += block.Text
		}
	}
	return result
}

// ToolUses returns the tool_use blocks of the message.
func (m *Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, block := range m.Content {
		if block.Type == "tool_use" {
			out = append(out, block)
		}
	}
	return out
}

// ToolResults returns the tool_result blocks of the message.
func (m *Message) ToolResults() []ContentBlock {
	var out []ContentBlock
	for _, block := range m.Content {
		if block.Type == "tool_result" {
			out = append(out, block)
		}
	}
	return out
}
