package chatagent

// agentRequest is the chat agent request body: the whole conversation as
// agent messages.
type agentRequest struct {
	Messages []agentMessage `json:"messages"`
	Stream   bool           `json:"stream"`
}

// agentMessage is discriminated by Role: "user", "assistant" or "tool".
type agentMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chunk is one streamed agent delta.
type chunk struct {
	ID    string       `json:"id"`
	Delta agentMessage `json:"delta"`
}
