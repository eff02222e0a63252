package llm

import "time"

// ConversationTurn is one completed generation: the request sent upstream
// and the assistant message the relay streamed back. Turns are persisted
// per session and replayed as history for the next request.
type ConversationTurn struct {
	SessionID string `json:"session_id"`
	StreamID  string `json:"stream_id"`
	User      string `json:"user"`
	Provider  string `json:"provider"`

	// Prompt is the user message that started the turn.
	Prompt Message `json:"prompt"`

	// Response is the assembled assistant output. Tool results produced
	// upstream are folded into it as tool_result blocks.
	Response Message `json:"response"`

	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        *Usage    `json:"usage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Messages returns the turn as history: the prompt followed by the response.
func (t *ConversationTurn) Messages() []Message {
	msgs := []Message{t.Prompt}
	if len(t.Response.Content) > 0 {
		msgs = append(msgs, t.Response)
	}
	return msgs
}
