package llm

// ChatRequest represents a provider-agnostic chat completion request.
// The relay builds one per generation from the session history and hands it
// to the configured provider, which encodes the upstream wire format.
type ChatRequest struct {
	// Model name (e.g., "databricks-claude-sonnet-4", "llama3")
	Model string `json:"model"`

	// Conversation messages, oldest first
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Generation parameters
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
