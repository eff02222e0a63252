package llm

// Usage contains token counts reported by the upstream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ErrorResponse is the JSON body of every relay HTTP error.
type ErrorResponse struct {
	Error string `json:"error"`
}
