package responses

import "encoding/json"

// request is the Responses API request body.
type request struct {
	Model           string      `json:"model,omitempty"`
	Instructions    string      `json:"instructions,omitempty"`
	Input           []inputItem `json:"input"`
	MaxOutputTokens *int        `json:"max_output_tokens,omitempty"`
	Temperature     *float64    `json:"temperature,omitempty"`
	Stream          bool        `json:"stream"`
}

// inputItem is a message, a function_call or a function_call_output.
type inputItem struct {
	Type      string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// event is one streamed Responses event, discriminated by Type.
type event struct {
	Type     string    `json:"type"`
	ItemID   string    `json:"item_id,omitempty"`
	Delta    string    `json:"delta,omitempty"`
	Item     *item     `json:"item,omitempty"`
	Response *response `json:"response,omitempty"`
	Message  string    `json:"message,omitempty"`
}

type item struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// Output of a function_call_output: a string or structured content.
	Output json.RawMessage `json:"output,omitempty"`

	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
}

type response struct {
	Status            string `json:"status"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}
