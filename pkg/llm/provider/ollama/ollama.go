package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/stream"
)

// provider implements the Provider interface for Ollama's chat API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "ollama"
}

func (o *provider) CanHandle(chunk []byte) bool {
	// Ollama chat chunks carry a top-level done flag next to the message
	done := gjson.GetBytes(chunk, "done")
	if !done.IsBool() {
		return false
	}
	return gjson.GetBytes(chunk, "message").IsObject() || gjson.GetBytes(chunk, "eval_count").Exists()
}

func (o *provider) ChunkSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"done"},
		Properties: map[string]*jsonschema.Schema{
			"model":   {Type: "string"},
			"done":    {Type: "boolean"},
			"message": {Type: "object"},
		},
	}
}

func (o *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	out := ollamaRequest{Model: req.Model, Stream: true}
	if req.Temperature != nil || req.MaxTokens != nil {
		out.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		converted := ollamaMessage{Role: msg.Role, Content: msg.GetText()}
		for _, tu := range msg.ToolUses() {
			tc := ollamaToolCall{ID: tu.ToolUseID}
			tc.Function.Name = tu.ToolName
			tc.Function.Arguments = json.RawMessage(tu.ToolInput)
			if !json.Valid(tc.Function.Arguments) {
				tc.Function.Arguments = json.RawMessage(`{}`)
			}
			converted.ToolCalls = append(converted.ToolCalls, tc)
		}
		if converted.Content != "" || len(converted.ToolCalls) > 0 {
			out.Messages = append(out.Messages, converted)
		}
		for _, tr := range msg.ToolResults() {
			out.Messages = append(out.Messages, ollamaMessage{
				Role:     "tool",
				Content:  tr.ToolOutput,
				ToolName: tr.ToolName,
			})
		}
	}

	return json.Marshal(out)
}

func (o *provider) NewDecoder() llm.StreamDecoder {
	// NDJSON chunks carry no message id; one is minted per generation.
	id := uuid.NewString()
	return &decoder{
		textID:      "text-" + id,
		reasoningID: "reasoning-" + id,
		reason:      stream.FinishUnknown,
	}
}

type decoder struct {
	textID      string
	reasoningID string
	calls       int
	reason      stream.FinishReason
	usage       *stream.Usage
}

func (d *decoder) Decode(data []byte) ([]stream.Event, error) {
	var c ollamaChunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding ollama chunk: %w", err)
	}

	var out []stream.Event
	if c.Error != "" {
		d.reason = stream.FinishError
		out = append(out, stream.ErrorEvent(c.Error))
	}
	if c.Message.Thinking != "" {
		out = append(out, stream.ReasoningDelta(d.reasoningID, c.Message.Thinking))
	}
	if c.Message.Content != "" {
		out = append(out, stream.TextDelta(d.textID, c.Message.Content))
	}
	for _, tc := range c.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call-%d", d.calls)
		}
		d.calls++
		out = append(out, stream.Event{
			Type:       stream.TypeToolCall,
			ToolCallID: id,
			ToolName:   tc.Function.Name,
			Input:      string(tc.Function.Arguments),
		})
	}

	if c.Done {
		d.reason = finishReason(c.DoneReason, d.calls > 0)
		// Ollama includes usage in the final NDJSON line (done=true)
		d.usage = &stream.Usage{
			InputTokens:  c.PromptEvalCount,
			OutputTokens: c.EvalCount,
			TotalTokens:  c.PromptEvalCount + c.EvalCount,
		}
	}
	return out, nil
}

func (d *decoder) Finish() []stream.Event {
	return []stream.Event{stream.Finish(d.reason, d.usage)}
}

func finishReason(doneReason string, sawCalls bool) stream.FinishReason {
	switch doneReason {
	case "stop", "":
		if sawCalls {
			return stream.FinishToolCalls
		}
		return stream.FinishStop
	case "length":
		return stream.FinishLength
	default:
		return stream.FinishUnknown
	}
}
