// Package responses adapts the OpenAI Responses streaming format used by
// Databricks responses agents.
package responses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/stream"
)

type provider struct{}

func New() *provider { return &provider{} }

func (p *provider) Name() string {
	return "responses"
}

func (p *provider) CanHandle(chunk []byte) bool {
	t := gjson.GetBytes(chunk, "type").String()
	return strings.HasPrefix(t, "response.")
}

func (p *provider) ChunkSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"type"},
		Properties: map[string]*jsonschema.Schema{
			"type":     {Type: "string"},
			"item_id":  {Type: "string"},
			"delta":    {Type: "string"},
			"item":     {Type: "object"},
			"response": {Type: "object"},
		},
	}
}

func (p *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	out := request{
		Model:           req.Model,
		Instructions:    req.System,
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
		Stream:          true,
	}

	for _, msg := range req.Messages {
		if text := msg.GetText(); text != "" {
			out.Input = append(out.Input, inputItem{Type: "message", Role: msg.Role, Content: text})
		}
		for _, tu := range msg.ToolUses() {
			out.Input = append(out.Input, inputItem{
				Type:      "function_call",
				CallID:    tu.ToolUseID,
				Name:      tu.ToolName,
				Arguments: tu.ToolInput,
			})
		}
		for _, tr := range msg.ToolResults() {
			out.Input = append(out.Input, inputItem{
				Type:   "function_call_output",
				CallID: tr.ToolResultID,
				Output: tr.ToolOutput,
			})
		}
	}

	return json.Marshal(out)
}

func (p *provider) NewDecoder() llm.StreamDecoder {
	return &decoder{
		reason:   stream.FinishUnknown,
		streamed: make(map[string]bool),
	}
}

type decoder struct {
	reason stream.FinishReason
	usage  *stream.Usage

	// streamed records message items that produced deltas.
	streamed map[string]bool
	sawCall  bool
}

func (d *decoder) Decode(data []byte) ([]stream.Event, error) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding responses event: %w", err)
	}

	switch ev.Type {
	case "response.output_text.delta":
		if ev.Delta == "" {
			return nil, nil
		}
		d.streamed[ev.ItemID] = true
		return []stream.Event{stream.TextDelta(ev.ItemID, ev.Delta)}, nil

	case "response.reasoning_text.delta", "response.reasoning_summary_text.delta":
		if ev.Delta == "" {
			return nil, nil
		}
		return []stream.Event{stream.ReasoningDelta(ev.ItemID, ev.Delta)}, nil

	case "response.output_item.done":
		if ev.Item == nil {
			return nil, nil
		}
		return d.itemDone(ev.Item)

	case "response.completed", "response.incomplete", "response.failed":
		return d.completed(ev.Type, ev.Response), nil

	case "error":
		d.reason = stream.FinishError
		return []stream.Event{stream.ErrorEvent(ev.Message)}, nil
	}
	return nil, nil
}

// itemDone closes a finished output item. Message items that never streamed
// deltas carry their whole text here.
func (d *decoder) itemDone(it *item) ([]stream.Event, error) {
	switch it.Type {
	case "message":
		if d.streamed[it.ID] {
			return []stream.Event{stream.EndOf(stream.GroupText, it.ID)}, nil
		}
		var sb strings.Builder
		for _, c := range it.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
		if sb.Len() == 0 {
			return nil, nil
		}
		return []stream.Event{
			stream.TextDelta(it.ID, sb.String()),
			stream.EndOf(stream.GroupText, it.ID),
		}, nil

	case "function_call":
		d.sawCall = true
		return []stream.Event{{
			Type:       stream.TypeToolCall,
			ToolCallID: it.CallID,
			ToolName:   it.Name,
			Input:      it.Arguments,
		}}, nil

	case "function_call_output":
		result := it.Output
		if len(result) == 0 {
			result = json.RawMessage(`""`)
		}
		return []stream.Event{{
			Type:       stream.TypeToolResult,
			ToolCallID: it.CallID,
			ToolName:   it.Name,
			Result:     result,
		}}, nil
	}
	return nil, nil
}

func (d *decoder) completed(kind string, resp *response) []stream.Event {
	var out []stream.Event
	switch kind {
	case "response.completed":
		d.reason = stream.FinishStop
		if d.sawCall {
			d.reason = stream.FinishToolCalls
		}
	case "response.incomplete":
		d.reason = stream.FinishLength
		if resp != nil && resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason == "content_filter" {
			d.reason = stream.FinishError
		}
	case "response.failed":
		d.reason = stream.FinishError
		msg := "response failed"
		if resp != nil && resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		out = append(out, stream.ErrorEvent(msg))
	}

	if resp != nil && resp.Usage != nil {
		d.usage = &stream.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out
}

func (d *decoder) Finish() []stream.Event {
	return []stream.Event{stream.Finish(d.reason, d.usage)}
}
