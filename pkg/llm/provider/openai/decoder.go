package openai

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/papercomputeco/relay/pkg/stream"
)

type pendingCall struct {
	id   string
	name string
	args string
}

type decoder struct {
	reason stream.FinishReason
	usage  *stream.Usage
	calls  map[int]*pendingCall
}

func newDecoder() *decoder {
	return &decoder{
		reason: stream.FinishUnknown,
		calls:  make(map[int]*pendingCall),
	}
}

func (d *decoder) Decode(data []byte) ([]stream.Event, error) {
	var c chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding chat completion chunk: %w", err)
	}

	if c.Usage != nil {
		d.usage = &stream.Usage{
			InputTokens:  c.Usage.PromptTokens,
			OutputTokens: c.Usage.CompletionTokens,
			TotalTokens:  c.Usage.TotalTokens,
		}
	}
	if len(c.Choices) == 0 {
		return nil, nil
	}

	choice := c.Choices[0]
	out, err := contentEvents(c.ID, choice.Delta.Content)
	if err != nil {
		return nil, err
	}

	for i, tc := range choice.Delta.ToolCalls {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
		}
		call, ok := d.calls[idx]
		if !ok {
			call = &pendingCall{}
			d.calls[idx] = call
		}
		if tc.ID != "" {
			call.id = tc.ID
		}
		call.name += tc.Function.Name
		call.args += tc.Function.Arguments
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		d.reason = finishReason(*choice.FinishReason)
		out = append(out, d.flushCalls()...)
	}
	return out, nil
}

func (d *decoder) Finish() []stream.Event {
	out := d.flushCalls()
	return append(out, stream.Finish(d.reason, d.usage))
}

// flushCalls emits the accumulated tool calls in index order.
func (d *decoder) flushCalls() []stream.Event {
	if len(d.calls) == 0 {
		return nil
	}
	idxs := make([]int, 0, len(d.calls))
	for idx := range d.calls {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	out := make([]stream.Event, 0, len(idxs))
	for _, idx := range idxs {
		call := d.calls[idx]
		out = append(out, stream.Event{
			Type:       stream.TypeToolCall,
			ToolCallID: call.id,
			ToolName:   call.name,
			Input:      call.args,
		})
	}
	clear(d.calls)
	return out
}

// contentEvents converts delta.content. A string is plain text that may
// carry inline tool tags, which the pipeline extracts later; an array holds
// text and reasoning summary parts.
func contentEvents(id string, raw json.RawMessage) ([]stream.Event, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, nil
		}
		return []stream.Event{stream.TextDelta(id, text)}, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("decoding chat completion content: %w", err)
	}

	var out []stream.Event
	for _, p := range parts {
		switch p.Type {
		case "text":
			if p.Text != "" {
				out = append(out, stream.TextDelta(id, p.Text))
			}
		case "reasoning":
			for _, s := range p.Summary {
				if s.Type == "summary_text" && s.Text != "" {
					out = append(out, stream.ReasoningDelta(id, s.Text))
				}
			}
		}
		// images are not rendered in streams
	}
	return out, nil
}

func finishReason(s string) stream.FinishReason {
	switch s {
	case "stop":
		return stream.FinishStop
	case "length":
		return stream.FinishLength
	case "tool_calls", "function_call":
		return stream.FinishToolCalls
	case "content_filter", "error":
		return stream.FinishError
	default:
		return stream.FinishUnknown
	}
}
