package anthropic

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/papercomputeco/relay/pkg/stream"
)

type block struct {
	kind string
	id   string
	name string
	json string
}

type decoder struct {
	msgID  string
	blocks map[int]*block
	reason stream.FinishReason
	usage  stream.Usage
}

func newDecoder() *decoder {
	return &decoder{
		blocks: make(map[int]*block),
		reason: stream.FinishUnknown,
	}
}

func (d *decoder) Decode(data []byte) ([]stream.Event, error) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding anthropic event: %w", err)
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			d.msgID = ev.Message.ID
			if u := ev.Message.Usage; u != nil {
				// message_start contains input tokens, including cache reads and writes
				d.usage.InputTokens = u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
			}
		}

	case "content_block_start":
		if ev.ContentBlock == nil {
			return nil, nil
		}
		b := &block{kind: ev.ContentBlock.Type, id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
		d.blocks[ev.Index] = b
		switch b.kind {
		case "text":
			out := []stream.Event{stream.StartOf(stream.GroupText, d.runID(ev.Index))}
			if ev.ContentBlock.Text != "" {
				out = append(out, stream.TextDelta(d.runID(ev.Index), ev.ContentBlock.Text))
			}
			return out, nil
		case "thinking":
			return []stream.Event{stream.StartOf(stream.GroupReasoning, d.runID(ev.Index))}, nil
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			return []stream.Event{stream.TextDelta(d.runID(ev.Index), ev.Delta.Text)}, nil
		case "thinking_delta":
			return []stream.Event{stream.ReasoningDelta(d.runID(ev.Index), ev.Delta.Thinking)}, nil
		case "input_json_delta":
			if b, ok := d.blocks[ev.Index]; ok {
				b.json += ev.Delta.PartialJSON
			}
		}

	case "content_block_stop":
		b, ok := d.blocks[ev.Index]
		if !ok {
			return nil, nil
		}
		delete(d.blocks, ev.Index)
		switch b.kind {
		case "text":
			return []stream.Event{stream.EndOf(stream.GroupText, d.runID(ev.Index))}, nil
		case "thinking":
			return []stream.Event{stream.EndOf(stream.GroupReasoning, d.runID(ev.Index))}, nil
		case "tool_use":
			input := b.json
			if input == "" {
				input = "{}"
			}
			return []stream.Event{{
				Type:       stream.TypeToolCall,
				ToolCallID: b.id,
				ToolName:   b.name,
				Input:      input,
			}}, nil
		}

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			d.reason = finishReason(ev.Delta.StopReason)
		}
		if ev.Usage != nil {
			// message_delta contains: usage.output_tokens
			d.usage.OutputTokens = ev.Usage.OutputTokens
		}

	case "error":
		d.reason = stream.FinishError
		msg := "upstream error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return []stream.Event{stream.ErrorEvent(msg)}, nil
	}

	return nil, nil
}

func (d *decoder) Finish() []stream.Event {
	var usage *stream.Usage
	if d.usage.InputTokens > 0 || d.usage.OutputTokens > 0 {
		u := d.usage
		u.TotalTokens = u.InputTokens + u.OutputTokens
		usage = &u
	}
	return []stream.Event{stream.Finish(d.reason, usage)}
}

// runID names the run of a content block. Block indexes restart per
// message, so the message id keeps them apart.
func (d *decoder) runID(index int) string {
	return d.msgID + "-" + strconv.Itoa(index)
}

func finishReason(s string) stream.FinishReason {
	switch s {
	case "end_turn", "stop_sequence":
		return stream.FinishStop
	case "max_tokens":
		return stream.FinishLength
	case "tool_use":
		return stream.FinishToolCalls
	case "refusal":
		return stream.FinishError
	default:
		return stream.FinishUnknown
	}
}
