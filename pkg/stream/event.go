// Package stream implements the canonical stream event model and the
// transformer pipeline that turns loosely framed upstream events into
// well-bracketed start/delta/end runs.
package stream

import (
	"encoding/json"
	"strings"
)

// EventType discriminates the Event union.
type EventType string

const (
	TypeStreamStart    EventType = "stream-start"
	TypeTextStart      EventType = "text-start"
	TypeTextDelta      EventType = "text-delta"
	TypeTextEnd        EventType = "text-end"
	TypeReasoningStart EventType = "reasoning-start"
	TypeReasoningDelta EventType = "reasoning-delta"
	TypeReasoningEnd   EventType = "reasoning-end"
	TypeToolCall       EventType = "tool-call"
	TypeToolResult     EventType = "tool-result"
	TypeError          EventType = "error"
	TypeFinish         EventType = "finish"
	TypeRaw            EventType = "raw"

	// DataPrefix starts the type of application data events, e.g.
	// "data-stream".
	DataPrefix = "data-"
)

// FinishReason is carried by finish events.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool-calls"
	FinishError     FinishReason = "error"
	FinishUnknown   FinishReason = "unknown"
)

// Usage holds token counts reported on finish.
type Usage struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
	TotalTokens  int `json:"totalTokens,omitempty"`
}

// Event is a single canonical stream event. Type selects which of the
// remaining fields are meaningful.
type Event struct {
	Type EventType `json:"type"`

	// Delta group events (text-*, reasoning-*)
	ID    string `json:"id,omitempty"`
	Delta string `json:"delta,omitempty"`

	// Tool events
	ToolCallID       string          `json:"toolCallId,omitempty"`
	ToolName         string          `json:"toolName,omitempty"`
	Input            string          `json:"input,omitempty"`
	ProviderExecuted bool            `json:"providerExecuted,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`

	Error string `json:"error,omitempty"`

	FinishReason FinishReason `json:"finishReason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`

	RawValue json.RawMessage `json:"rawValue,omitempty"`

	// Data events (data-*) carry ID and an application payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// Group is the delta group an event belongs to.
type Group int

const (
	GroupNone Group = iota
	GroupText
	GroupReasoning
)

func (g Group) String() string {
	switch g {
	case GroupText:
		return "text"
	case GroupReasoning:
		return "reasoning"
	default:
		return ""
	}
}

// Kind is the position of a group event within its bracket.
type Kind int

const (
	KindNone Kind = iota
	KindStart
	KindDelta
	KindEnd
)

// Group classifies the event by its type prefix.
func (e Event) Group() Group {
	switch {
	case strings.HasPrefix(string(e.Type), "text-"):
		return GroupText
	case strings.HasPrefix(string(e.Type), "reasoning-"):
		return GroupReasoning
	default:
		return GroupNone
	}
}

// Kind reports start, delta or end for group events and KindNone otherwise.
func (e Event) Kind() Kind {
	if e.Group() == GroupNone {
		return KindNone
	}
	switch {
	case strings.HasSuffix(string(e.Type), "-start"):
		return KindStart
	case strings.HasSuffix(string(e.Type), "-delta"):
		return KindDelta
	case strings.HasSuffix(string(e.Type), "-end"):
		return KindEnd
	default:
		return KindNone
	}
}

// IsDelta reports whether e is a text-delta or reasoning-delta.
func (e Event) IsDelta() bool {
	return e.Kind() == KindDelta
}

// IsData reports whether e is an application data event.
func (e Event) IsData() bool {
	return strings.HasPrefix(string(e.Type), DataPrefix)
}

// groupKey identifies one bracketed run.
type groupKey struct {
	group Group
	id    string
}

func keyOf(e Event) groupKey {
	return groupKey{group: e.Group(), id: e.ID}
}

func groupEvent(g Group, k Kind, id string) Event {
	suffix := ""
	switch k {
	case KindStart:
		suffix = "-start"
	case KindDelta:
		suffix = "-delta"
	case KindEnd:
		suffix = "-end"
	}
	return Event{Type: EventType(g.String() + suffix), ID: id}
}

// StartOf returns the start event for the given group and id.
func StartOf(g Group, id string) Event { return groupEvent(g, KindStart, id) }

// EndOf returns the end event for the given group and id.
func EndOf(g Group, id string) Event { return groupEvent(g, KindEnd, id) }

// TextDelta is a convenience constructor used by adapters and tests.
func TextDelta(id, delta string) Event {
	return Event{Type: TypeTextDelta, ID: id, Delta: delta}
}

// ReasoningDelta is a convenience constructor used by adapters and tests.
func ReasoningDelta(id, delta string) Event {
	return Event{Type: TypeReasoningDelta, ID: id, Delta: delta}
}

// ErrorEvent wraps a message in an error event.
func ErrorEvent(msg string) Event {
	return Event{Type: TypeError, Error: msg}
}

// Finish returns a finish event.
func Finish(reason FinishReason, usage *Usage) Event {
	return Event{Type: TypeFinish, FinishReason: reason, Usage: usage}
}

// DataEvent returns a data-<name> event with the given id and payload.
func DataEvent(name, id string, data json.RawMessage) Event {
	return Event{Type: EventType(DataPrefix + name), ID: id, Data: data}
}
