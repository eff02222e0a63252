package message

import (
	"strings"

	"github.com/papercomputeco/relay/pkg/stream"
)

// Assembler folds canonical events into one assistant message. It is not
// safe for concurrent use.
type Assembler struct {
	msg          Message
	finished     bool
	finishReason stream.FinishReason
	usage        *stream.Usage
	errors       []string
}

// NewAssembler starts an empty assistant message with the given id.
func NewAssembler(id string) *Assembler {
	return &Assembler{msg: Message{ID: id, Role: "assistant"}}
}

// Apply folds ev into the message. It reports whether the message changed.
func (a *Assembler) Apply(ev stream.Event) bool {
	switch ev.Type {
	case stream.TypeTextStart, stream.TypeReasoningStart:
		a.msg.Parts = append(a.msg.Parts, Part{
			Type:  partTypeOf(ev.Group()),
			ID:    ev.ID,
			State: StateStreaming,
		})
		return true

	case stream.TypeTextDelta, stream.TypeReasoningDelta:
		i := a.find(partTypeOf(ev.Group()), ev.ID)
		if i < 0 {
			a.msg.Parts = append(a.msg.Parts, Part{
				Type:  partTypeOf(ev.Group()),
				ID:    ev.ID,
				State: StateStreaming,
			})
			i = len(a.msg.Parts) - 1
		}
		a.msg.Parts[i].Text += ev.Delta
		return ev.Delta != ""

	case stream.TypeTextEnd, stream.TypeReasoningEnd:
		if i := a.find(partTypeOf(ev.Group()), ev.ID); i >= 0 {
			a.msg.Parts[i].State = StateDone
			return true
		}
		return false

	case stream.TypeToolCall:
		a.msg.Parts = append(a.msg.Parts, Part{
			Type:             PartTool,
			State:            StateInputAvailable,
			ToolCallID:       ev.ToolCallID,
			ToolName:         ev.ToolName,
			Input:            ev.Input,
			ProviderExecuted: ev.ProviderExecuted,
		})
		return true

	case stream.TypeToolResult:
		for i := len(a.msg.Parts) - 1; i >= 0; i-- {
			p := &a.msg.Parts[i]
			if p.Type == PartTool && p.ToolCallID == ev.ToolCallID && p.Output == nil {
				p.Output = ev.Result
				p.State = StateOutputAvailable
				return true
			}
		}
		a.msg.Parts = append(a.msg.Parts, Part{
			Type:       PartTool,
			State:      StateOutputAvailable,
			ToolCallID: ev.ToolCallID,
			ToolName:   ev.ToolName,
			Output:     ev.Result,
		})
		return true

	case stream.TypeError:
		a.errors = append(a.errors, ev.Error)
		return false

	case stream.TypeFinish:
		a.finished = true
		a.finishReason = ev.FinishReason
		a.usage = ev.Usage
		return false
	}

	if ev.IsData() {
		a.msg.Parts = append(a.msg.Parts, Part{
			Type: PartData,
			ID:   ev.ID,
			Name: strings.TrimPrefix(string(ev.Type), stream.DataPrefix),
			Data: ev.Data,
		})
		return true
	}
	return false
}

// find returns the index of the most recent part of type t with the given
// run id, or -1.
func (a *Assembler) find(t PartType, id string) int {
	for i := len(a.msg.Parts) - 1; i >= 0; i-- {
		if a.msg.Parts[i].Type == t && a.msg.Parts[i].ID == id {
			return i
		}
	}
	return -1
}

// Message returns a copy of the message assembled so far.
func (a *Assembler) Message() Message {
	return a.msg.Clone()
}

// Finished reports whether a finish event was seen.
func (a *Assembler) Finished() bool { return a.finished }

// FinishReason returns the reason from the finish event, if any.
func (a *Assembler) FinishReason() stream.FinishReason { return a.finishReason }

// Usage returns the token usage from the finish event, if any.
func (a *Assembler) Usage() *stream.Usage { return a.usage }

// Errors returns the messages of every error event seen.
func (a *Assembler) Errors() []string {
	return append([]string(nil), a.errors...)
}

func partTypeOf(g stream.Group) PartType {
	if g == stream.GroupReasoning {
		return PartReasoning
	}
	return PartText
}
