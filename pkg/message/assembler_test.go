package message_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/stream"
)

var _ = Describe("Assembler", func() {
	var asm *message.Assembler

	BeforeEach(func() {
		asm = message.NewAssembler("m1")
	})

	apply := func(events ...stream.Event) {
		for _, ev := range events {
			asm.Apply(ev)
		}
	}

	It("builds text parts from bracketed runs", func() {
		apply(
			stream.Event{Type: stream.TypeStreamStart},
			stream.StartOf(stream.GroupText, "a"),
			stream.TextDelta("a", "Hello"),
			stream.TextDelta("a", " world"),
			stream.EndOf(stream.GroupText, "a"),
			stream.Finish(stream.FinishStop, &stream.Usage{OutputTokens: 2}),
		)

		msg := asm.Message()
		Expect(msg.ID).To(Equal("m1"))
		Expect(msg.Role).To(Equal("assistant"))
		Expect(msg.Parts).To(HaveLen(1))
		Expect(msg.Parts[0].Text).To(Equal("Hello world"))
		Expect(msg.Parts[0].State).To(Equal(message.StateDone))
		Expect(asm.Finished()).To(BeTrue())
		Expect(asm.FinishReason()).To(Equal(stream.FinishStop))
		Expect(asm.Usage().OutputTokens).To(Equal(2))
	})

	It("keeps reasoning separate from text", func() {
		apply(
			stream.StartOf(stream.GroupReasoning, "r"),
			stream.ReasoningDelta("r", "thinking"),
			stream.EndOf(stream.GroupReasoning, "r"),
			stream.StartOf(stream.GroupText, "t"),
			stream.TextDelta("t", "answer"),
		)

		msg := asm.Message()
		Expect(msg.Parts).To(HaveLen(2))
		Expect(msg.Parts[0].Type).To(Equal(message.PartReasoning))
		Expect(msg.Text()).To(Equal("answer"))
		Expect(msg.ContentLength()).To(Equal(len("thinking") + len("answer")))
	})

	It("opens a part for a delta without a start", func() {
		Expect(asm.Apply(stream.TextDelta("x", "hi"))).To(BeTrue())
		Expect(asm.Message().Parts[0].State).To(Equal(message.StateStreaming))
	})

	It("pairs tool results with their calls", func() {
		apply(
			stream.Event{Type: stream.TypeToolCall, ToolCallID: "c1", ToolName: "search", Input: `{"q":1}`},
			stream.Event{Type: stream.TypeToolResult, ToolCallID: "c1", ToolName: "search", Result: json.RawMessage(`"ok"`)},
			stream.Event{Type: stream.TypeToolResult, ToolCallID: "c2", Result: json.RawMessage(`1`)},
		)

		parts := asm.Message().Parts
		Expect(parts).To(HaveLen(2))
		Expect(parts[0].State).To(Equal(message.StateOutputAvailable))
		Expect(string(parts[0].Output)).To(Equal(`"ok"`))
		Expect(parts[1].ToolCallID).To(Equal("c2"))
	})

	It("records data parts and errors", func() {
		apply(
			stream.DataEvent("stream", "s1", json.RawMessage(`{"streamId":"s1"}`)),
			stream.ErrorEvent("boom"),
		)

		parts := asm.Message().Parts
		Expect(parts).To(HaveLen(1))
		Expect(parts[0].Type).To(Equal(message.PartData))
		Expect(parts[0].Name).To(Equal("stream"))
		Expect(parts[0].ID).To(Equal("s1"))
		Expect(asm.Errors()).To(Equal([]string{"boom"}))
	})

	It("returns copies that later events do not mutate", func() {
		apply(stream.TextDelta("a", "one"))
		snap := asm.Message()
		apply(stream.TextDelta("a", "two"))

		Expect(snap.Parts[0].Text).To(Equal("one"))
	})
})

var _ = Describe("Message metrics", func() {
	It("counts characters rather than bytes", func() {
		msg := message.Message{Parts: []message.Part{{Type: message.PartText, Text: "héllo"}}}
		Expect(msg.ContentLength()).To(Equal(5))
	})

	It("counts non-text parts as one unit of activity", func() {
		msg := message.Message{Parts: []message.Part{
			{Type: message.PartText, Text: "abc"},
			{Type: message.PartTool, ToolCallID: "c"},
			{Type: message.PartData, ID: "d"},
		}}
		Expect(msg.ContentLength()).To(Equal(3))
		Expect(msg.ActivityMetric()).To(Equal(5))
	})
})
