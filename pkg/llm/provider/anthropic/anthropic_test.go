package anthropic_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider"
	"github.com/papercomputeco/relay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/relay/pkg/stream"
)

var _ = Describe("Anthropic Provider", func() {
	var (
		p   provider.Provider
		dec llm.StreamDecoder
	)

	BeforeEach(func() {
		p = anthropic.New()
		dec = p.NewDecoder()
	})

	decodeAll := func(chunks ...string) []stream.Event {
		var out []stream.Event
		for _, c := range chunks {
			events, err := dec.Decode([]byte(c))
			Expect(err).NotTo(HaveOccurred())
			out = append(out, events...)
		}
		return out
	}

	It("claims Messages API stream events", func() {
		Expect(p.CanHandle([]byte(`{"type":"content_block_delta","index":0}`))).To(BeTrue())
		Expect(p.CanHandle([]byte(`{"type":"response.created"}`))).To(BeFalse())
	})

	It("brackets text and thinking blocks explicitly", func() {
		events := decodeAll(
			`{"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":10,"cache_read_input_tokens":5}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"thinking"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"plan"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Hi"}}`,
			`{"type":"content_block_stop","index":1}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`,
			`{"type":"message_stop"}`,
		)

		Expect(events).To(Equal([]stream.Event{
			stream.StartOf(stream.GroupReasoning, "msg_1-0"),
			stream.ReasoningDelta("msg_1-0", "plan"),
			stream.EndOf(stream.GroupReasoning, "msg_1-0"),
			stream.StartOf(stream.GroupText, "msg_1-1"),
			stream.TextDelta("msg_1-1", "Hi"),
			stream.EndOf(stream.GroupText, "msg_1-1"),
		}))

		finish := dec.Finish()
		Expect(finish[0].FinishReason).To(Equal(stream.FinishStop))
		Expect(finish[0].Usage).To(Equal(&stream.Usage{InputTokens: 15, OutputTokens: 3, TotalTokens: 18}))
	})

	It("assembles tool_use input from json deltas", func() {
		events := decodeAll(
			`{"type":"message_start","message":{"id":"m"}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tu_1","name":"search"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"1}"}}`,
			`{"type":"content_block_stop","index":0}`,
		)

		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(stream.TypeToolCall))
		Expect(events[0].ToolCallID).To(Equal("tu_1"))
		Expect(events[0].Input).To(Equal(`{"q":1}`))
	})

	It("surfaces stream errors", func() {
		events := decodeAll(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		Expect(events).To(Equal([]stream.Event{stream.ErrorEvent("Overloaded")}))
		Expect(dec.Finish()[0].FinishReason).To(Equal(stream.FinishError))
	})

	It("moves tool results into a user turn", func() {
		body, err := p.BuildRequest(&llm.ChatRequest{
			Model: "claude",
			Messages: []llm.Message{
				llm.NewTextMessage("user", "q"),
				{Role: "assistant", Content: []llm.ContentBlock{
					{Type: "tool_use", ToolUseID: "t1", ToolName: "s", ToolInput: `{"a":1}`},
					{Type: "tool_result", ToolResultID: "t1", ToolOutput: "r"},
				}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		var decoded struct {
			MaxTokens int `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
				} `json:"content"`
			} `json:"messages"`
		}
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded.MaxTokens).To(Equal(anthropic.DefaultMaxTokens))
		Expect(decoded.Messages).To(HaveLen(3))
		Expect(decoded.Messages[2].Role).To(Equal("user"))
		Expect(decoded.Messages[2].Content[0].Type).To(Equal("tool_result"))
	})
})
