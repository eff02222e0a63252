package stream_test

import (
	"encoding/json"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/stream"
)

func run(p *stream.Pipeline, events ...stream.Event) []stream.Event {
	var out []stream.Event
	for _, ev := range events {
		out = append(out, p.Push(ev)...)
	}
	return append(out, p.Flush()...)
}

var _ = Describe("Pipeline", func() {
	var p *stream.Pipeline

	BeforeEach(func() {
		p = stream.NewPipeline()
	})

	It("frames two bare deltas into a complete text run", func() {
		out := run(p, stream.TextDelta("msg", "Hello"), stream.TextDelta("msg", " world"))

		Expect(out).To(Equal([]stream.Event{
			stream.StartOf(stream.GroupText, "msg"),
			stream.TextDelta("msg", "Hello"),
			stream.TextDelta("msg", " world"),
			stream.EndOf(stream.GroupText, "msg"),
		}))
	})

	It("closes the text run before finish", func() {
		out := run(p,
			stream.Event{Type: stream.TypeStreamStart},
			stream.TextDelta("msg", "Hi"),
			stream.Finish(stream.FinishStop, &stream.Usage{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}),
		)

		Expect(types(out)).To(Equal([]string{"stream-start", "text-start:msg", "text-delta:msg", "text-end:msg", "finish"}))
	})

	It("drops raw events by default", func() {
		out := run(p, stream.Event{Type: stream.TypeRaw, RawValue: json.RawMessage(`{}`)})
		Expect(out).To(BeEmpty())
	})

	It("keeps raw events accepted by the raw filter", func() {
		p = stream.NewPipeline(stream.WithRawFilter(func(stream.Event) bool { return true }))

		out := run(p, stream.Event{Type: stream.TypeRaw, RawValue: json.RawMessage(`{}`)})
		Expect(types(out)).To(Equal([]string{"raw"}))
	})

	It("keeps text that continues after an inline tool call", func() {
		out := run(p,
			stream.TextDelta("msg", `Let me look. <tool_call>{"id":"c1","name":"search","arguments":"{}"}</tool_call>`),
			stream.TextDelta("msg", `<tool_call_result>{"id":"c1","content":"found"}</tool_call_result>`),
			stream.TextDelta("msg", "It is "),
			stream.TextDelta("msg", "found."),
		)

		Expect(types(out)).To(Equal([]string{
			"text-start:msg", "text-delta:msg", "text-end:msg",
			"tool-call", "tool-result",
			"text-start:msg-1", "text-delta:msg-1", "text-delta:msg-1", "text-end:msg-1",
		}))
	})

	It("drops a resent copy of a run that already ended", func() {
		out := run(p,
			stream.TextDelta("item", "Hi"),
			stream.EndOf(stream.GroupText, "item"),
			stream.TextDelta("item", "Hi"),
			stream.EndOf(stream.GroupText, "item"),
		)

		Expect(types(out)).To(Equal([]string{"text-start:item", "text-delta:item", "text-end:item"}))
	})

	It("ignores an explicit end arriving after the run was interrupted", func() {
		out := run(p,
			stream.TextDelta("item", "Hi"),
			stream.Event{Type: stream.TypeToolCall, ToolCallID: "c1", ToolName: "f"},
			stream.EndOf(stream.GroupText, "item"),
		)

		Expect(types(out)).To(Equal([]string{"text-start:item", "text-delta:item", "text-end:item", "tool-call"}))
	})

	It("passes the original event through when a stage panics", func() {
		boom := func([]stream.Event, *stream.Event) ([]stream.Event, *stream.Event) {
			panic("boom")
		}
		p = stream.NewPipeline(stream.WithTransformer(boom))

		ev := stream.TextDelta("msg", "survives")
		Expect(p.Push(ev)).To(Equal([]stream.Event{ev}))
	})

	Context("over arbitrary input", func() {
		It("emits at most one start and one end per run, properly bracketed", func() {
			r := rand.New(rand.NewSource(11))

			for range 300 {
				p := stream.NewPipeline()
				out := run(p, randomEvents(r, 1+r.Intn(40))...)

				Expect(bracketViolation(out)).To(BeEmpty())

				starts := map[string]int{}
				ends := map[string]int{}
				for _, ev := range out {
					key := ev.Group().String() + "/" + ev.ID
					switch ev.Kind() {
					case stream.KindStart:
						starts[key]++
					case stream.KindEnd:
						ends[key]++
					}
				}
				for key, n := range starts {
					Expect(n).To(Equal(1), "starts for %s", key)
					Expect(ends[key]).To(Equal(1), "ends for %s", key)
				}
			}
		})
	})
})
