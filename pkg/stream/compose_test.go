package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/stream"
)

// tagging appends its label to every delta and reports the last event seen
// as input so tests can observe which last each stage receives.
func tagging(label string, seen *[]*stream.Event) stream.Transformer {
	return func(events []stream.Event, last *stream.Event) ([]stream.Event, *stream.Event) {
		*seen = append(*seen, last)
		out := make([]stream.Event, 0, len(events))
		for _, ev := range events {
			ev.Delta += label
			out = append(out, ev)
		}
		if len(out) == 0 {
			return out, last
		}
		return out, &out[len(out)-1]
	}
}

var _ = Describe("Compose", func() {
	It("applies stages left to right", func() {
		var seen []*stream.Event
		composed := stream.Compose(tagging("1", &seen), tagging("2", &seen))

		out, last := composed([]stream.Event{stream.TextDelta("a", "x")}, nil)

		Expect(out).To(HaveLen(1))
		Expect(out[0].Delta).To(Equal("x12"))
		Expect(last.Delta).To(Equal("x12"))
	})

	It("returns the supplied last when the final stage emits nothing", func() {
		drop := func(_ []stream.Event, last *stream.Event) ([]stream.Event, *stream.Event) {
			return nil, nil
		}
		prev := stream.TextDelta("a", "prev")

		out, last := stream.Compose(drop)([]stream.Event{stream.TextDelta("a", "x")}, &prev)

		Expect(out).To(BeEmpty())
		Expect(last).To(Equal(&prev))
	})

	It("is the identity with no stages", func() {
		in := []stream.Event{stream.TextDelta("a", "x")}
		out, last := stream.Compose()(in, nil)

		Expect(out).To(Equal(in))
		Expect(last).To(BeNil())
	})
})

var _ = Describe("Composer", func() {
	It("threads each stage's own last between calls", func() {
		var seen []*stream.Event
		c := stream.NewComposer(tagging("1", &seen), tagging("2", &seen))

		c.Apply([]stream.Event{stream.TextDelta("a", "x")})
		_, last := c.Apply([]stream.Event{stream.TextDelta("a", "y")})

		Expect(seen).To(HaveLen(4))
		Expect(seen[0]).To(BeNil())
		Expect(seen[1]).To(BeNil())
		Expect(seen[2].Delta).To(Equal("x1"))
		Expect(seen[3].Delta).To(Equal("x12"))
		Expect(last.Delta).To(Equal("y12"))
	})

	It("keeps a stage's previous last when it emits nothing", func() {
		var seen []*stream.Event
		c := stream.NewComposer(stream.FilterRaw(nil), tagging("!", &seen))

		c.Apply([]stream.Event{stream.TextDelta("a", "x")})
		_, last := c.Apply([]stream.Event{{Type: stream.TypeRaw}})

		Expect(last.Delta).To(Equal("x!"))
	})
})
