package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/stream"
)

func pushAll(d *stream.Deduper, events ...stream.Event) []stream.Event {
	var out []stream.Event
	for _, ev := range events {
		if fwd, ok := d.Push(ev); ok {
			out = append(out, fwd)
		}
	}
	return out
}

var _ = Describe("Deduper", func() {
	var d *stream.Deduper

	BeforeEach(func() {
		d = stream.NewDeduper()
	})

	It("forwards a single end once when fed twice", func() {
		end := stream.EndOf(stream.GroupText, "a")
		out := pushAll(d, stream.StartOf(stream.GroupText, "a"), stream.TextDelta("a", "x"), end, end)

		Expect(types(out)).To(Equal([]string{"text-start:a", "text-delta:a", "text-end:a"}))
	})

	It("drops starts and deltas for a run that already ended", func() {
		out := pushAll(d,
			stream.StartOf(stream.GroupText, "a"),
			stream.EndOf(stream.GroupText, "a"),
			stream.StartOf(stream.GroupText, "a"),
			stream.TextDelta("a", "late"),
		)

		Expect(types(out)).To(Equal([]string{"text-start:a", "text-end:a"}))
	})

	It("keys runs by group as well as id", func() {
		out := pushAll(d,
			stream.EndOf(stream.GroupReasoning, "a"),
			stream.TextDelta("a", "still here"),
		)

		Expect(types(out)).To(Equal([]string{"reasoning-end:a", "text-delta:a"}))
	})

	It("never drops events outside a group", func() {
		finish := stream.Finish(stream.FinishStop, nil)
		Expect(pushAll(d, finish, finish)).To(HaveLen(2))
	})

	Describe("Flush", func() {
		It("closes a dangling text delta", func() {
			pushAll(d, stream.StartOf(stream.GroupText, "a"), stream.TextDelta("a", "x"))

			end, ok := d.Flush()
			Expect(ok).To(BeTrue())
			Expect(end).To(Equal(stream.EndOf(stream.GroupText, "a")))
		})

		It("closes a dangling reasoning delta", func() {
			pushAll(d, stream.StartOf(stream.GroupReasoning, "r"), stream.ReasoningDelta("r", "x"))

			end, ok := d.Flush()
			Expect(ok).To(BeTrue())
			Expect(end.Type).To(Equal(stream.TypeReasoningEnd))
			Expect(end.ID).To(Equal("r"))
		})

		It("does nothing when the last run is closed", func() {
			pushAll(d, stream.TextDelta("a", "x"), stream.EndOf(stream.GroupText, "a"))

			_, ok := d.Flush()
			Expect(ok).To(BeFalse())
		})

		It("does nothing on an empty stream", func() {
			_, ok := d.Flush()
			Expect(ok).To(BeFalse())
		})

		It("only closes once", func() {
			pushAll(d, stream.TextDelta("a", "x"))

			_, first := d.Flush()
			_, second := d.Flush()
			Expect(first).To(BeTrue())
			Expect(second).To(BeFalse())
		})
	})
})
