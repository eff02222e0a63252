package provider_test

import (
	"context"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm/provider"
	"github.com/papercomputeco/relay/pkg/llm/provider/openai"
	"github.com/papercomputeco/relay/pkg/stream"
)

func collect(body io.Reader, framing provider.Framing, p provider.Provider, opts provider.StreamOptions) ([]stream.Event, error) {
	var events []stream.Event
	err := provider.Stream(context.Background(), body, framing, p, opts, func(ev stream.Event) {
		events = append(events, ev)
	})
	return events, err
}

func typesOf(events []stream.Event) []stream.EventType {
	out := make([]stream.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

type failingReader struct {
	data string
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("connection reset")
	}
	f.done = true
	return copy(p, f.data), nil
}

var _ = Describe("Stream", func() {
	It("frames SSE chunks with stream-start and finish", func() {
		body := strings.NewReader(
			"data: {\"id\":\"m\",\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
				": keep-alive\n\n" +
				"data: {\"id\":\"m\",\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n")

		events, err := collect(body, provider.FramingSSE, openai.New(), provider.StreamOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(typesOf(events)).To(Equal([]stream.EventType{
			stream.TypeStreamStart,
			stream.TypeTextDelta,
			stream.TypeTextDelta,
			stream.TypeFinish,
		}))
		Expect(events[3].FinishReason).To(Equal(stream.FinishStop))
	})

	It("detects the provider when none is configured", func() {
		body := strings.NewReader(
			`{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done":false}` + "\n" +
				`{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}` + "\n")

		events, err := collect(body, provider.FramingNDJSON, nil, provider.StreamOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(typesOf(events)).To(Equal([]stream.EventType{
			stream.TypeStreamStart,
			stream.TypeTextDelta,
			stream.TypeFinish,
		}))
	})

	It("reports unrecognized chunks and keeps going", func() {
		body := strings.NewReader("data: {\"what\":1}\n\ndata: {\"id\":\"m\",\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")

		events, err := collect(body, provider.FramingSSE, nil, provider.StreamOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(typesOf(events)).To(Equal([]stream.EventType{
			stream.TypeStreamStart,
			stream.TypeError,
			stream.TypeTextDelta,
			stream.TypeFinish,
		}))
		Expect(events[1].Error).To(ContainSubstring("unrecognized"))
		Expect(events[3].FinishReason).To(Equal(stream.FinishError))
	})

	It("skips chunks that fail schema validation", func() {
		body := strings.NewReader("data: {\"id\":\"m\",\"choices\":\"nope\"}\n\n")

		events, err := collect(body, provider.FramingSSE, openai.New(), provider.StreamOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(typesOf(events)).To(Equal([]stream.EventType{
			stream.TypeStreamStart,
			stream.TypeError,
			stream.TypeFinish,
		}))
	})

	It("emits raw events when asked", func() {
		body := strings.NewReader("data: {\"id\":\"m\",\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")

		events, err := collect(body, provider.FramingSSE, openai.New(), provider.StreamOptions{IncludeRaw: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(events[1].Type).To(Equal(stream.TypeRaw))
		Expect(events[1].RawValue).To(MatchJSON(`{"id":"m","choices":[{"delta":{"content":"x"}}]}`))
	})

	It("finishes with an error when the upstream read fails", func() {
		body := &failingReader{data: "data: {\"id\":\"m\",\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"}

		events, err := collect(body, provider.FramingSSE, openai.New(), provider.StreamOptions{})
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(typesOf(events)).To(Equal([]stream.EventType{
			stream.TypeStreamStart,
			stream.TypeTextDelta,
			stream.TypeError,
			stream.TypeFinish,
		}))
		Expect(events[3].FinishReason).To(Equal(stream.FinishError))
	})

	It("picks framing from the content type", func() {
		Expect(provider.FramingFor("text/event-stream; charset=utf-8")).To(Equal(provider.FramingSSE))
		Expect(provider.FramingFor("application/x-ndjson")).To(Equal(provider.FramingNDJSON))
	})
})
