package stream_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/stream"
)

var _ = Describe("Encode", func() {
	It("uses camelCase keys on the wire", func() {
		chunk, err := stream.Encode(stream.Event{
			Type:             stream.TypeToolCall,
			ToolCallID:       "c1",
			ToolName:         "search",
			Input:            "{}",
			ProviderExecuted: true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(Equal(
			"data: {\"type\":\"tool-call\",\"toolCallId\":\"c1\",\"toolName\":\"search\",\"input\":\"{}\",\"providerExecuted\":true}\n\n"))
	})

	It("decodes what it encodes", func() {
		in := stream.Finish(stream.FinishStop, &stream.Usage{InputTokens: 2, OutputTokens: 5, TotalTokens: 7})
		chunk, err := stream.Encode(in)
		Expect(err).NotTo(HaveOccurred())

		ev, err := sse.NewReader(strings.NewReader(string(chunk))).Next()
		Expect(err).NotTo(HaveOccurred())

		out, err := stream.Decode(ev.Data)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("rejects payloads without a type", func() {
		_, err := stream.Decode(`{"id":"a"}`)
		Expect(err).To(HaveOccurred())
	})
})
