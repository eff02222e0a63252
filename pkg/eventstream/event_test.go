package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/llm"
)

var _ = Describe("Event", func() {
	source := eventstream.EventSource{Service: "relay", Provider: "openai"}

	It("marshals stream events without a turn", func() {
		at := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewStreamEvent(source, "completed", eventstream.StreamMeta{
			StreamID:  "st-1",
			SessionID: "s1",
			Chunks:    4,
			At:        at,
		})

		Expect(event.EventType).To(Equal("relay.stream.completed"))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.SessionID()).To(Equal("s1"))

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("stream"))
		Expect(got).NotTo(HaveKey("turn"))
	})

	It("marshals turn events keyed by session", func() {
		turn := &llm.ConversationTurn{
			SessionID: "s2",
			StreamID:  "st-2",
			Prompt:    llm.NewTextMessage("user", "hello"),
			Response:  llm.NewTextMessage("assistant", "hi"),
		}
		event := eventstream.NewTurnEvent(source, turn)

		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnPersisted))
		Expect(event.SessionID()).To(Equal("s2"))

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(ContainSubstring(`"turn"`))
		Expect(string(payload)).NotTo(ContainSubstring(`"stream"`))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(Equal(1))
		Expect(eventstream.EventTypeTurnPersisted).To(Equal("relay.turn.persisted"))
	})
})
