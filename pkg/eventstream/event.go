package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after a conversation turn is persisted.
	EventTypeTurnPersisted = "relay.turn.persisted"

	// StreamEventPrefix prefixes stream lifecycle event types, e.g.
	// "relay.stream.completed".
	StreamEventPrefix = "relay.stream."
)

// Event is a transport-neutral payload describing either a stream lifecycle
// change or a persisted turn. Exactly one of Stream and Turn is set.
type Event struct {
	SchemaVersion int                   `json:"schema_version"`
	EventType     string                `json:"event_type"`
	EventID       string                `json:"event_id"`
	EmittedAt     time.Time             `json:"emitted_at"`
	Source        EventSource           `json:"source"`
	Stream        *StreamMeta           `json:"stream,omitempty"`
	Turn          *llm.ConversationTurn `json:"turn,omitempty"`
}

// EventSource identifies the relay instance that emitted the event.
type EventSource struct {
	Service  string `json:"service"`
	Provider string `json:"provider,omitempty"`
}

// StreamMeta describes a buffered stream at the moment of a lifecycle change.
type StreamMeta struct {
	StreamID  string    `json:"stream_id"`
	SessionID string    `json:"session_id"`
	Chunks    int       `json:"chunks"`
	At        time.Time `json:"at"`
}

// NewStreamEvent builds a lifecycle event. kind is appended to
// StreamEventPrefix.
func NewStreamEvent(source EventSource, kind string, meta StreamMeta) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     StreamEventPrefix + kind,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Stream:        &meta,
	}
}

// NewTurnEvent builds a turn-persisted event.
func NewTurnEvent(source EventSource, turn *llm.ConversationTurn) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Turn:          turn,
	}
}

// SessionID returns the session the event belongs to, used as the
// partitioning key by publishers that order per key.
func (e *Event) SessionID() string {
	switch {
	case e.Stream != nil:
		return e.Stream.SessionID
	case e.Turn != nil:
		return e.Turn.SessionID
	}
	return ""
}
