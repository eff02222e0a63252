package stream

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/relay/pkg/sse"
)

// Encode returns ev as one SSE-framed chunk, ready for the wire and the
// stream cache.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	return sse.Frame(data), nil
}

// Decode parses the data payload of one SSE event into an Event.
func Decode(data string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return Event{}, fmt.Errorf("decoding stream event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decoding stream event: missing type")
	}
	return ev, nil
}
