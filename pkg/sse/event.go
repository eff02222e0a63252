// Package sse reads and writes the small subset of Server-Sent Events used by
// relay: upstream adapters read vendor streams with Reader, and the relay
// frames canonical events for clients with Frame.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneData is the data payload of the final event of a canonical stream.
const DoneData = "[DONE]"

// Event is one parsed SSE event, delimited by a blank line.
type Event struct {
	// Type comes from the "event:" field; empty means "message".
	Type string

	// Data joins every "data:" line of the event with "\n".
	Data string

	ID string
}

// IsDone reports whether the event is the [DONE] sentinel.
func (e *Event) IsDone() bool {
	return e.Data == DoneData
}
