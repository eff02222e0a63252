package client

import (
	"time"

	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/stream"
)

// Result is the outcome of one message.
type Result struct {
	StreamID string

	// Message is the last rendered message.
	Message message.Message

	FinishReason stream.FinishReason
	Usage        *stream.Usage

	// Errors holds error events received in the stream.
	Errors []string

	// Resumes counts successful reconnects.
	Resumes int

	// Complete is false when the stream ended without a finish event, e.g.
	// when the relay had nothing left to resume.
	Complete bool

	Timing Timing
}

// Timing measures a message from the request being sent.
type Timing struct {
	// TTFB is the delay until the first event arrived.
	TTFB time.Duration

	// Total is the delay until the stream finished or was abandoned.
	Total time.Duration
}

type timer struct {
	start time.Time
	first time.Time
}

func newTimer() *timer {
	return &timer{start: time.Now()}
}

func (t *timer) mark() {
	if t.first.IsZero() {
		t.first = time.Now()
	}
}

func (t *timer) timing() Timing {
	out := Timing{Total: time.Since(t.start)}
	if !t.first.IsZero() {
		out.TTFB = t.first.Sub(t.start)
	}
	return out
}
