package eventstream

import "context"

// Publisher publishes stream lifecycle and turn events to an event stream
// backend. Publish after Close returns ErrPublisherClosed; Close is
// idempotent.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
