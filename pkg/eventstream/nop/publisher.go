// Package nop is the eventstream.Publisher used when no brokers are
// configured. It validates events and drops them.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/relay/pkg/eventstream"
)

// Publisher discards events.
type Publisher struct {
	closed    atomic.Bool
	published atomic.Int64
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates the event and counts it.
func (p *Publisher) Publish(_ context.Context, event *eventstream.Event) error {
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}
	if event == nil {
		return eventstream.ErrNilStreamEvent
	}
	p.published.Add(1)
	return nil
}

// Published reports how many events were accepted.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
