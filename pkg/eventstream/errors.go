package eventstream

import "errors"

var (
	// ErrNilStreamEvent indicates a nil event was provided to a publisher.
	ErrNilStreamEvent = errors.New("nil stream event")

	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
