package llm

import "github.com/papercomputeco/relay/pkg/stream"

// StreamDecoder converts the upstream chunks of a single generation into
// canonical stream events. Decoders are stateful and not safe for
// concurrent use.
type StreamDecoder interface {
	// Decode converts one upstream chunk (an SSE data payload or an NDJSON
	// line). It returns (nil, nil) for chunks that carry nothing to emit.
	Decode(chunk []byte) ([]stream.Event, error)

	// Finish returns the trailing events once the upstream body ends. The
	// last event is always a finish event.
	Finish() []stream.Event
}
