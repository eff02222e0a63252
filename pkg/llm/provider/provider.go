package provider

import (
	"errors"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/relay/pkg/llm"
)

// ErrUnrecognizedChunk is reported when no provider claims an upstream chunk.
var ErrUnrecognizedChunk = errors.New("unrecognized upstream chunk")

// Provider defines one upstream wire format. Each implementation knows how to
// encode the relay's chat request for its API, how to recognize its
// streaming chunks, and how to decode them into canonical events.
type Provider interface {
	// Name returns the canonical provider name (e.g., "openai", "chatagent", "ollama")
	Name() string

	// CanHandle returns true if a streaming chunk appears to come from this
	// provider. Implementations check discriminating fields only.
	CanHandle(chunk []byte) bool

	// BuildRequest encodes a streaming upstream request body.
	BuildRequest(req *llm.ChatRequest) ([]byte, error)

	// ChunkSchema describes a valid streaming chunk. Chunks that fail
	// validation are reported as error events and skipped.
	ChunkSchema() *jsonschema.Schema

	// NewDecoder returns a decoder for one generation.
	NewDecoder() llm.StreamDecoder
}
