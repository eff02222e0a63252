package relay

import (
	"time"

	"github.com/papercomputeco/relay/pkg/eventstream"
)

// DefaultUpstreamTimeout bounds a whole upstream generation.
const DefaultUpstreamTimeout = 5 * time.Minute

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the full upstream chat endpoint, e.g.
	// "https://host/serving-endpoints/my-agent/invocations".
	UpstreamURL string

	// UpstreamToken is sent as a bearer token upstream when set.
	UpstreamToken string

	// ProviderType selects the upstream adapter ("openai", "chatagent",
	// "responses", "anthropic", "ollama"), or "auto" to detect it from the
	// first chunk of each stream.
	ProviderType string

	// Model is used when the client does not name one.
	Model string

	// UpstreamTimeout bounds each upstream request. Zero uses
	// DefaultUpstreamTimeout.
	UpstreamTimeout time.Duration

	// IncludeRaw forwards every upstream chunk to clients as a raw event.
	IncludeRaw bool

	// Source identifies this relay in published events.
	Source eventstream.EventSource
}
