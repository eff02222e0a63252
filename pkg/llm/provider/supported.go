package provider

import (
	"fmt"

	"github.com/papercomputeco/relay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/relay/pkg/llm/provider/chatagent"
	"github.com/papercomputeco/relay/pkg/llm/provider/ollama"
	"github.com/papercomputeco/relay/pkg/llm/provider/openai"
	"github.com/papercomputeco/relay/pkg/llm/provider/responses"
)

// Supported provider type constants
const (
	OpenAI    = "openai"
	ChatAgent = "chatagent"
	Responses = "responses"
	Anthropic = "anthropic"
	Ollama    = "ollama"

	// Auto detects the provider from the first recognizable chunk.
	Auto = "auto"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{OpenAI, ChatAgent, Responses, Anthropic, Ollama, Auto}
}

// New creates a new Provider instance for the given provider type.
// Auto returns a nil Provider: callers detect per stream.
func New(providerType string) (Provider, error) {
	switch providerType {
	case OpenAI:
		return openai.New(), nil
	case ChatAgent:
		return chatagent.New(), nil
	case Responses:
		return responses.New(), nil
	case Anthropic:
		return anthropic.New(), nil
	case Ollama:
		return ollama.New(), nil
	case Auto:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
