// Package provider adapts upstream inference streams to canonical stream
// events. Each sub-package handles one wire format; this package selects
// between them and drives the decoding of an upstream body.
package provider

import (
	"github.com/papercomputeco/relay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/relay/pkg/llm/provider/chatagent"
	"github.com/papercomputeco/relay/pkg/llm/provider/ollama"
	"github.com/papercomputeco/relay/pkg/llm/provider/openai"
	"github.com/papercomputeco/relay/pkg/llm/provider/responses"
)

// Detector manages provider detection by checking registered providers in order.
type Detector struct {
	providers []Provider
}

// NewDetector creates a new Detector with the default set of providers.
// Providers are checked in order: Responses, Anthropic, ChatAgent, OpenAI,
// then Ollama. The typed formats go first since their "type" discriminant
// is unambiguous.
func NewDetector() *Detector {
	return &Detector{
		providers: []Provider{
			responses.New(),
			anthropic.New(),
			chatagent.New(),
			openai.New(),
			ollama.New(),
		},
	}
}

// Detect returns the provider for the given chunk, or ErrUnrecognizedChunk
// when none claims it.
func (d *Detector) Detect(chunk []byte) (Provider, error) {
	for _, p := range d.providers {
		if p.CanHandle(chunk) {
			return p, nil
		}
	}
	return nil, ErrUnrecognizedChunk
}
