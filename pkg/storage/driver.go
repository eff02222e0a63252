// Package storage persists chat transcripts and session ownership. Stream
// state itself never reaches storage: the stream cache is process-local.
package storage

import (
	"context"

	"github.com/papercomputeco/relay/pkg/llm"
)

// Driver defines the interface for persisting and retrieving transcripts in
// a storage backend.
type Driver interface {
	// ClaimSession records user as the owner of sessionID unless the session
	// is already owned, and returns the owner. Claiming is idempotent.
	ClaimSession(ctx context.Context, sessionID, user string) (string, error)

	// Owner returns the user owning sessionID, or NotFoundError.
	Owner(ctx context.Context, sessionID string) (string, error)

	// SaveTurn stores a completed turn. Saving the same stream id twice
	// replaces the earlier turn.
	SaveTurn(ctx context.Context, turn *llm.ConversationTurn) error

	// History returns the turns of sessionID, oldest first.
	History(ctx context.Context, sessionID string) ([]*llm.ConversationTurn, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Messages flattens turns into upstream request history.
func Messages(turns []*llm.ConversationTurn) []llm.Message {
	var out []llm.Message
	for _, t := range turns {
		out = append(out, t.Messages()...)
	}
	return out
}
