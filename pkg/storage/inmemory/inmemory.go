// Package inmemory is a map-backed storage driver for tests and for running
// without a database.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards owners and turns
	mu sync.RWMutex

	owners map[string]string

	// turns is keyed by session id, then stream id
	turns map[string]map[string]*llm.ConversationTurn
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		owners: make(map[string]string),
		turns:  make(map[string]map[string]*llm.ConversationTurn),
	}
}

func (s *Driver) ClaimSession(_ context.Context, sessionID, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[sessionID]; ok {
		return owner, nil
	}
	s.owners[sessionID] = user
	return user, nil
}

func (s *Driver) Owner(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[sessionID]
	if !ok {
		return "", storage.NotFoundError{SessionID: sessionID}
	}
	return owner, nil
}

func (s *Driver) SaveTurn(_ context.Context, turn *llm.ConversationTurn) error {
	if turn == nil {
		return errors.New("cannot store nil turn")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byStream, ok := s.turns[turn.SessionID]
	if !ok {
		byStream = make(map[string]*llm.ConversationTurn)
		s.turns[turn.SessionID] = byStream
	}
	stored := *turn
	byStream[turn.StreamID] = &stored
	return nil
}

func (s *Driver) History(_ context.Context, sessionID string) ([]*llm.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*llm.ConversationTurn, 0, len(s.turns[sessionID]))
	for _, t := range s.turns[sessionID] {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op.
func (s *Driver) Close() error {
	return nil
}
