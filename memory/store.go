package memory

import (
	"context"
	"sync"

	"github.com/docsage/ragpipe/schema"
)

// ConversationStore persists per-session exchange history.
type ConversationStore interface {
	AppendExchange(ctx context.Context, sessionID string, ex schema.Exchange) error
	// LastN returns up to n exchanges in chronological order. n <= 0 means all.
	LastN(ctx context.Context, sessionID string, n int) ([]schema.Exchange, error)
	Clear(ctx context.Context, sessionID string) error
}

// InMemoryStore keeps conversations in process memory, capped per session.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]schema.Exchange
	maxRounds int
}

// NewInMemoryStore creates a store keeping at most maxRounds exchanges per
// session. maxRounds <= 0 keeps everything.
func NewInMemoryStore(maxRounds int) *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string][]schema.Exchange),
		maxRounds: maxRounds,
	}
}

func (s *InMemoryStore) AppendExchange(_ context.Context, sessionID string, ex schema.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.sessions[sessionID], ex)
	if s.maxRounds > 0 && len(history) > s.maxRounds {
		history = history[len(history)-s.maxRounds:]
	}
	s.sessions[sessionID] = history
	return nil
}

func (s *InMemoryStore) LastN(_ context.Context, sessionID string, n int) ([]schema.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sessions[sessionID]
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]schema.Exchange, len(history))
	copy(out, history)
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
