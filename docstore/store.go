package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/docsage/ragpipe/schema"
)

// Store resolves a source ID to its document metadata, used to hydrate
// citations with titles and categories the vector store does not carry.
type Store interface {
	Get(ctx context.Context, sourceID string) (*schema.Document, error)
}

// InMemory is a Store backed by a map, suitable for tests and for callers
// that register document metadata at ingestion time.
type InMemory struct {
	mu   sync.RWMutex
	docs map[string]schema.Document
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[string]schema.Document)}
}

func (s *InMemory) Put(doc schema.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.SourceID] = doc
}

func (s *InMemory) Get(_ context.Context, sourceID string) (*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[sourceID]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, schema.ErrSourceNotFound)
	}
	return &doc, nil
}

func (s *InMemory) Delete(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, sourceID)
}
