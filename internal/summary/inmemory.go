package summary

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore keeps summaries in process memory for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]string)}
}

func (s *InMemoryStore) WriteSummary(_ context.Context, destination, text string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return ErrInvalidDestination
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[destination] = text
	return nil
}

func (s *InMemoryStore) ReadSummary(_ context.Context, destination string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.entries[strings.TrimSpace(destination)]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (s *InMemoryStore) Close() error { return nil }
