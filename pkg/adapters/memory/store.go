package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/redo/pkg/domain"
)

// Store implements ports.LogStore in memory.
// Logs are kept in their encoded form so that loads behave like a persistence
// round trip. Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save stores an encoded copy of the log.
func (s *Store) Save(ctx context.Context, name string, log domain.Log) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	data, err := domain.EncodeLog(log)
	if err != nil {
		return fmt.Errorf("%w: marshal log %q: %v", domain.ErrPersistence, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = data
	return nil
}

// Load decodes a fresh copy, so callers cannot mutate stored state.
func (s *Store) Load(ctx context.Context, name string) (domain.Log, error) {
	s.mu.RLock()
	data, ok := s.data[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLogNotFound, name)
	}
	log, err := domain.DecodeLog(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode log %q: %v", domain.ErrPersistence, name, err)
	}
	return log, nil
}

// Delete removes the log.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns the stored names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
