package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

// Store is an in-memory port.KeyValueStore suitable for tests and
// single-run demos. Change notifications fan out synchronously to
// subscribers of the written key.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	subs map[string]map[int]func(port.StoreEvent)
	next int
}

func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
		subs: make(map[string]map[int]func(port.StoreEvent)),
	}
}

func (s *Store) Get(ctx context.Context, key string, out any) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = raw
	fns := make([]func(port.StoreEvent), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	ev := port.StoreEvent{Key: key, Value: raw}
	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func (s *Store) Subscribe(key string, fn func(port.StoreEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(port.StoreEvent))
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs[key], id)
		s.mu.Unlock()
	}
}
