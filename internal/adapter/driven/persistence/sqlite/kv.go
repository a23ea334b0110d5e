package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

// Store persists JSON values to a single SQLite table, one row per key.
// Writes are last-writer-wins; there are no transactions spanning keys.
// Change notifications fan out in-process after each successful write,
// mirroring the storage-change events other contexts observe.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[string]map[int]func(port.StoreEvent)
	next int
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "ayursetu.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db, subs: make(map[string]map[int]func(port.StoreEvent))}, nil
}

func (s *Store) Get(ctx context.Context, key string, out any) error {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select %s: %w", key, err)
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
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, payload) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`, key, raw); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}

	s.mu.Lock()
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

func (s *Store) Close() error {
	return s.db.Close()
}
