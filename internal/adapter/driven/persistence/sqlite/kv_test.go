package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTripAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "users", []string{"a@x.com"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "users", []string{"a@x.com", "b@x.com"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var out []string
	if err := s.Get(ctx, "users", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 || out[1] != "b@x.com" {
		t.Fatalf("last write should win: %+v", out)
	}

	if err := s.Get(ctx, "absent", &out); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.db")
	ctx := context.Background()

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "k", "durable"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	var out string
	if err := s2.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if out != "durable" {
		t.Fatalf("got %q", out)
	}
}

func TestSubscribeFansOutAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var keys []string
	cancel := s.Subscribe("live", func(ev port.StoreEvent) { keys = append(keys, ev.Key) })
	defer cancel()

	if err := s.Set(ctx, "live", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("expected one notification, got %v", keys)
	}
}
