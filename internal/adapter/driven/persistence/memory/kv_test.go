package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

func TestGetMissingKey(t *testing.T) {
	s := NewStore()
	var out []string
	if err := s.Get(context.Background(), "nope", &out); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	in := []domain.Herb{{Name: "Neem", Benefit: "Skin detox"}}
	if err := s.Set(ctx, "herbs", in); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []domain.Herb
	if err := s.Get(ctx, "herbs", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Neem" {
		t.Fatalf("round trip broken: %+v", out)
	}
}

func TestSubscribeReceivesChangesForKeyOnly(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var events []port.StoreEvent
	cancel := s.Subscribe("watched", func(ev port.StoreEvent) {
		events = append(events, ev)
	})

	if err := s.Set(ctx, "watched", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "other", 2); err != nil {
		t.Fatalf("set other: %v", err)
	}
	if len(events) != 1 || events[0].Key != "watched" {
		t.Fatalf("expected one event for watched key, got %+v", events)
	}

	cancel()
	cancel() // must be safe to call twice
	if err := s.Set(ctx, "watched", 3); err != nil {
		t.Fatalf("set after cancel: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("event delivered after cancel")
	}
}
