// Package inproc provides a process-local media-device collaborator:
// streams are opaque handles with no real capture behind them. Suitable
// for tests and headless demos.
package inproc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

type Devices struct {
	denied atomic.Bool
}

func NewDevices() *Devices {
	return &Devices{}
}

// Deny makes subsequent Acquire calls fail, simulating a user refusing
// the camera/microphone prompt.
func (d *Devices) Deny(deny bool) {
	d.denied.Store(deny)
}

func (d *Devices) Acquire(ctx context.Context, c port.MediaConstraints) (port.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.denied.Load() {
		return nil, domain.ErrMediaUnavailable
	}
	return &Stream{id: domain.NewStreamID()}, nil
}

// Stream counts StopTracks invocations so tests can assert the
// exactly-once release guarantee.
type Stream struct {
	id    domain.StreamID
	mu    sync.Mutex
	stops int
}

func (s *Stream) ID() domain.StreamID {
	return s.id
}

func (s *Stream) StopTracks() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *Stream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
