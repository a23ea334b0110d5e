package port

import (
	"context"

	"github.com/ayursetu/setu/internal/core/domain"
)

type MediaConstraints struct {
	Video bool
	Audio bool
}

// MediaStream is a live capture handle. StopTracks releases the
// underlying devices; implementations must tolerate repeated calls but
// the session guarantees it is invoked exactly once per stream.
type MediaStream interface {
	ID() domain.StreamID
	StopTracks()
}

// MediaDevices is the camera/microphone collaborator. Acquire blocks
// until the user grants or denies access, or ctx expires; denial is
// reported as domain.ErrMediaUnavailable.
type MediaDevices interface {
	Acquire(ctx context.Context, c MediaConstraints) (MediaStream, error)
}
