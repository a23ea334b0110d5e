package domain

import (
	"strings"

	"github.com/google/uuid"
)

// PeerID is a flat-namespace identity in the external peer layer,
// derived deterministically from a user's email.
type PeerID string

func PeerIDFromEmail(email string) PeerID {
	var b strings.Builder
	for _, r := range strings.ToLower(email) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return PeerID(b.String())
}

func (id PeerID) String() string {
	return string(id)
}

// StreamID labels one acquired media stream.
type StreamID string

func NewStreamID() StreamID {
	return StreamID(uuid.New().String())
}

func (id StreamID) String() string {
	return string(id)
}

// ConnectionID labels one peer-to-peer connection attempt.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New().String())
}

func (id ConnectionID) String() string {
	return string(id)
}
