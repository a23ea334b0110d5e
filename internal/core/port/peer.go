package port

import (
	"context"

	"github.com/ayursetu/setu/internal/core/domain"
)

// Connection is one end of a peer-to-peer call. OnRemoteStream must be
// installed before the far end answers; Close is idempotent.
type Connection interface {
	ID() domain.ConnectionID
	// Answer accepts an incoming call with the callee's local stream.
	// Calling it on an originated connection is an error.
	Answer(local MediaStream) error
	OnRemoteStream(fn func(MediaStream))
	Close() error
}

// Incoming describes an inbound call before any local resources are
// committed. The callee answers or closes conn to accept or reject.
type Incoming struct {
	Meta domain.CallMetadata
	Conn Connection
}

// PeerEvents are the callbacks a registration installs with the peer
// layer. OnReady fires once the identity is bound; OnIncomingCall fires
// for each inbound call addressed to it.
type PeerEvents struct {
	OnReady        func()
	OnIncomingCall func(in Incoming)
}

// Registration is a bound identity in the peer layer's flat namespace.
type Registration interface {
	Identity() domain.PeerID
	// Call originates a connection to target, offering local media.
	// Unknown targets fail with domain.ErrPeerUnreachable.
	Call(ctx context.Context, target domain.PeerID, local MediaStream, meta domain.CallMetadata) (Connection, error)
	// Close tears down the listening identity and any live connections.
	Close() error
}

// PeerNetwork is the peer-connection collaborator. The handshake and
// media transport behind it are a black box.
type PeerNetwork interface {
	Register(ctx context.Context, id domain.PeerID, events PeerEvents) (Registration, error)
}
