package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

// DefaultReregisterDelay is how long a doctor session waits after a
// call ends before rebinding its listening identity with the peer
// layer.
const DefaultReregisterDelay = time.Second

// CallSnapshot is the session state exposed to the shell.
type CallSnapshot struct {
	Status       domain.CallStatus
	Counterpart  domain.Counterpart
	Incoming     *domain.CallMetadata
	LocalStream  port.MediaStream
	RemoteStream port.MediaStream
}

// SessionConfig tunes one session. Zero values pick defaults.
type SessionConfig struct {
	// ReregisterDelay overrides DefaultReregisterDelay.
	ReregisterDelay time.Duration
	// Notify, when set, is invoked after every visible state change.
	// Called without the session lock held.
	Notify func(CallSnapshot)
}

// Session owns the lifecycle of a single active call for one user:
// idle -> waiting -> connected -> idle, with an inbound request modeled
// as a pending value rather than a state. Media is always acquired
// before any transition that involves the far end, so a denied camera
// never leaves a dangling request on the other side.
//
// Exactly one Session is active per user. All handles it holds are
// released when the call ends or the session closes.
type Session struct {
	network port.PeerNetwork
	devices port.MediaDevices
	user    domain.User
	log     zerolog.Logger
	cfg     SessionConfig

	mu          sync.Mutex
	status      domain.CallStatus
	reg         port.Registration
	conn        port.Connection
	local       port.MediaStream
	remote      port.MediaStream
	counterpart domain.Counterpart
	pending     *port.Incoming
	setup       bool // a call-setup operation is in flight
	closed      bool
	reregTimer  *time.Timer
}

func NewSession(network port.PeerNetwork, devices port.MediaDevices, user domain.User, cfg SessionConfig, log zerolog.Logger) *Session {
	if cfg.ReregisterDelay <= 0 {
		cfg.ReregisterDelay = DefaultReregisterDelay
	}
	return &Session{
		network: network,
		devices: devices,
		user:    user,
		cfg:     cfg,
		log:     log.With().Str("peer_id", user.PeerID().String()).Logger(),
		status:  domain.CallIdle,
	}
}

// Start binds the session's identity with the peer layer so inbound
// calls can be received. A failure is non-fatal: the bind is retried on
// the next call-setup operation.
func (s *Session) Start(ctx context.Context) error {
	return s.ensureRegistered(ctx)
}

func (s *Session) ensureRegistered(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrPeerRegistration
	}
	if s.reg != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	reg, err := s.network.Register(ctx, s.user.PeerID(), port.PeerEvents{
		OnReady: func() {
			s.log.Debug().Msg("Peer identity bound")
		},
		OnIncomingCall: s.handleIncoming,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Peer registration failed")
		return fmt.Errorf("%w: %v", domain.ErrPeerRegistration, err)
	}

	s.mu.Lock()
	if s.closed || s.reg != nil {
		s.mu.Unlock()
		_ = reg.Close()
		return nil
	}
	s.reg = reg
	s.mu.Unlock()
	return nil
}

// beginSetup guards against overlapping call-setup operations. The
// session lock is never held across media acquisition or peer calls,
// which block on user prompts and the network.
func (s *Session) beginSetup(needPending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.CallIdle || s.setup {
		return domain.ErrCallInProgress
	}
	if needPending && s.pending == nil {
		return domain.ErrNoPendingCall
	}
	s.setup = true
	return nil
}

func (s *Session) endSetup() {
	s.mu.Lock()
	s.setup = false
	s.mu.Unlock()
}

// Originate places a call to the target. The local stream is acquired
// first; on denial the state stays idle and ErrMediaUnavailable is
// returned without the far end ever seeing a request.
func (s *Session) Originate(ctx context.Context, target domain.Counterpart) error {
	if err := s.beginSetup(false); err != nil {
		return err
	}
	defer s.endSetup()

	if err := s.ensureRegistered(ctx); err != nil {
		return err
	}

	stream, err := s.devices.Acquire(ctx, port.MediaConstraints{Video: true, Audio: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("Media acquisition failed")
		return fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		// Closed between registration and the call.
		stream.StopTracks()
		return domain.ErrPeerRegistration
	}

	meta := domain.CallMetadata{CallerName: s.user.Name, CallerEmail: s.user.Email}
	conn, err := reg.Call(ctx, domain.PeerIDFromEmail(target.Email), stream, meta)
	if err != nil {
		stream.StopTracks()
		s.log.Warn().Err(err).Str("target", target.Email).Msg("Call origination failed")
		return err
	}
	conn.OnRemoteStream(s.handleRemoteStream)

	s.mu.Lock()
	s.status = domain.CallWaiting
	s.local = stream
	s.conn = conn
	s.counterpart = target
	s.mu.Unlock()

	s.log.Info().Str("target", target.Email).Msg("Call originated, waiting for answer")
	s.notify()
	return nil
}

// handleIncoming records an inbound call without acquiring media or
// changing the visible state, so the user decides before committing
// camera resources. A second inbound call while busy is turned away.
func (s *Session) handleIncoming(in port.Incoming) {
	s.mu.Lock()
	if s.closed || s.pending != nil || s.status != domain.CallIdle {
		s.mu.Unlock()
		_ = in.Conn.Close()
		return
	}
	s.pending = &in
	s.mu.Unlock()

	s.log.Info().Str("caller", in.Meta.CallerName).Msg("Incoming call")
	s.notify()
}

// Accept answers the pending request. Media denial leaves the request
// pending so the user may retry.
func (s *Session) Accept(ctx context.Context) error {
	if err := s.beginSetup(true); err != nil {
		return err
	}
	defer s.endSetup()

	s.mu.Lock()
	if s.pending == nil {
		// Rejected or closed between beginSetup and here.
		s.mu.Unlock()
		return domain.ErrNoPendingCall
	}
	in := *s.pending
	s.mu.Unlock()

	stream, err := s.devices.Acquire(ctx, port.MediaConstraints{Video: true, Audio: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("Media acquisition failed, request stays pending")
		return fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	s.mu.Lock()
	s.pending = nil
	s.status = domain.CallWaiting
	s.local = stream
	s.conn = in.Conn
	s.counterpart = domain.Counterpart{Name: in.Meta.CallerName, Email: in.Meta.CallerEmail}
	s.mu.Unlock()

	in.Conn.OnRemoteStream(s.handleRemoteStream)
	if err := in.Conn.Answer(stream); err != nil {
		s.log.Error().Err(err).Msg("Answer failed")
		s.End()
		return err
	}

	s.log.Info().Str("caller", in.Meta.CallerName).Msg("Call accepted")
	s.notify()
	return nil
}

// Reject discards the pending request. No resources were acquired.
func (s *Session) Reject() error {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return domain.ErrNoPendingCall
	}
	in := s.pending
	s.pending = nil
	s.mu.Unlock()

	_ = in.Conn.Close()
	s.log.Info().Str("caller", in.Meta.CallerName).Msg("Call rejected")
	s.notify()
	return nil
}

// handleRemoteStream completes the stream exchange: the session becomes
// connected and both handles are exposed to the shell. A stream landing
// after the call ended is ignored.
func (s *Session) handleRemoteStream(remote port.MediaStream) {
	s.mu.Lock()
	if s.conn == nil || s.status != domain.CallWaiting {
		s.mu.Unlock()
		return
	}
	s.remote = remote
	s.status = domain.CallConnected
	s.mu.Unlock()

	s.log.Info().Str("stream", remote.ID().String()).Msg("Remote stream arrived, call connected")
	s.notify()
}

// End tears the call down: closes the peer connection, stops the local
// tracks exactly once, clears session state. Safe to call from any
// state, including repeatedly. A pending incoming request survives; use
// Reject for that path.
//
// Doctor sessions drop their listening identity on teardown and
// schedule an automatic rebind so later inbound calls still land.
func (s *Session) End() {
	s.mu.Lock()
	conn := s.conn
	local := s.local
	changed := s.conn != nil || s.local != nil || s.status != domain.CallIdle
	s.conn = nil
	s.local = nil
	s.remote = nil
	s.counterpart = domain.Counterpart{}
	s.status = domain.CallIdle

	var reg port.Registration
	doctor := s.user.Role == domain.RoleDoctor
	if changed && doctor && !s.closed {
		reg = s.reg
		s.reg = nil
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if local != nil {
		local.StopTracks()
	}
	if !changed {
		return
	}

	s.log.Info().Msg("Call ended")
	s.notify()

	if doctor {
		if reg != nil {
			_ = reg.Close()
		}
		s.scheduleReregister()
	}
}

func (s *Session) scheduleReregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.reregTimer != nil {
		s.reregTimer.Stop()
	}
	s.reregTimer = time.AfterFunc(s.cfg.ReregisterDelay, func() {
		if err := s.ensureRegistered(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("Peer re-registration failed")
		}
	})
}

// Close releases everything: the active call, any pending request, the
// peer registration, and the rebind timer. The session is unusable
// afterwards. Used on logout.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.reregTimer != nil {
		s.reregTimer.Stop()
		s.reregTimer = nil
	}
	pending := s.pending
	s.pending = nil
	reg := s.reg
	s.reg = nil
	s.mu.Unlock()

	s.End()
	if pending != nil {
		_ = pending.Conn.Close()
	}
	if reg != nil {
		_ = reg.Close()
	}
	s.log.Info().Msg("Session closed")
}

// Snapshot returns the current visible state.
func (s *Session) Snapshot() CallSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := CallSnapshot{
		Status:       s.status,
		Counterpart:  s.counterpart,
		LocalStream:  s.local,
		RemoteStream: s.remote,
	}
	if s.pending != nil {
		meta := s.pending.Meta
		snap.Incoming = &meta
	}
	return snap
}

func (s *Session) notify() {
	if s.cfg.Notify == nil {
		return
	}
	s.cfg.Notify(s.Snapshot())
}
