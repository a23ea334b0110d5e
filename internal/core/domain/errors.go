package domain

import "errors"

var (
	// ErrDuplicateEmail is returned when a signup reuses an existing email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMediaUnavailable is returned when camera/microphone access is
	// denied or no capture device exists.
	ErrMediaUnavailable = errors.New("media devices unavailable")

	// ErrCallInProgress rejects call-setup operations while a session is
	// already waiting or connected.
	ErrCallInProgress = errors.New("call already in progress")

	// ErrNoPendingCall rejects accept/reject without an incoming request.
	ErrNoPendingCall = errors.New("no pending incoming call")

	// ErrPeerRegistration is returned when the peer layer cannot bind the
	// session's identity. Non-fatal; retried on the next action.
	ErrPeerRegistration = errors.New("peer registration failed")

	// ErrPeerUnreachable is returned when the callee identity is not
	// registered with the peer layer.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrNotFound is the generic missing-key result of the store.
	ErrNotFound = errors.New("not found")
)
