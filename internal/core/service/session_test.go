package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	mediainproc "github.com/ayursetu/setu/internal/adapter/driven/media/inproc"
	"github.com/ayursetu/setu/internal/adapter/driven/peer/inproc"
	"github.com/ayursetu/setu/internal/core/domain"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type pair struct {
	network *inproc.Network
	devices *mediainproc.Devices

	patient *Session
	doctor  *Session
}

func newPair(t *testing.T) *pair {
	t.Helper()
	network := inproc.NewNetwork()
	devices := mediainproc.NewDevices()

	pUser := mustUser(t, "Asha", "asha@x.com", "pw", domain.RolePatient)
	dUser := mustUser(t, "Mehta", "doc@x.com", "pw", domain.RoleDoctor)

	cfg := SessionConfig{ReregisterDelay: 20 * time.Millisecond}
	p := &pair{
		network: network,
		devices: devices,
		patient: NewSession(network, devices, pUser, cfg, zerolog.Nop()),
		doctor:  NewSession(network, devices, dUser, cfg, zerolog.Nop()),
	}
	if err := p.doctor.Start(context.Background()); err != nil {
		t.Fatalf("doctor start: %v", err)
	}
	t.Cleanup(func() {
		p.patient.Close()
		p.doctor.Close()
	})
	return p
}

func (p *pair) doctorCounterpart() domain.Counterpart {
	return domain.Counterpart{Name: "Dr. Mehta", Email: "doc@x.com"}
}

func TestOriginateAcceptConnect(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	if got := p.patient.Snapshot().Status; got != domain.CallWaiting {
		t.Fatalf("caller status after originate: %s", got)
	}

	waitFor(t, "incoming request", func() bool {
		return p.doctor.Snapshot().Incoming != nil
	})
	in := p.doctor.Snapshot().Incoming
	if in.CallerName != "Asha" || in.CallerEmail != "asha@x.com" {
		t.Fatalf("unexpected incoming metadata %+v", in)
	}
	// Recording the request must not commit the callee's camera.
	if p.doctor.Snapshot().Status != domain.CallIdle {
		t.Fatalf("callee left idle before accept")
	}

	if err := p.doctor.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, "caller connected", func() bool {
		return p.patient.Snapshot().Status == domain.CallConnected
	})
	waitFor(t, "callee connected", func() bool {
		return p.doctor.Snapshot().Status == domain.CallConnected
	})

	snap := p.patient.Snapshot()
	if snap.LocalStream == nil || snap.RemoteStream == nil {
		t.Fatalf("connected caller missing stream handles: %+v", snap)
	}
	if snap.Counterpart.Email != "doc@x.com" {
		t.Fatalf("caller counterpart: %+v", snap.Counterpart)
	}
}

func TestEndReleasesLocalStreamExactlyOnce(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })
	if err := p.doctor.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, "connected", func() bool { return p.patient.Snapshot().Status == domain.CallConnected })

	local := p.patient.Snapshot().LocalStream.(*mediainproc.Stream)
	p.patient.End()
	p.patient.End() // must stay a safe no-op

	snap := p.patient.Snapshot()
	if snap.Status != domain.CallIdle {
		t.Fatalf("status after end: %s", snap.Status)
	}
	if snap.LocalStream != nil || snap.RemoteStream != nil {
		t.Fatalf("stream handles not cleared: %+v", snap)
	}
	if got := local.Stops(); got != 1 {
		t.Fatalf("local stream stopped %d times, want exactly 1", got)
	}
}

func TestOriginateMediaDenied(t *testing.T) {
	p := newPair(t)
	p.devices.Deny(true)

	err := p.patient.Originate(context.Background(), p.doctorCounterpart())
	if !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}
	if got := p.patient.Snapshot().Status; got != domain.CallIdle {
		t.Fatalf("state changed despite media denial: %s", got)
	}
	// The callee must never have seen a request.
	if p.doctor.Snapshot().Incoming != nil {
		t.Fatalf("dangling request on far end after local media denial")
	}
}

func TestAcceptMediaDeniedKeepsRequestPending(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })

	p.devices.Deny(true)
	if err := p.doctor.Accept(ctx); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}
	if p.doctor.Snapshot().Incoming == nil {
		t.Fatalf("request dropped on media denial; should stay pending")
	}

	p.devices.Deny(false)
	if err := p.doctor.Accept(ctx); err != nil {
		t.Fatalf("retry accept: %v", err)
	}
	waitFor(t, "connected after retry", func() bool {
		return p.doctor.Snapshot().Status == domain.CallConnected
	})
}

func TestRejectDiscardsWithoutResources(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })

	if err := p.doctor.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	snap := p.doctor.Snapshot()
	if snap.Incoming != nil || snap.Status != domain.CallIdle || snap.LocalStream != nil {
		t.Fatalf("reject left state behind: %+v", snap)
	}
	if err := p.doctor.Reject(); !errors.Is(err, domain.ErrNoPendingCall) {
		t.Fatalf("second reject: expected ErrNoPendingCall, got %v", err)
	}
}

func TestReentrantSetupRejected(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	if err := p.patient.Originate(ctx, p.doctorCounterpart()); !errors.Is(err, domain.ErrCallInProgress) {
		t.Fatalf("overlapping originate: expected ErrCallInProgress, got %v", err)
	}
	if err := p.patient.Accept(ctx); !errors.Is(err, domain.ErrCallInProgress) {
		t.Fatalf("accept while waiting: expected ErrCallInProgress, got %v", err)
	}
}

func TestAcceptRacingRejectNeverPanics(t *testing.T) {
	// Accept runs off the signaling read loop while Reject and logout
	// stay on it, so the pending request can vanish between Accept's
	// admission check and its read of the request. Whichever side loses
	// must come away with a clean error, never a crash.
	for i := 0; i < 200; i++ {
		p := newPair(t)
		ctx := context.Background()

		if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
			t.Fatalf("originate: %v", err)
		}
		waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })

		acceptErr := make(chan error, 1)
		go func() { acceptErr <- p.doctor.Accept(ctx) }()
		rejectErr := p.doctor.Reject()

		// Accept may win, lose cleanly, or fail answering the closed
		// connection; any of those is fine, a panic is not.
		<-acceptErr
		if rejectErr != nil && !errors.Is(rejectErr, domain.ErrNoPendingCall) {
			t.Fatalf("reject during accept: %v", rejectErr)
		}

		p.patient.End()
		p.doctor.End()
		snap := p.doctor.Snapshot()
		if snap.Incoming != nil || snap.LocalStream != nil {
			t.Fatalf("race left state behind: %+v", snap)
		}
	}
}

func TestAcceptAfterCloseReturnsCleanly(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })

	p.doctor.Close()
	if err := p.doctor.Accept(ctx); err == nil {
		t.Fatalf("accept on a closed session must fail")
	}
}

func TestAcceptWithoutPending(t *testing.T) {
	p := newPair(t)
	if err := p.doctor.Accept(context.Background()); !errors.Is(err, domain.ErrNoPendingCall) {
		t.Fatalf("expected ErrNoPendingCall, got %v", err)
	}
}

func TestCallUnreachablePeer(t *testing.T) {
	p := newPair(t)
	err := p.patient.Originate(context.Background(), domain.Counterpart{Name: "Ghost", Email: "ghost@x.com"})
	if !errors.Is(err, domain.ErrPeerUnreachable) {
		t.Fatalf("expected ErrPeerUnreachable, got %v", err)
	}
	if got := p.patient.Snapshot().Status; got != domain.CallIdle {
		t.Fatalf("failed call left status %s", got)
	}
}

func TestDoctorReregistersAfterEnd(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	if err := p.patient.Originate(ctx, p.doctorCounterpart()); err != nil {
		t.Fatalf("originate: %v", err)
	}
	waitFor(t, "incoming request", func() bool { return p.doctor.Snapshot().Incoming != nil })
	if err := p.doctor.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, "connected", func() bool { return p.doctor.Snapshot().Status == domain.CallConnected })

	p.doctor.End()
	p.patient.End()

	// The doctor's listening identity is torn down and rebound after the
	// configured delay; a new call must land afterwards.
	waitFor(t, "second call to reach the doctor", func() bool {
		if p.patient.Snapshot().Status == domain.CallIdle {
			_ = p.patient.Originate(ctx, p.doctorCounterpart())
		}
		return p.doctor.Snapshot().Incoming != nil
	})
}
