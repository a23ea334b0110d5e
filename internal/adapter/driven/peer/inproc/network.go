// Package inproc implements the peer-connection collaborator inside a
// single process: a flat identity namespace where registered peers call
// each other and exchange opaque stream handles. It backs the server's
// signaling hub and the service tests.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

type Network struct {
	mu   sync.Mutex
	regs map[domain.PeerID]*registration
}

func NewNetwork() *Network {
	return &Network{regs: make(map[domain.PeerID]*registration)}
}

func (n *Network) Register(ctx context.Context, id domain.PeerID, events port.PeerEvents) (port.Registration, error) {
	if id == "" {
		return nil, errors.New("empty peer identity")
	}
	n.mu.Lock()
	if _, taken := n.regs[id]; taken {
		n.mu.Unlock()
		return nil, fmt.Errorf("identity %s already bound", id)
	}
	reg := &registration{net: n, id: id, events: events}
	n.regs[id] = reg
	n.mu.Unlock()

	if events.OnReady != nil {
		go events.OnReady()
	}
	return reg, nil
}

func (n *Network) lookup(id domain.PeerID) *registration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.regs[id]
}

func (n *Network) drop(reg *registration) {
	n.mu.Lock()
	if n.regs[reg.id] == reg {
		delete(n.regs, reg.id)
	}
	n.mu.Unlock()
}

type registration struct {
	net    *Network
	id     domain.PeerID
	events port.PeerEvents

	mu     sync.Mutex
	closed bool
	conns  []*conn
}

func (r *registration) Identity() domain.PeerID {
	return r.id
}

func (r *registration) Call(ctx context.Context, target domain.PeerID, local port.MediaStream, meta domain.CallMetadata) (port.Connection, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("registration closed")
	}
	r.mu.Unlock()

	callee := r.net.lookup(target)
	if callee == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPeerUnreachable, target)
	}

	caller := &conn{id: domain.NewConnectionID(), local: local}
	remote := &conn{id: domain.NewConnectionID(), callee: true}
	caller.peer = remote
	remote.peer = caller

	r.track(caller)
	callee.track(remote)

	if callee.events.OnIncomingCall != nil {
		go callee.events.OnIncomingCall(port.Incoming{Meta: meta, Conn: remote})
	}
	return caller, nil
}

func (r *registration) track(c *conn) {
	r.mu.Lock()
	r.conns = append(r.conns, c)
	r.mu.Unlock()
}

func (r *registration) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	r.net.drop(r)
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

// conn is one endpoint of a call. Answering delivers each side's local
// stream to the other side's remote-stream handler; a handler installed
// late still receives a stream that already arrived.
type conn struct {
	id     domain.ConnectionID
	callee bool
	peer   *conn

	mu       sync.Mutex
	local    port.MediaStream
	onRemote func(port.MediaStream)
	buffered port.MediaStream
	answered bool
	closed   bool
}

func (c *conn) ID() domain.ConnectionID {
	return c.id
}

func (c *conn) Answer(local port.MediaStream) error {
	if !c.callee {
		return errors.New("answer on an originated connection")
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connection closed")
	}
	if c.answered {
		c.mu.Unlock()
		return errors.New("already answered")
	}
	c.answered = true
	c.local = local
	callerStream := c.peer.localStream()
	c.mu.Unlock()

	// Complete the exchange both ways.
	c.peer.deliverRemote(local)
	if callerStream != nil {
		c.deliverRemote(callerStream)
	}
	return nil
}

func (c *conn) localStream() port.MediaStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *conn) OnRemoteStream(fn func(port.MediaStream)) {
	c.mu.Lock()
	c.onRemote = fn
	buffered := c.buffered
	c.buffered = nil
	c.mu.Unlock()
	if fn != nil && buffered != nil {
		fn(buffered)
	}
}

func (c *conn) deliverRemote(stream port.MediaStream) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn := c.onRemote
	if fn == nil {
		c.buffered = stream
	}
	c.mu.Unlock()
	if fn != nil {
		fn(stream)
	}
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.peer.mu.Lock()
	peerClosed := c.peer.closed
	c.peer.mu.Unlock()
	if !peerClosed {
		_ = c.peer.Close()
	}
	return nil
}
