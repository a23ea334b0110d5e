package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/auth"
	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
	"github.com/ayursetu/setu/internal/core/service"
)

const sendBuffer = 32

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one signaling connection: a websocket, the user's call
// session, and the media bridge that lets the session acquire the
// browser's camera remotely.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	user    domain.User
	id      domain.PeerID
	session *service.Session
	media   *wsMedia
	log     zerolog.Logger

	send chan envelope
	done chan struct{}
	once sync.Once

	mu         sync.Mutex
	lastStatus domain.CallStatus
}

func (c *Client) push(event string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("Encode push failed")
		return
	}
	select {
	case c.send <- envelope{Event: event, Data: raw}:
	case <-c.done:
	default:
		c.log.Warn().Str("event", event).Msg("Send buffer full, dropping message")
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Error().Err(err).Msg("Write failed")
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type streamView struct {
	ID      string `json:"id"`
	Payload string `json:"payload,omitempty"`
}

type statusView struct {
	Status       domain.CallStatus    `json:"status"`
	Counterpart  domain.Counterpart   `json:"counterpart"`
	Incoming     *domain.CallMetadata `json:"incoming,omitempty"`
	LocalStream  *streamView          `json:"localStream,omitempty"`
	RemoteStream *streamView          `json:"remoteStream,omitempty"`
}

func viewStream(s port.MediaStream) *streamView {
	if s == nil {
		return nil
	}
	v := &streamView{ID: s.ID().String()}
	if ws, ok := s.(*wsStream); ok {
		v.Payload = ws.payload
	}
	return v
}

// pushStatus mirrors every session state change to the browser and
// keeps the call counters honest across transitions.
func (c *Client) pushStatus(snap service.CallSnapshot) {
	c.mu.Lock()
	prev := c.lastStatus
	c.lastStatus = snap.Status
	c.mu.Unlock()

	if m := c.hub.metrics; m != nil {
		if prev != domain.CallConnected && snap.Status == domain.CallConnected {
			m.CallsConnected.Inc()
		}
		if prev != domain.CallIdle && snap.Status == domain.CallIdle {
			m.CallsEnded.Inc()
		}
	}

	view := statusView{
		Status:       snap.Status,
		Counterpart:  snap.Counterpart,
		Incoming:     snap.Incoming,
		LocalStream:  viewStream(snap.LocalStream),
		RemoteStream: viewStream(snap.RemoteStream),
	}
	c.push("call_status", view)
	if snap.Incoming != nil {
		c.push("incoming_call", snap.Incoming)
	}
}

// wsStream represents the browser's local capture. The payload is the
// opaque negotiation blob (SDP) the far end needs; the server never
// inspects it.
type wsStream struct {
	id      domain.StreamID
	payload string
	client  *Client
	once    sync.Once
}

func (s *wsStream) ID() domain.StreamID { return s.id }

func (s *wsStream) StopTracks() {
	s.once.Do(func() {
		s.client.push("stop_media", map[string]string{"streamId": s.id.String()})
	})
}

type mediaResult struct {
	stream *wsStream
	err    error
}

// wsMedia implements the media-device collaborator across the socket:
// Acquire asks the browser for camera/microphone access and blocks
// until the client reports media_ready or media_error.
type wsMedia struct {
	client  *Client
	timeout time.Duration

	mu     sync.Mutex
	waiter chan mediaResult
}

func newWSMedia(client *Client, timeout time.Duration) *wsMedia {
	return &wsMedia{client: client, timeout: timeout}
}

func (m *wsMedia) Acquire(ctx context.Context, c port.MediaConstraints) (port.MediaStream, error) {
	ch := make(chan mediaResult, 1)
	m.mu.Lock()
	if m.waiter != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: acquisition already in flight", domain.ErrMediaUnavailable)
	}
	m.waiter = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.waiter = nil
		m.mu.Unlock()
	}()

	m.client.push("media_request", map[string]bool{"video": c.Video, "audio": c.Audio})

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.stream, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.client.done:
		return nil, fmt.Errorf("%w: client disconnected", domain.ErrMediaUnavailable)
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response from client", domain.ErrMediaUnavailable)
	}
}

func (m *wsMedia) resolve(res mediaResult) {
	m.mu.Lock()
	ch := m.waiter
	m.waiter = nil
	m.mu.Unlock()
	if ch != nil {
		ch <- res
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type incomingDTO struct {
	Type     string `json:"type"`
	Email    string `json:"email,omitempty"`
	To       string `json:"to,omitempty"`
	Signal   string `json:"signal,omitempty"`
	StreamID string `json:"streamId,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ServeWS authenticates the bearer token carried as a query parameter,
// binds a call session for the user, and pumps signaling messages until
// the socket drops. Logout is implicit in the disconnect: the session
// and all its handles are released.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.Validate(h.cfg.JWTSecret, r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	user, err := h.Directory.UserByEmail(r.Context(), claims.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h.Hub,
		conn: conn,
		user: user,
		id:   user.PeerID(),
		send: make(chan envelope, sendBuffer),
		done: make(chan struct{}),
		log:  h.log.With().Str("peer_id", user.PeerID().String()).Logger(),
	}
	client.media = newWSMedia(client, h.cfg.MediaTimeout)
	client.session = service.NewSession(h.Hub.network, client.media, user, service.SessionConfig{
		ReregisterDelay: h.cfg.ReregisterDelay,
		Notify:          client.pushStatus,
	}, client.log)

	go client.writePump()
	h.Hub.Register(client)
	if h.Metrics != nil {
		h.Metrics.ConnectedClients.Inc()
	}
	client.log.Info().Msg("Client connected")

	defer func() {
		client.session.Close()
		h.Hub.Unregister(client)
		if h.Metrics != nil {
			h.Metrics.ConnectedClients.Dec()
		}
		client.log.Info().Msg("Client disconnected")
	}()

	// Bind the listening identity up front so inbound calls land.
	// Failure is visible but non-fatal; retried on the next action.
	if err := client.session.Start(r.Context()); err != nil {
		client.push("error", map[string]string{"message": "peer registration failed"})
	}

	for {
		var req incomingDTO
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				client.log.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}
		h.dispatch(client, req)
	}
}

// dispatch routes one client message. Call-setup operations run in
// their own goroutine because they block on media acquisition, which is
// answered on this same read loop.
func (h *Handler) dispatch(c *Client, req incomingDTO) {
	switch req.Type {
	case "call":
		go h.handleCall(c, req.Email)
	case "accept":
		go func() {
			if err := c.session.Accept(context.Background()); err != nil {
				c.pushSessionError(err)
			}
		}()
	case "reject":
		if err := c.session.Reject(); err != nil {
			c.pushSessionError(err)
		}
	case "end":
		c.session.End()
	case "media_ready":
		c.media.resolve(mediaResult{stream: &wsStream{
			id:      domain.StreamID(req.StreamID),
			payload: req.Payload,
			client:  c,
		}})
	case "media_error":
		c.media.resolve(mediaResult{err: fmt.Errorf("%w: %s", domain.ErrMediaUnavailable, req.Reason)})
	case "signal":
		h.Hub.Relay(domain.Signal{
			Type:    domain.SignalType(req.Signal),
			From:    c.id,
			To:      domain.PeerIDFromEmail(req.To),
			Payload: req.Payload,
		})
	default:
		c.log.Warn().Str("type", req.Type).Msg("Unknown message type")
	}
}

func (h *Handler) handleCall(c *Client, email string) {
	target, err := h.Directory.UserByEmail(context.Background(), email)
	if err != nil {
		c.push("error", map[string]string{"message": "no such user"})
		return
	}
	if h.Metrics != nil {
		h.Metrics.CallsOriginated.Inc()
	}
	err = c.session.Originate(context.Background(), domain.Counterpart{Name: target.Name, Email: target.Email})
	if err != nil {
		c.pushSessionError(err)
	}
}

func (c *Client) pushSessionError(err error) {
	msg := "call failed"
	switch {
	case errors.Is(err, domain.ErrMediaUnavailable):
		msg = "camera access required"
		if m := c.hub.metrics; m != nil {
			m.MediaFailures.Inc()
		}
	case errors.Is(err, domain.ErrCallInProgress):
		msg = "a call is already in progress"
	case errors.Is(err, domain.ErrNoPendingCall):
		msg = "no incoming call to answer"
	case errors.Is(err, domain.ErrPeerUnreachable):
		msg = "the other party is not available"
	case errors.Is(err, domain.ErrPeerRegistration):
		msg = "peer registration failed"
	}
	c.log.Warn().Err(err).Msg("Session operation failed")
	c.push("error", map[string]string{"message": msg})
}
