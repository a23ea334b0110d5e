package http

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
	"github.com/ayursetu/setu/internal/core/service"
	"github.com/ayursetu/setu/internal/metrics"
)

// Hub tracks connected signaling clients by peer identity, relays
// negotiation messages between them, and pushes live-prescription
// notifications arriving on the store's change channel. It shares one
// in-process peer network with every client session.
type Hub struct {
	network port.PeerNetwork
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	clients    map[domain.PeerID]*Client
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	cancelSub  func()
}

func NewHub(network port.PeerNetwork, store port.KeyValueStore, m *metrics.Metrics, log zerolog.Logger) *Hub {
	h := &Hub{
		network:    network,
		log:        log,
		metrics:    m,
		clients:    make(map[domain.PeerID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
	h.cancelSub = store.Subscribe(service.LivePrescriptionKey, h.onLivePrescription)
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.id]; ok {
				// One signaling connection per identity; the newer wins.
				prev.close()
			}
			h.clients[client.id] = client
			h.mu.Unlock()
			h.log.Info().Str("peer_id", client.id.String()).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.id] == client {
				delete(h.clients, client.id)
			}
			h.mu.Unlock()
			client.close()
			h.log.Info().Str("peer_id", client.id.String()).Msg("Client unregistered")
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	h.cancelSub()
	close(h.quit)
}

func (h *Hub) lookup(id domain.PeerID) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[id]
}

// Relay forwards an opaque negotiation message to the addressed
// identity. A missing target is dropped, mirroring the peer layer's
// fire-and-forget signaling.
func (h *Hub) Relay(sig domain.Signal) {
	target := h.lookup(sig.To)
	if target == nil {
		h.log.Debug().Str("to", sig.To.String()).Msg("Signal target offline, dropped")
		return
	}
	target.push("signal", sig)
}

// onLivePrescription delivers the "new prescription available"
// broadcast to the patient it addresses, if connected. No delivery
// guarantee; the record stays queryable either way.
func (h *Hub) onLivePrescription(ev port.StoreEvent) {
	var live domain.LivePrescription
	if err := json.Unmarshal(ev.Value, &live); err != nil {
		h.log.Warn().Err(err).Msg("Malformed live prescription event")
		return
	}
	client := h.lookup(domain.PeerIDFromEmail(live.PatientEmail))
	if client == nil || client.user.Role != domain.RolePatient {
		return
	}
	client.push("prescription", live)
	h.log.Info().Str("patient", live.PatientEmail).Msg("Live prescription pushed")
}
