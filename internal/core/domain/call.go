package domain

// CallStatus is the visible state of a session. The callee's pending
// incoming request is modeled as a value next to the status, not as a
// status of its own, so the UI can keep showing idle until the user
// commits camera/microphone resources.
type CallStatus string

const (
	CallIdle      CallStatus = "idle"
	CallWaiting   CallStatus = "waiting"
	CallConnected CallStatus = "connected"
)

// CallMetadata rides along with a call request through the peer layer.
type CallMetadata struct {
	CallerName  string `json:"callerName"`
	CallerEmail string `json:"callerEmail"`
}

// Counterpart identifies the far end of an active or pending call.
type Counterpart struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignalType mirrors the negotiation messages relayed opaquely between
// browser peers. The server never inspects payloads.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
)

type Signal struct {
	Type    SignalType `json:"type"`
	From    PeerID     `json:"from"`
	To      PeerID     `json:"to"`
	Payload string     `json:"payload"`
}
