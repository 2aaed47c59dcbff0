// Package transport abstracts the "opaque WebRTC peer handle" spec.md §1
// explicitly puts out of scope: the underlying peer implementation, kept
// behind an interface so ConnectionManager never depends on a concrete
// WebRTC library directly. Modeled as a Go tagged union of events per
// Design Note "Event emitter", mirroring the teacher's
// internal/netx.Network abstraction but scoped per-connection rather than
// per-listener, since a WebRTC peer is created once per negotiation, not
// accepted off a socket.
package transport

// EventType tags the kind of event a Peer emits.
type EventType int

const (
	EventSignal EventType = iota
	EventData
	EventConnect
	EventClose
	EventError
)

// SignalKind distinguishes the two session-description variants a signal
// event may carry.
type SignalKind int

const (
	SignalOffer SignalKind = iota
	SignalAnswer
)

// Event is the tagged union of everything a Peer reports. Only the fields
// relevant to Type are meaningful.
type Event struct {
	Type       EventType
	SignalKind SignalKind // EventSignal
	SDP        string     // EventSignal
	Data       []byte     // EventData
	Err        error      // EventError
}

// Peer is one local handle on a WebRTC peer connection, from the moment
// it's created (as initiator or responder) through to its destruction.
// Implementations must keep emitting on Events() until Close, and Close
// must be idempotent and safe to call from any goroutine.
type Peer interface {
	// Events returns the channel of Event this peer emits on.
	Events() <-chan Event

	// Signal delivers a remote session description (already decrypted)
	// into this peer: an answer if this peer is an initiator, an offer if
	// it is a responder receiving its first signal.
	Signal(sdp string) error

	// Send writes application bytes over the data channel. Returns an
	// error if the channel isn't open yet.
	Send(data []byte) error

	// DataChannelLabel reports the data channel's name, empty until the
	// channel opens. ConnectionManager.gc (spec.md §4.1, Design Note b)
	// uses this as one signal among others when breaking ties between
	// duplicate Connections to the same remote_address.
	DataChannelLabel() string

	// Connected reports whether the transport has completed negotiation
	// and is passing data.
	Connected() bool

	// Destroyed reports whether Close has completed.
	Destroyed() bool

	// Close tears the peer down, idempotently.
	Close() error
}

// Factory creates Peer instances. initiator is true when no offer exists
// yet and this call must produce one (spec.md §4.1: "the transport is
// created with initiator = (supplied_offer == null)").
type Factory interface {
	New(initiator bool) (Peer, error)
}
