// Package connection implements Connection and ConnectionManager, the
// component spec.md §2 weights heaviest (30%): the peer connection
// lifecycle state machine, duplicate collection, garbage collection, and
// the SDP encryption hooks. Grounded on the teacher's internal/p2p
// package (connect.go/accept.go/session.go/peers.go), generalized from
// netx.Network's listen/accept/dial model to one transport.Peer created
// per negotiation rather than per accepted socket.
package connection

import (
	"sync"
	"time"

	"meshnet/internal/transport"
	"meshnet/internal/wire"
)

// Role is fixed at Connection creation (spec.md §3).
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// State is one point on the Connection state machine (spec.md §4.8).
// Transitions are one-way; Dead is terminal.
type State string

const (
	StatePending   State = "pending"
	StateOpen      State = "open"
	StateConnected State = "connected"
	StateDead      State = "dead"
)

// Connection wraps one transport.Peer with its negotiation history and
// state. Owned exclusively by Manager; callers only ever see read-only
// snapshots through its accessor methods (§5's "never exposed mutably").
type Connection struct {
	ID   string
	Role Role

	mu            sync.RWMutex
	remoteAddress string // empty for an initiator that hasn't received an answer yet
	dialTarget    string // initiator-only: who we intended to dial, for dedup/encryption before confirmation
	offer         wire.Negotiation
	answer        *wire.Negotiation
	state         State
	connectedAt   time.Time

	peer transport.Peer

	ready     chan struct{} // closed once State reaches Open or Dead
	readyOnce sync.Once
}

func newConnection(id string, role Role, peer transport.Peer) *Connection {
	return &Connection{
		ID:    id,
		Role:  role,
		state: StatePending,
		peer:  peer,
		ready: make(chan struct{}),
	}
}

// transition moves the Connection forward in its one-way state machine and
// wakes any WaitOpen callers once it reaches a settled point (Open or
// Dead).
func (c *Connection) transition(s State) {
	c.mu.Lock()
	if c.state == StateDead {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if s == StateOpen || s == StateDead {
		c.readyOnce.Do(func() { close(c.ready) })
	}
}

// RemoteAddress returns the confirmed far-end Address, or "" if not yet
// known (only possible for a Pending/Open initiator awaiting an answer).
func (c *Connection) RemoteAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteAddress
}

func (c *Connection) setRemoteAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteAddress = addr
}

// DialTarget returns who an initiator intended to reach, known at
// creation even before the far end's identity is cryptographically
// confirmed via its answer.
func (c *Connection) DialTarget() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dialTarget
}

// Offer returns a copy of this Connection's offer negotiation record.
func (c *Connection) Offer() wire.Negotiation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offer
}

// Answer returns a copy of this Connection's answer negotiation record,
// and whether one is present at all (vs. not yet created).
func (c *Connection) Answer() (wire.Negotiation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.answer == nil {
		return wire.Negotiation{}, false
	}
	return *c.answer, true
}

// State returns the Connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConnectedAt returns when this Connection last transitioned to Connected,
// the zero time if it never has.
func (c *Connection) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// Active reports whether this is an "active connection" per the glossary:
// Connected and the transport agrees it's connected.
func (c *Connection) Active() bool {
	return c.State() == StateConnected && c.peer.Connected()
}

// DataChannelLabel delegates to the transport, empty until its channel
// opens.
func (c *Connection) DataChannelLabel() string {
	return c.peer.DataChannelLabel()
}

// Send writes application bytes to the far end over this Connection's
// transport.
func (c *Connection) Send(data []byte) error {
	return c.peer.Send(data)
}
