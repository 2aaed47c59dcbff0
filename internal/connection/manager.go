package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"meshnet/internal/telemetry"
	"meshnet/internal/transport"
	"meshnet/internal/wire"
)

// Codec encrypts/decrypts the SDP payload carried in a Negotiation.
// Encrypt needs the recipient's Address to derive their key; Decrypt
// always uses the local node's own private key, regardless of who sent
// the ciphertext, so it takes no address argument. Backed by
// sdpcrypto.Seal/Open when a signing identity is configured, or by
// IdentityCodec in unsigned/plaintext-SDP test setups.
type Codec interface {
	Encrypt(recipientAddress string, plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// IdentityCodec passes SDP through unchanged. Used when a node has no
// signing identity (spec.md §4.9: encryption is only possible between
// signed Addresses).
type IdentityCodec struct{}

func (IdentityCodec) Encrypt(_ string, plaintext string) (string, error) { return plaintext, nil }
func (IdentityCodec) Decrypt(ciphertext string) (string, error)          { return ciphertext, nil }

// EventType tags a Manager-level lifecycle event.
type EventType int

const (
	EventAdded EventType = iota
	EventDestroyed
	EventErrored // transport reported an error; Connection is now Dead but not yet swept by gc
	EventProcess // Connection advanced a state (Open or Connected), still alive
)

// Event reports something happening to one Connection the Manager
// tracks. NodeCore maps these onto the public
// add-connection/destroy-connection/connection-error/connection-process
// events spec.md §8 names.
type Event struct {
	Type       EventType
	Connection *Connection
}

// Manager is ConnectionManager: it owns every live Connection, enforces
// the one-per-remote-address invariant (I1), and drives each
// Connection's transport.Peer events into state transitions. Grounded on
// the teacher's internal/p2p/peers.go peer table plus connect.go/
// accept.go's dial/accept split.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	factory     transport.Factory
	codec       Codec
	selfAddress string
	networkID   string

	onData    func(c *Connection, data []byte)
	seenSweep func()

	events chan Event
	logger telemetry.Logger

	now   func() time.Time
	idGen func() string
}

// NewManager builds a Manager. onData, if non-nil, is called for every
// inbound application byte slice on any Connection. logger may be nil
// (telemetry.Discard is used).
func NewManager(factory transport.Factory, codec Codec, selfAddress, networkID string, onData func(*Connection, []byte), logger telemetry.Logger) *Manager {
	if codec == nil {
		codec = IdentityCodec{}
	}
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Manager{
		conns:       make(map[string]*Connection),
		factory:     factory,
		codec:       codec,
		selfAddress: selfAddress,
		networkID:   networkID,
		onData:      onData,
		events:      make(chan Event, 128),
		logger:      logger,
		now:         time.Now,
		idGen:       uuid.NewString,
	}
}

// Events returns the channel of Added/Destroyed/Errored/Process events. NodeCore drains
// it to surface connection/disconnection to embedders.
func (m *Manager) Events() <-chan Event { return m.events }

// SetOnData rewires the inbound-application-data callback after
// construction, so NodeCore can build GossipEngine (which needs a
// Manager to exist first) and only then tell the Manager to forward
// data into it.
func (m *Manager) SetOnData(f func(*Connection, []byte)) {
	m.mu.Lock()
	m.onData = f
	m.mu.Unlock()
}

func (m *Manager) dispatchData(c *Connection, data []byte) {
	m.mu.RLock()
	f := m.onData
	m.mu.RUnlock()
	if f != nil {
		f(c, data)
	}
}

// SetSeenSweeper wires the shared SeenMemory sweep into gc, per spec.md
// §4.1 ("gc also asks SeenMemory to sweep").
func (m *Manager) SetSeenSweeper(f func()) { m.seenSweep = f }

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	default:
		m.logger.Printf("connection: event channel full, dropping %v for %s", e.Type, e.Connection.ID)
	}
}

// connectedToLocked returns an already-Connected Connection to remote, if
// one exists. Callers must hold m.mu for at least reading.
func (m *Manager) connectedToLocked(remote string) *Connection {
	for _, c := range m.conns {
		if c.RemoteAddress() == remote && c.State() == StateConnected {
			return c
		}
	}
	return nil
}

// popNonConnectedDuplicatesLocked removes every non-Connected Connection
// to remote from the map and returns them for the caller to finalize
// (transition to Dead, close their transport, emit Destroyed) once the
// lock is released. Callers must hold m.mu for writing.
func (m *Manager) popNonConnectedDuplicatesLocked(remote string) []*Connection {
	var dups []*Connection
	for id, c := range m.conns {
		if c.RemoteAddress() == remote && c.State() != StateConnected {
			dups = append(dups, c)
			delete(m.conns, id)
		}
	}
	return dups
}

func (m *Manager) finalizeRemoved(cs []*Connection) {
	for _, c := range cs {
		c.transition(StateDead)
		_ = c.peer.Close()
		m.emit(Event{Type: EventDestroyed, Connection: c})
	}
}

// EnsureInitiator reuses the already-Connected Connection to
// remoteAddress if one exists; otherwise it destroys every non-Connected
// Connection to (or still dialing) remoteAddress and creates a fresh
// initiator (spec.md §4.1's idempotent ensure_initiator). The Connection's
// RemoteAddress stays empty until SignalAnswer confirms it; remoteAddress
// is only used here as a dial target, for dedup and SDP encryption.
func (m *Manager) EnsureInitiator(remoteAddress string) (*Connection, error) {
	m.mu.Lock()
	if c := m.connectedToLocked(remoteAddress); c != nil {
		m.mu.Unlock()
		return c, nil
	}
	dups := m.popNonConnectedDuplicatesLocked(remoteAddress)
	// A pending initiator has no confirmed RemoteAddress yet, so earlier
	// dials to the same target are matched by DialTarget instead.
	for id, c := range m.conns {
		if c.Role == RoleInitiator && c.DialTarget() == remoteAddress && c.State() != StateConnected {
			dups = append(dups, c)
			delete(m.conns, id)
		}
	}

	peer, err := m.factory.New(true)
	if err != nil {
		m.mu.Unlock()
		m.finalizeRemoved(dups)
		return nil, fmt.Errorf("connection: create initiator transport: %w", err)
	}

	id := m.idGen()
	c := newConnection(id, RoleInitiator, peer)
	c.dialTarget = remoteAddress
	c.offer = wire.Negotiation{
		Type:         wire.NegotiationOffer,
		Address:      m.selfAddress,
		ConnectionID: id,
		NetworkID:    m.networkID,
		Timestamp:    m.now().UnixMilli(),
	}
	m.conns[id] = c
	m.mu.Unlock()

	m.finalizeRemoved(dups)
	go m.watch(c)
	m.emit(Event{Type: EventAdded, Connection: c})
	return c, nil
}

// AcceptOffer creates the responder Connection for an inbound offer
// (spec.md §4.2's accept_offer), or returns the already-Connected one if
// a duplicate from the same remote exists. Unlike an initiator, a
// responder knows its remote_address immediately: it came from the
// offer's own Address field.
func (m *Manager) AcceptOffer(offer wire.Negotiation) (*Connection, error) {
	remote := offer.Address
	if offer.SDP == nil {
		return nil, errors.New("connection: offer missing sdp")
	}

	m.mu.Lock()
	if c := m.connectedToLocked(remote); c != nil {
		m.mu.Unlock()
		return c, nil
	}
	dups := m.popNonConnectedDuplicatesLocked(remote)

	peer, err := m.factory.New(false)
	if err != nil {
		m.mu.Unlock()
		m.finalizeRemoved(dups)
		return nil, fmt.Errorf("connection: create responder transport: %w", err)
	}

	id := m.idGen()
	c := newConnection(id, RoleResponder, peer)
	c.remoteAddress = remote
	c.offer = offer
	// The answer's connection id must echo the offer's: it names the
	// initiator's Connection, not this fresh responder one.
	c.answer = &wire.Negotiation{
		Type:         wire.NegotiationAnswer,
		Address:      m.selfAddress,
		ConnectionID: offer.ConnectionID,
		NetworkID:    m.networkID,
		Timestamp:    m.now().UnixMilli(),
	}
	m.conns[id] = c
	m.mu.Unlock()

	m.finalizeRemoved(dups)

	plaintext, err := m.codec.Decrypt(*offer.SDP)
	if err != nil {
		m.destroy(id)
		return nil, fmt.Errorf("connection: decrypt offer: %w", err)
	}
	if err := peer.Signal(plaintext); err != nil {
		m.destroy(id)
		return nil, fmt.Errorf("connection: signal offer: %w", err)
	}

	go m.watch(c)
	m.emit(Event{Type: EventAdded, Connection: c})
	return c, nil
}

// SignalAnswer delivers an inbound answer to the initiator Connection it
// targets, per spec.md §4.2's literal requirement: that Connection must
// be Open, an initiator, and still lacking a remote address.
func (m *Manager) SignalAnswer(answer wire.Negotiation) error {
	m.mu.RLock()
	c := m.conns[answer.ConnectionID]
	m.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("connection: no such connection %q", answer.ConnectionID)
	}
	if c.Role != RoleInitiator {
		return errors.New("connection: answer targets a non-initiator connection")
	}
	if c.State() != StateOpen {
		return errors.New("connection: answer targets a connection that is not open")
	}
	if c.RemoteAddress() != "" {
		return errors.New("connection: answer targets a connection with an already-confirmed remote address")
	}
	if answer.SDP == nil {
		return errors.New("connection: answer missing sdp")
	}

	plaintext, err := m.codec.Decrypt(*answer.SDP)
	if err != nil {
		return fmt.Errorf("connection: decrypt answer: %w", err)
	}

	c.setRemoteAddress(answer.Address)
	c.mu.Lock()
	c.answer = &answer
	c.mu.Unlock()

	if err := c.peer.Signal(plaintext); err != nil {
		return fmt.Errorf("connection: signal answer: %w", err)
	}
	return nil
}

// WaitOpen blocks until the Connection identified by id reaches Open (and
// so has a populated Offer/Answer SDP ready to transmit) or Dead, or ctx
// is done. Negotiator and the switchboard client use this after
// EnsureInitiator/AcceptOffer instead of polling.
func (m *Manager) WaitOpen(ctx context.Context, id string) (*Connection, error) {
	m.mu.RLock()
	c := m.conns[id]
	m.mu.RUnlock()
	if c == nil {
		return nil, fmt.Errorf("connection: no such connection %q", id)
	}
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.State() == StateDead {
		return nil, errors.New("connection: died before reaching open")
	}
	return c, nil
}

// watch drains one Connection's transport events for its entire
// lifetime, translating them into state transitions, SDP
// encryption/population, duplicate enforcement, and data delivery.
func (m *Manager) watch(c *Connection) {
	for ev := range c.peer.Events() {
		switch ev.Type {
		case transport.EventSignal:
			m.handleSignal(c, ev)
		case transport.EventConnect:
			c.mu.Lock()
			c.connectedAt = m.now()
			c.mu.Unlock()
			c.transition(StateConnected)
			m.emit(Event{Type: EventProcess, Connection: c})
			m.enforceUniqueness(c)
		case transport.EventData:
			m.dispatchData(c, ev.Data)
		case transport.EventClose:
			c.transition(StateDead)
			_ = c.peer.Close()
			return
		case transport.EventError:
			c.transition(StateDead)
			_ = c.peer.Close()
			m.emit(Event{Type: EventErrored, Connection: c})
			return
		}
	}
}

// handleSignal encrypts a freshly-produced local SDP to its destination
// and publishes it on the Connection's offer/answer record, then moves
// the Connection to Open.
func (m *Manager) handleSignal(c *Connection, ev transport.Event) {
	var recipient string
	switch c.Role {
	case RoleInitiator:
		if ev.SignalKind != transport.SignalOffer {
			return
		}
		recipient = c.DialTarget()
	case RoleResponder:
		if ev.SignalKind != transport.SignalAnswer {
			return
		}
		recipient = c.RemoteAddress()
	}

	ciphertext, err := m.codec.Encrypt(recipient, ev.SDP)
	if err != nil {
		m.logger.Printf("connection: encrypt sdp for %s: %v", c.ID, err)
		m.destroy(c.ID)
		return
	}

	c.mu.Lock()
	switch c.Role {
	case RoleInitiator:
		c.offer.SDP = &ciphertext
	case RoleResponder:
		c.answer.SDP = &ciphertext
	}
	c.mu.Unlock()

	c.transition(StateOpen)
	m.emit(Event{Type: EventProcess, Connection: c})
}

// enforceUniqueness implements the post-connect half of invariant I1:
// once a Connection reaches Connected, any other Connection sharing its
// remote_address is destroyed outright, regardless of state.
func (m *Manager) enforceUniqueness(c *Connection) {
	remote := c.RemoteAddress()
	if remote == "" {
		return
	}
	m.mu.Lock()
	var dups []*Connection
	for id, other := range m.conns {
		if other.ID != c.ID && other.RemoteAddress() == remote {
			dups = append(dups, other)
			delete(m.conns, id)
		}
	}
	m.mu.Unlock()
	m.finalizeRemoved(dups)
}

// destroy removes a Connection by id, if present, and finalizes it.
func (m *Manager) destroy(id string) {
	m.mu.Lock()
	c, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.finalizeRemoved([]*Connection{c})
}

// Destroy is the public form of destroy, for callers (e.g. the
// negotiator rejecting a stale offer) that need to tear down a specific
// Connection outside the normal lifecycle.
func (m *Manager) Destroy(id string) { m.destroy(id) }

// betterDuplicate reports whether candidate should be kept over current
// when two Connections share a remote_address after gc's
// destroyed-transport sweep. Recency of connectedAt is the primary
// tie-break; a non-empty data channel label is the secondary one (Design
// Note b).
func betterDuplicate(candidate, current *Connection) bool {
	ct, dt := candidate.ConnectedAt(), current.ConnectedAt()
	if !ct.Equal(dt) {
		return ct.After(dt)
	}
	cl, dl := candidate.DataChannelLabel() != "", current.DataChannelLabel() != ""
	return cl && !dl
}

// GC removes every Connection whose transport has self-reported
// destroyed, breaks any remaining remote_address ties by
// betterDuplicate, and sweeps the shared SeenMemory if one was wired in
// via SetSeenSweeper.
func (m *Manager) GC() {
	m.mu.RLock()
	byRemote := make(map[string][]*Connection)
	var dead []*Connection
	for _, c := range m.conns {
		if c.peer.Destroyed() || c.State() == StateDead {
			dead = append(dead, c)
			continue
		}
		if addr := c.RemoteAddress(); addr != "" {
			byRemote[addr] = append(byRemote[addr], c)
		}
	}
	m.mu.RUnlock()

	toRemove := make(map[string]*Connection)
	for _, c := range dead {
		toRemove[c.ID] = c
	}
	for _, group := range byRemote {
		if len(group) < 2 {
			continue
		}
		best := group[0]
		for _, c := range group[1:] {
			if betterDuplicate(c, best) {
				best = c
			}
		}
		for _, c := range group {
			if c.ID != best.ID {
				toRemove[c.ID] = c
			}
		}
	}

	for id := range toRemove {
		m.destroy(id)
	}

	if m.seenSweep != nil {
		m.seenSweep()
	}
}

// Connections returns every Connection currently tracked, live or not
// yet settled.
func (m *Manager) Connections() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

// Active returns only the Connections that are Connected and whose
// transport agrees.
func (m *Manager) Active() []*Connection {
	var out []*Connection
	for _, c := range m.Connections() {
		if c.Active() {
			out = append(out, c)
		}
	}
	return out
}

// Teardown destroys every tracked Connection, for NodeCore shutdown.
func (m *Manager) Teardown() {
	for _, c := range m.Connections() {
		m.destroy(c.ID)
	}
}
