// Package memtransport is an in-process fake of transport.Factory/Peer,
// used by the connection/gossip/negotiator/node test suites the way the
// teacher's internal/p2p/testutil_test.go uses an in-memory netx.Network:
// a real negotiation round trip (offer -> answer -> connect) happens, but
// entirely in memory, with the "sdp" string being an opaque peer id rather
// than real session-description text.
package memtransport

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"meshnet/internal/transport"
)

// Network links initiators and responders created from factories sharing
// it, standing in for the switchboard+ICE machinery that would otherwise
// get two real WebRTC peers talking.
type Network struct {
	mu      sync.Mutex
	pending map[string]*Peer // offer id -> initiator peer awaiting an answer
	answers map[string]*Peer // answer id -> responder peer awaiting initiator ack
}

// NewNetwork returns a fresh, empty Network.
func NewNetwork() *Network {
	return &Network{
		pending: make(map[string]*Peer),
		answers: make(map[string]*Peer),
	}
}

// Factory returns a transport.Factory whose Peers negotiate through net.
func (net *Network) Factory() transport.Factory { return &factory{net: net} }

type factory struct{ net *Network }

func (f *factory) New(initiator bool) (transport.Peer, error) {
	p := &Peer{
		net:       f.net,
		id:        uuid.NewString(),
		initiator: initiator,
		events:    make(chan transport.Event, 64),
	}
	if initiator {
		f.net.mu.Lock()
		f.net.pending[p.id] = p
		f.net.mu.Unlock()
		p.emit(transport.Event{Type: transport.EventSignal, SignalKind: transport.SignalOffer, SDP: p.id})
	}
	return p, nil
}

// Peer is memtransport's fake transport.Peer.
type Peer struct {
	net       *Network
	id        string
	initiator bool

	mu        sync.Mutex
	remote    *Peer
	connected bool
	destroyed bool
	label     string

	events chan transport.Event
}

func (p *Peer) Events() <-chan transport.Event { return p.events }

func (p *Peer) emit(e transport.Event) {
	select {
	case p.events <- e:
	default:
	}
}

// Signal feeds a remote SDP token into this peer. For a responder this is
// the initiator's offer id; for an initiator it is the responder's answer
// id produced by that responder's own Signal call.
func (p *Peer) Signal(sdp string) error {
	if p.initiator {
		p.net.mu.Lock()
		rp := p.net.answers[sdp]
		delete(p.net.answers, sdp)
		p.net.mu.Unlock()
		if rp == nil {
			return errors.New("memtransport: unknown answer id")
		}

		p.mu.Lock()
		p.remote = rp
		p.connected = true
		p.label = "mesh"
		p.mu.Unlock()

		rp.mu.Lock()
		rp.connected = true
		rp.label = "mesh"
		rp.mu.Unlock()

		p.emit(transport.Event{Type: transport.EventConnect})
		rp.emit(transport.Event{Type: transport.EventConnect})
		return nil
	}

	p.net.mu.Lock()
	ip := p.net.pending[sdp]
	delete(p.net.pending, sdp)
	p.net.mu.Unlock()
	if ip == nil {
		return errors.New("memtransport: unknown offer id")
	}

	p.mu.Lock()
	p.remote = ip
	p.mu.Unlock()
	ip.mu.Lock()
	ip.remote = p
	ip.mu.Unlock()

	p.net.mu.Lock()
	p.net.answers[p.id] = p
	p.net.mu.Unlock()

	p.emit(transport.Event{Type: transport.EventSignal, SignalKind: transport.SignalAnswer, SDP: p.id})
	return nil
}

func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	remote := p.remote
	connected := p.connected
	p.mu.Unlock()
	if !connected || remote == nil {
		return errors.New("memtransport: not connected")
	}
	remote.emit(transport.Event{Type: transport.EventData, Data: append([]byte{}, data...)})
	return nil
}

func (p *Peer) DataChannelLabel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

func (p *Peer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && !p.destroyed
}

func (p *Peer) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

func (p *Peer) Close() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.connected = false
	p.mu.Unlock()
	p.emit(transport.Event{Type: transport.EventClose})
	return nil
}
