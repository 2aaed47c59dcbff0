// Package webrtc is the production transport.Factory, backing each
// Connection with a real pion/webrtc PeerConnection and data channel.
// Grounded on the production-transport description in
// other_examples/bureau-foundation-bureau__doc.go ("pion/webrtc data
// channels with ICE/TURN for NAT traversal") and the Peer/DataChannel
// shape in other_examples/drakcore12-Chatp2p__types.go. Trickle ICE is
// disabled throughout, per spec.md §4.1: each side gathers every
// candidate before its signal event fires, so the switchboard/gossip
// negotiation needs exactly one signaling round trip.
package webrtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"

	"meshnet/internal/transport"
)

const dataChannelLabel = "meshnet"

// Factory creates pion/webrtc-backed Peers sharing one ICE configuration.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// New returns a Factory using the given ICE servers (STUN/TURN). A nil or
// empty slice yields host candidates only: no server-reflexive or relay
// candidates are gathered.
func New(iceServers []webrtc.ICEServer) *Factory {
	return &Factory{
		api:    webrtc.NewAPI(),
		config: webrtc.Configuration{ICEServers: iceServers},
	}
}

func (f *Factory) New(initiator bool) (transport.Peer, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}

	p := &Peer{
		pc:        pc,
		initiator: initiator,
		events:    make(chan transport.Event, 64),
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.emit(transport.Event{Type: transport.EventConnect})
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.closeWithEvent(transport.EventClose, nil)
		case webrtc.PeerConnectionStateDisconnected:
			p.closeWithEvent(transport.EventError, errors.New("webrtc: peer disconnected"))
		}
	})

	if initiator {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		p.bindDataChannel(dc)

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			_ = pc.Close()
			return nil, err
		}
		go p.emitLocalDescriptionWhenGathered(transport.SignalOffer)
	} else {
		pc.OnDataChannel(p.bindDataChannel)
	}

	return p, nil
}

// Peer is the production transport.Peer, wrapping one pion PeerConnection.
type Peer struct {
	pc        *webrtc.PeerConnection
	initiator bool

	mu        sync.Mutex
	dc        *webrtc.DataChannel
	label     string
	connected bool
	destroyed bool

	events chan transport.Event
}

func (p *Peer) Events() <-chan transport.Event { return p.events }

func (p *Peer) emit(e transport.Event) {
	select {
	case p.events <- e:
	default:
	}
}

func (p *Peer) bindDataChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.label = dc.Label()
	p.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.emit(transport.Event{Type: transport.EventData, Data: msg.Data})
	})
}

// emitLocalDescriptionWhenGathered waits for ICE gathering to finish (no
// trickle) and emits the resulting complete SDP as a signal event.
func (p *Peer) emitLocalDescriptionWhenGathered(kind transport.SignalKind) {
	<-webrtc.GatheringCompletePromise(p.pc)
	ld := p.pc.LocalDescription()
	if ld == nil {
		p.emit(transport.Event{Type: transport.EventError, Err: errors.New("webrtc: no local description after gathering")})
		return
	}
	p.emit(transport.Event{Type: transport.EventSignal, SignalKind: kind, SDP: ld.SDP})
}

// Signal feeds a remote session description into this peer: an answer
// when this peer is the initiator, the initial offer when it is a
// responder seeing its first signal.
func (p *Peer) Signal(sdp string) error {
	if p.initiator {
		return p.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  sdp,
		})
	}

	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}); err != nil {
		return err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	go p.emitLocalDescriptionWhenGathered(transport.SignalAnswer)
	return nil
}

func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil {
		return errors.New("webrtc: data channel not open")
	}
	return dc.Send(data)
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
	return p.closeWithEvent(transport.EventClose, nil)
}

func (p *Peer) closeWithEvent(evt transport.EventType, err error) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.connected = false
	p.mu.Unlock()

	closeErr := p.pc.Close()
	p.emit(transport.Event{Type: evt, Err: err})
	return closeErr
}
