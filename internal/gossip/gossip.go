// Package gossip implements GossipEngine: broadcast/ingest over the
// signed, hop-limited Message envelope, plus the network-app-id control
// dispatch table that drives negotiation off in-band traffic once the
// switchboard has done its job. Grounded on the teacher's
// internal/p2p message-relay loop (the same "verify, dispatch, maybe
// forward" shape), generalized from the teacher's stream framing to the
// tagged signature-chain envelope this spec uses instead of a mutable
// ttl byte.
package gossip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meshnet/internal/address"
	"meshnet/internal/connection"
	"meshnet/internal/events"
	"meshnet/internal/negotiator"
	"meshnet/internal/rudelist"
	"meshnet/internal/seenmemory"
	"meshnet/internal/signing"
	"meshnet/internal/telemetry"
	"meshnet/internal/wire"
)

// dispatchTimeout bounds the negotiation Negotiator performs in response
// to a gossiped presence/offer message.
const dispatchTimeout = 10 * time.Second

// ErrMissingAppID is returned by Broadcast when BroadcastInput.AppID is
// empty.
var ErrMissingAppID = errors.New("gossip: missing app_id")

// ErrMissingType is returned by Broadcast when BroadcastInput.Type is
// empty.
var ErrMissingType = errors.New("gossip: missing type")

// BroadcastInput is the caller-supplied part of a Broadcast call. TTL is
// a pointer so "unset" (use the configured maximum) is distinguishable
// from an explicit ttl=0 (spec.md §9 Open Question (a): a real, if
// inert, choice — the message still reaches directly Connected peers but
// is never rebroadcast by anyone who receives it).
type BroadcastInput struct {
	AppID       string
	Type        string
	Destination string // "" defaults to wire.Wildcard
	Data        json.RawMessage
	TTL         *int
}

// Engine is GossipEngine.
type Engine struct {
	selfAddress string
	identity    *address.Identity // nil or Signed=false: unsigned mode

	manager    *connection.Manager
	negotiator *negotiator.Negotiator
	seen       *seenmemory.Memory
	rude       *rudelist.List
	ttlMax     int

	bus    *events.Bus
	logger telemetry.Logger

	idGen func() string
}

// New returns an Engine. identity may be nil for unsigned operation.
func New(selfAddress string, identity *address.Identity, manager *connection.Manager, neg *negotiator.Negotiator, seen *seenmemory.Memory, rude *rudelist.List, ttlMax int, bus *events.Bus, logger telemetry.Logger, idGen func() string) *Engine {
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Engine{
		selfAddress: selfAddress,
		identity:    identity,
		manager:     manager,
		negotiator:  neg,
		seen:        seen,
		rude:        rude,
		ttlMax:      ttlMax,
		bus:         bus,
		logger:      logger,
		idGen:       idGen,
	}
}

func (g *Engine) signed() bool { return g.identity != nil && g.identity.Signed }

// signSelf produces this node's hop signature over msg as it stood with
// sigsSoFar already attached, or an empty-signature placeholder when
// running unsigned (spec.md §4.3: "so the hop count still works").
func (g *Engine) signSelf(msg wire.Message, sigsSoFar []wire.Signature) (wire.Signature, error) {
	if !g.signed() {
		return wire.Signature{Signer: g.selfAddress, Signature: ""}, nil
	}
	return signing.Sign(g.identity.SignPriv, string(g.identity.Address), msg, sigsSoFar)
}

func (g *Engine) sendToConnected(msg wire.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		g.logger.Printf("gossip: marshal message %s: %v", msg.ID, err)
		return
	}
	for _, c := range g.manager.Active() {
		if err := c.Send(data); err != nil {
			g.logger.Printf("gossip: send to %s: %v", c.RemoteAddress(), err)
		}
	}
}

// Broadcast fills in a fresh envelope around in, signs it, records it in
// SeenMemory, fans it out to every Connected peer, and emits
// events.BroadcastMessage.
func (g *Engine) Broadcast(in BroadcastInput) (wire.Message, error) {
	if in.AppID == "" {
		return wire.Message{}, ErrMissingAppID
	}
	if in.Type == "" {
		return wire.Message{}, ErrMissingType
	}

	ttl := g.ttlMax
	if in.TTL != nil {
		ttl = *in.TTL
	}
	dest := in.Destination
	if dest == "" {
		dest = wire.Wildcard
	}

	msg := wire.Message{
		ID:          g.idGen(),
		Address:     g.selfAddress,
		AppID:       in.AppID,
		TTL:         ttl,
		Type:        in.Type,
		Destination: dest,
		Data:        in.Data,
	}
	sig, err := g.signSelf(msg, nil)
	if err != nil {
		return wire.Message{}, fmt.Errorf("gossip: sign broadcast: %w", err)
	}
	msg.Signatures = []wire.Signature{sig}

	g.seen.Add(msg.ID)
	g.sendToConnected(msg)
	g.bus.Emit(events.Event{Type: events.BroadcastMessage, Message: &msg})
	return msg, nil
}

// HandleConnectionData is the Connection Manager's onData callback: it
// decodes raw application bytes as a Message and ingests it. Malformed
// payloads are logged and dropped, not treated as bad-message (that
// outcome is reserved for signature failures on well-formed envelopes).
func (g *Engine) HandleConnectionData(from *connection.Connection, raw []byte) {
	var msg wire.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.logger.Printf("gossip: malformed message from %s: %v", from.RemoteAddress(), err)
		return
	}
	if err := g.Ingest(msg, from); err != nil {
		g.logger.Printf("gossip: ingest from %s: %v", from.RemoteAddress(), err)
	}
}

// Ingest runs spec.md §4.3's seven-step pipeline on an inbound message.
func (g *Engine) Ingest(msg wire.Message, from *connection.Connection) error {
	if alreadySeen := g.seen.AddIfMissing(msg.ID); alreadySeen {
		return nil
	}

	if g.rude != nil {
		g.rude.Register(msg.Address)
		if g.rude.IsRude(msg.Address) {
			g.enforceRude(msg.Address)
		}
	}

	addressed := msg.AddressedTo(g.selfAddress)

	if g.signed() {
		if len(msg.Signatures) == 0 {
			g.bus.Emit(events.Event{Type: events.BadMessage, Message: &msg, Err: signing.ErrMissingSignatures})
			return signing.ErrMissingSignatures
		}
		if err := signing.VerifyChain(msg); err != nil {
			g.bus.Emit(events.Event{Type: events.BadMessage, Message: &msg, Err: err})
			return err
		}
	}
	// No explicit "restore signatures" step is needed here: VerifyChain
	// only ever re-slices msg.Signatures to read it, never mutates it.

	if addressed && msg.AppID == wire.NetworkAppID {
		g.dispatchControl(msg)
	}

	if msg.HopCount() < msg.TTL {
		g.rebroadcast(msg)
	}

	if addressed {
		g.bus.Emit(events.Event{Type: events.Message, Message: &msg})
	}
	return nil
}

// rebroadcast appends this node's own hop signature and resends the
// message unchanged in id, per spec.md §4.3's rebroadcast note: hop
// count is the signature chain's length, so earlier hops' signatures
// stay valid forever.
func (g *Engine) rebroadcast(msg wire.Message) {
	sig, err := g.signSelf(msg, msg.Signatures)
	if err != nil {
		g.logger.Printf("gossip: sign rebroadcast of %s: %v", msg.ID, err)
		return
	}
	next := msg
	next.Signatures = append(append([]wire.Signature{}, msg.Signatures...), sig)
	g.sendToConnected(next)
}

// enforceRude tears down any active Connection to addr with a final log
// message, then forgets addr's rate history so its window starts clean
// if it reconnects within the allowed rate (spec.md §4.5's optional
// rude-teardown note).
func (g *Engine) enforceRude(addr string) {
	for _, c := range g.manager.Active() {
		if c.RemoteAddress() != addr {
			continue
		}
		data, err := json.Marshal(wire.Message{
			ID:          g.idGen(),
			Address:     g.selfAddress,
			AppID:       wire.NetworkAppID,
			Type:        string(wire.ControlLog),
			Destination: addr,
			Data:        wire.MustMarshal(wire.LogData{Text: "disconnecting: message rate exceeded"}),
		})
		if err == nil {
			_ = c.Send(data)
		}
		g.manager.Destroy(c.ID)
	}
	g.rude.Forget(addr)
}

// dispatchControl implements spec.md §4.3 step 5's type table for
// messages under the reserved "network" app id.
func (g *Engine) dispatchControl(msg wire.Message) {
	switch wire.ControlType(msg.Type) {
	case wire.ControlPresence:
		g.handlePresence(msg)
	case wire.ControlOffer:
		g.handleOffer(msg)
	case wire.ControlAnswer:
		g.handleAnswer(msg)
	case wire.ControlLog:
		g.handleLog(msg)
	default:
		g.logger.Printf("gossip: unknown control type %q from %s", msg.Type, msg.Address)
	}
}

func (g *Engine) handlePresence(msg wire.Message) {
	var pd wire.PresenceData
	if err := json.Unmarshal(msg.Data, &pd); err != nil {
		g.logger.Printf("gossip: malformed presence from %s: %v", msg.Address, err)
		return
	}
	if pd.Address == "" || pd.Address == g.selfAddress {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		offer, err := g.negotiator.EnsureInitiatorOffer(ctx, pd.Address)
		if err != nil {
			g.logger.Printf("gossip: dial %s on presence: %v", pd.Address, err)
			return
		}
		if offer.ConnectionID == "" {
			return
		}
		if _, err := g.Broadcast(BroadcastInput{
			AppID:       wire.NetworkAppID,
			Type:        string(wire.ControlOffer),
			Destination: pd.Address,
			Data:        wire.MustMarshal(wire.OfferData{Negotiation: offer}),
		}); err != nil {
			g.logger.Printf("gossip: send offer to %s: %v", pd.Address, err)
		}
	}()
}

func (g *Engine) handleOffer(msg wire.Message) {
	var od wire.OfferData
	if err := json.Unmarshal(msg.Data, &od); err != nil {
		g.logger.Printf("gossip: malformed offer from %s: %v", msg.Address, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		answer, err := g.negotiator.AcceptOffer(ctx, od.Negotiation)
		if err != nil {
			g.logger.Printf("gossip: accept offer from %s: %v", msg.Address, err)
			return
		}
		if _, err := g.Broadcast(BroadcastInput{
			AppID:       wire.NetworkAppID,
			Type:        string(wire.ControlAnswer),
			Destination: msg.Address,
			Data:        wire.MustMarshal(wire.AnswerData{Negotiation: answer}),
		}); err != nil {
			g.logger.Printf("gossip: send answer to %s: %v", msg.Address, err)
		}
	}()
}

func (g *Engine) handleAnswer(msg wire.Message) {
	var ad wire.AnswerData
	if err := json.Unmarshal(msg.Data, &ad); err != nil {
		g.logger.Printf("gossip: malformed answer from %s: %v", msg.Address, err)
		return
	}
	if err := g.negotiator.SignalAnswer(ad.Negotiation); err != nil {
		g.logger.Printf("gossip: signal answer from %s: %v", msg.Address, err)
	}
}

func (g *Engine) handleLog(msg wire.Message) {
	var ld wire.LogData
	if err := json.Unmarshal(msg.Data, &ld); err != nil {
		return
	}
	g.logger.Printf("gossip: log from %s: %s", msg.Address, ld.Text)
}
