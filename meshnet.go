// Package meshnet is the public embedding API spec.md §6.1 describes: a
// self-healing peer-to-peer mesh overlay over WebRTC, rendezvoused
// through a switchboard HTTP endpoint and held together by signed,
// hop-limited gossip. Internals live under internal/; this file only
// re-exports the constructor and the types an embedder needs.
package meshnet

import (
	"meshnet/internal/config"
	"meshnet/internal/connection"
	"meshnet/internal/events"
	"meshnet/internal/gossip"
	"meshnet/internal/node"
	"meshnet/internal/telemetry"
	"meshnet/internal/transport"
	"meshnet/internal/wire"
)

// Config holds every tunable spec.md §6 names (all optional).
type Config = config.Config

// Connection is one peer connection, owned by the node's internal
// ConnectionManager; callers only ever see it through read-only
// accessors.
type Connection = connection.Connection

// Message is the signed, hop-limited gossip envelope.
type Message = wire.Message

// BroadcastInput is the caller-supplied part of a Broadcast call.
type BroadcastInput = gossip.BroadcastInput

// Event, EventType, Handler, and Subscription make up the tagged-union
// event bus a Node publishes onto.
type Event = events.Event
type EventType = events.Type
type Handler = events.Handler
type Subscription = events.Subscription

// The event types spec.md §6 names.
const (
	EventMessage             = events.Message
	EventBroadcastMessage    = events.BroadcastMessage
	EventBadMessage          = events.BadMessage
	EventAddConnection       = events.AddConnection
	EventDestroyConnection   = events.DestroyConnection
	EventSwitchboardResponse = events.SwitchboardResponse
	EventConnectionError     = events.ConnectionError
	EventConnectionProcess   = events.ConnectionProcess
)

// Transport is the transport.Factory a Node dials and accepts peer
// connections through — production callers want internal/transport/webrtc.New,
// tests want memtransport.
type Transport = transport.Factory

// Logger is the printf-style sink every component logs through.
type Logger = telemetry.Logger

// Options configures a new Node, matching spec.md §6's constructor
// shape `{network_id, switch_address, secret|address, config?}` plus
// the transport and logger seams this module generalizes from the
// TypeScript source's browser-only WebRTC binding.
type Options struct {
	NetworkID     string
	SwitchAddress string

	// Exactly one of Secret or Address, unless Config.DataDir holds a
	// previously persisted identity.
	Secret  string
	Address string

	Config    Config
	Transport Transport
	Logger    Logger
}

// Node is a running mesh peer.
type Node struct {
	core *node.Core
}

// New constructs a Node and wires every collaborator, but does not yet
// start any timer or HTTP activity.
func New(opts Options) (*Node, error) {
	core, err := node.New(node.Options{
		NetworkID:     opts.NetworkID,
		SwitchAddress: opts.SwitchAddress,
		Secret:        opts.Secret,
		Address:       opts.Address,
		Config:        opts.Config,
		Factory:       opts.Transport,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Node{core: core}, nil
}

// Start begins the switchboard task, the presence timer, and the GC
// timer.
func (n *Node) Start() { n.core.Start() }

// Address returns this node's own Address.
func (n *Node) Address() string { return n.core.Address() }

// Broadcast signs and fans out a message to every Connected peer.
func (n *Node) Broadcast(in BroadcastInput) (Message, error) { return n.core.Broadcast(in) }

// On registers h for events of type t, returning a Subscription
// RemoveListener accepts.
func (n *Node) On(t EventType, h Handler) Subscription { return n.core.On(t, h) }

// RemoveListener unregisters a Handler previously returned by On.
func (n *Node) RemoveListener(sub Subscription) { n.core.RemoveListener(sub) }

// Connections returns every Connection currently tracked, live or not.
func (n *Node) Connections() []*Connection { return n.core.Connections() }

// ActiveConnections returns only Connected, transport-confirmed Connections.
func (n *Node) ActiveConnections() []*Connection { return n.core.ActiveConnections() }

// Teardown stops every timer and task, destroys every Connection, and
// clears listeners. Idempotent.
func (n *Node) Teardown() error { return n.core.Teardown() }
