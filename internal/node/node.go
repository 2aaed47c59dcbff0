// Package node implements NodeCore, the component that wires every
// other package together and exposes the embedding API spec.md §6.1
// names: Broadcast, On/RemoveListener, Connections/ActiveConnections,
// Teardown. Grounded on the teacher's internal/p2p.Node: same
// config-normalize-then-construct-collaborators shape, same
// one-goroutine-per-timer composition, generalized from a single TCP
// listener's lifecycle to the switchboard task + presence timer + gc
// timer trio spec.md §4.7 names.
package node

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"meshnet/internal/address"
	"meshnet/internal/config"
	"meshnet/internal/connection"
	"meshnet/internal/events"
	"meshnet/internal/gossip"
	"meshnet/internal/identitystore"
	"meshnet/internal/negotiator"
	"meshnet/internal/rudelist"
	"meshnet/internal/sdpcrypto"
	"meshnet/internal/seenmemory"
	"meshnet/internal/switchboard"
	"meshnet/internal/telemetry"
	"meshnet/internal/transport"
	"meshnet/internal/wire"
)

// ErrMissingNetworkID is returned when Options.NetworkID is empty.
var ErrMissingNetworkID = errors.New("node: missing network id")

// ErrMissingSwitchAddress is returned when Options.SwitchAddress is empty.
var ErrMissingSwitchAddress = errors.New("node: missing switch address")

// ErrMissingFactory is returned when Options.Factory is nil.
var ErrMissingFactory = errors.New("node: missing transport factory")

// ErrMissingIdentity is returned when none of Secret, Address, or a
// DataDir-backed persisted identity is available (spec.md §6's
// constructor requires secret|address).
var ErrMissingIdentity = errors.New("node: missing secret, address, or persisted identity")

// Options configures Core's constructor, matching spec.md §6's
// `{network_id, switch_address, secret|address, config?}` shape.
type Options struct {
	NetworkID     string
	SwitchAddress string

	// Secret deterministically derives a signed identity (address.FromSecret).
	// Address runs unsigned with an arbitrary caller-chosen identifier.
	// Exactly one of these, or a Config.DataDir holding a previously
	// persisted signing key, must be set.
	Secret  string
	Address string

	Config  config.Config
	Factory transport.Factory
	Logger  telemetry.Logger
}

// Core is NodeCore.
type Core struct {
	identity *address.Identity
	cfg      config.Config
	logger   telemetry.Logger

	bus        *events.Bus
	manager    *connection.Manager
	negotiator *negotiator.Negotiator
	gossip     *gossip.Engine
	switchCli  *switchboard.Client
	seen       *seenmemory.Memory
	rude       *rudelist.List
	store      *identitystore.Store

	mu       sync.Mutex
	started  bool
	torndown bool
	stopPump chan struct{}
	stopGC   chan struct{}
	stopPres chan struct{}
	wg       sync.WaitGroup
}

// New builds every collaborator and wires them together, but does not
// start any timer or HTTP activity — call Start for that.
func New(opts Options) (*Core, error) {
	if opts.NetworkID == "" {
		return nil, ErrMissingNetworkID
	}
	if opts.SwitchAddress == "" {
		return nil, ErrMissingSwitchAddress
	}
	if opts.Factory == nil {
		return nil, ErrMissingFactory
	}
	cfg := opts.Config.Normalize()
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Discard
	}

	var store *identitystore.Store
	if cfg.DataDir != "" {
		var err error
		store, err = identitystore.Open(filepath.Join(cfg.DataDir, "meshnet.db"))
		if err != nil {
			return nil, fmt.Errorf("node: open identity store: %w", err)
		}
	}

	ident, err := resolveIdentity(opts, store)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	var codec connection.Codec
	if ident.Signed {
		codec = sdpcrypto.NewCodec(ident.SignPriv, ident.SignPub)
	} else {
		codec = connection.IdentityCodec{}
	}

	bus := events.NewBus()
	manager := connection.NewManager(opts.Factory, codec, string(ident.Address), opts.NetworkID, nil, logger)
	rude := rudelist.New(cfg.MaxMessageRateBeforeRude)
	neg := negotiator.New(manager, string(ident.Address), cfg.MaxConnections, rude)
	seen := seenmemory.New(cfg.MemoryDuration)

	if store != nil {
		if err := replayPersistedSeen(store, seen, cfg.MemoryDuration); err != nil {
			logger.Printf("node: replay persisted seen set: %v", err)
		}
	}

	ge := gossip.New(string(ident.Address), ident, manager, neg, seen, rude, cfg.MessageTTLMax, bus, logger, uuid.NewString)
	manager.SetOnData(ge.HandleConnectionData)
	manager.SetSeenSweeper(seen.Sweep)

	sc := switchboard.New(opts.SwitchAddress, opts.NetworkID, string(ident.Address), manager, neg, bus,
		cfg.FastSwitchboardRequestInterval, cfg.SlowSwitchboardRequestInterval, logger)

	return &Core{
		identity:   ident,
		cfg:        cfg,
		logger:     logger,
		bus:        bus,
		manager:    manager,
		negotiator: neg,
		gossip:     ge,
		switchCli:  sc,
		seen:       seen,
		rude:       rude,
		store:      store,
	}, nil
}

func resolveIdentity(opts Options, store *identitystore.Store) (*address.Identity, error) {
	switch {
	case opts.Secret != "":
		return address.FromSecret(opts.Secret)
	case opts.Address != "":
		return address.Unsigned(opts.Address)
	case store != nil:
		priv, err := store.LoadOrCreateSigningKey()
		if err != nil {
			return nil, fmt.Errorf("node: load persisted identity: %w", err)
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &address.Identity{
			Address:  address.Address(hex.EncodeToString(pub)),
			Signed:   true,
			SignPriv: priv,
			SignPub:  pub,
		}, nil
	default:
		return nil, ErrMissingIdentity
	}
}

// replayPersistedSeen loads a prior run's seen-id journal, drops entries
// already older than ttl, and inserts the rest — so a node restarted
// mid-flight (spec.md §8 scenario 5) doesn't re-dispatch a message it
// had already handled moments before teardown.
func replayPersistedSeen(store *identitystore.Store, seen *seenmemory.Memory, ttl time.Duration) error {
	persisted, err := store.LoadSeen()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-ttl)
	for id, insertedAt := range persisted {
		if insertedAt.Before(cutoff) {
			continue
		}
		seen.Add(id)
	}
	return store.PruneSeen(cutoff)
}

// Address returns this node's own Address.
func (c *Core) Address() string { return string(c.identity.Address) }

// Start begins the switchboard task, presence timer, GC timer, and the
// Manager-event-to-public-event pump. Calls after the first are no-ops;
// Core does not support restart after Teardown.
func (c *Core) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.stopPump = make(chan struct{})
	c.stopGC = make(chan struct{})
	c.stopPres = make(chan struct{})
	c.mu.Unlock()

	c.switchCli.Start()

	c.wg.Add(3)
	go c.pumpConnectionEvents()
	go c.runGCTimer()
	go c.runPresenceTimer()
}

func (c *Core) pumpConnectionEvents() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.manager.Events():
			c.bus.Emit(mapConnectionEvent(ev))
		case <-c.stopPump:
			return
		}
	}
}

func mapConnectionEvent(ev connection.Event) events.Event {
	out := events.Event{ConnectionID: ev.Connection.ID, RemoteAddress: ev.Connection.RemoteAddress()}
	switch ev.Type {
	case connection.EventAdded:
		out.Type = events.AddConnection
	case connection.EventDestroyed:
		out.Type = events.DestroyConnection
	case connection.EventErrored:
		out.Type = events.ConnectionError
	case connection.EventProcess:
		out.Type = events.ConnectionProcess
	}
	return out
}

func (c *Core) runGCTimer() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.GarbageCollectInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.manager.GC()
		case <-c.stopGC:
			return
		}
	}
}

// runPresenceTimer emits a presence control message every
// presence_broadcast_interval plus up to 100ms of jitter (spec.md §4.7).
func (c *Core) runPresenceTimer() {
	defer c.wg.Done()
	for {
		jitter := time.Duration(rand.Intn(100)) * time.Millisecond
		select {
		case <-time.After(c.cfg.PresenceBroadcastInterval + jitter):
			c.broadcastPresence()
		case <-c.stopPres:
			return
		}
	}
}

func (c *Core) broadcastPresence() {
	_, err := c.gossip.Broadcast(gossip.BroadcastInput{
		AppID:       wire.NetworkAppID,
		Type:        string(wire.ControlPresence),
		Destination: wire.Wildcard,
		Data:        wire.MustMarshal(wire.PresenceData{Address: c.Address()}),
	})
	if err != nil {
		c.logger.Printf("node: presence broadcast: %v", err)
	}
}

// Broadcast forwards to GossipEngine.Broadcast.
func (c *Core) Broadcast(in gossip.BroadcastInput) (wire.Message, error) {
	return c.gossip.Broadcast(in)
}

// On registers h for events of type t.
func (c *Core) On(t events.Type, h events.Handler) events.Subscription {
	return c.bus.On(t, h)
}

// RemoveListener unregisters a Handler previously returned by On.
func (c *Core) RemoveListener(sub events.Subscription) {
	c.bus.RemoveListener(sub)
}

// Connections returns every Connection currently tracked.
func (c *Core) Connections() []*connection.Connection { return c.manager.Connections() }

// ActiveConnections returns only Connected, transport-confirmed Connections.
func (c *Core) ActiveConnections() []*connection.Connection { return c.manager.Active() }

// Teardown stops the switchboard task, the presence timer, and the GC
// timer, destroys every Connection, and clears all listeners. Idempotent
// and synchronous: once it returns, no further events will be emitted
// and no further HTTP requests will be initiated (spec.md §5
// Cancellation).
func (c *Core) Teardown() error {
	c.mu.Lock()
	if c.torndown {
		c.mu.Unlock()
		return nil
	}
	c.torndown = true
	started := c.started
	c.mu.Unlock()

	c.switchCli.Stop()

	if started {
		close(c.stopPump)
		close(c.stopGC)
		close(c.stopPres)
		c.wg.Wait()
	}

	c.manager.Teardown()
	c.bus.RemoveAll()

	if c.store != nil {
		if err := persistSeen(c.store, c.seen); err != nil {
			c.logger.Printf("node: persist seen set on teardown: %v", err)
		}
		if err := c.store.Close(); err != nil {
			return fmt.Errorf("node: close identity store: %w", err)
		}
	}
	return nil
}

// persistSeen is a best-effort snapshot; seenmemory.Memory does not
// expose its raw map, so teardown persists what SaveSeen needs through
// Memory.Snapshot, which returns a copy.
func persistSeen(store *identitystore.Store, seen *seenmemory.Memory) error {
	return store.SaveSeen(seen.Snapshot())
}
