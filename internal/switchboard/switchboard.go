// Package switchboard implements SwitchboardClient: the adaptive-cadence
// HTTP rendezvous loop spec.md §4.4 describes. Grounded on the teacher's
// internal/bootstrap (an HTTP-polled peer source feeding the same kind of
// "addresses to try" decision) generalized from a one-shot fetch to a
// self-rescheduling request/response negotiation loop, using
// encoding/json over net/http rather than a REST client library — no
// example repo in the pack reaches for one for a single fixed JSON
// endpoint either.
package switchboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"meshnet/internal/connection"
	"meshnet/internal/events"
	"meshnet/internal/negotiator"
	"meshnet/internal/telemetry"
	"meshnet/internal/wire"
)

// requestTimeout bounds one switchboard HTTP round trip.
const requestTimeout = 10 * time.Second

// signalTimeout bounds how long a negotiation spawned off a switchboard
// response is given to reach Open before its result is dropped instead
// of queued for the next outbound request.
const signalTimeout = 10 * time.Second

// Client is SwitchboardClient.
type Client struct {
	httpClient  *http.Client
	url         string
	networkID   string
	selfAddress string

	manager    *connection.Manager
	negotiator *negotiator.Negotiator
	bus        *events.Bus

	fastInterval time.Duration
	slowInterval time.Duration
	logger       telemetry.Logger

	mu      sync.Mutex
	pending []wire.NegotiationItem
	running bool
	stopCh  chan struct{}
}

// New returns a Client posting to url for networkID/selfAddress, backed
// by manager and negotiator. fastInterval is used when the node has zero
// active Connections, slowInterval otherwise (spec.md §4.4).
func New(url, networkID, selfAddress string, manager *connection.Manager, neg *negotiator.Negotiator, bus *events.Bus, fastInterval, slowInterval time.Duration, logger telemetry.Logger) *Client {
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		url:          url,
		networkID:    networkID,
		selfAddress:  selfAddress,
		manager:      manager,
		negotiator:   neg,
		bus:          bus,
		fastInterval: fastInterval,
		slowInterval: slowInterval,
		logger:       logger,
	}
}

// Start begins the adaptive polling loop, if not already running.
func (cl *Client) Start() {
	cl.mu.Lock()
	if cl.running {
		cl.mu.Unlock()
		return
	}
	cl.running = true
	cl.stopCh = make(chan struct{})
	stop := cl.stopCh
	cl.mu.Unlock()

	go cl.loop(stop)
}

// Stop cancels the scheduled task. Start may be called again afterward
// to resume polling.
func (cl *Client) Stop() {
	cl.mu.Lock()
	if !cl.running {
		cl.mu.Unlock()
		return
	}
	cl.running = false
	close(cl.stopCh)
	cl.mu.Unlock()
}

func (cl *Client) loop(stop chan struct{}) {
	for {
		cl.tick()
		select {
		case <-time.After(cl.nextDelay()):
		case <-stop:
			return
		}
	}
}

func (cl *Client) nextDelay() time.Duration {
	if len(cl.manager.Active()) == 0 {
		return cl.fastInterval
	}
	return cl.slowInterval
}

func (cl *Client) queueItem(item wire.NegotiationItem) {
	cl.mu.Lock()
	cl.pending = append(cl.pending, item)
	cl.mu.Unlock()
}

func (cl *Client) drainPending() []wire.NegotiationItem {
	cl.mu.Lock()
	items := cl.pending
	cl.pending = nil
	cl.mu.Unlock()
	return items
}

// tick performs one request/response cycle: send whatever offers/answers
// were collected since the last tick, then act on the reply.
func (cl *Client) tick() {
	req := wire.SwitchboardRequest{
		NetworkID:        cl.networkID,
		Address:          cl.selfAddress,
		NegotiationItems: cl.drainPending(),
	}
	resp, err := cl.post(req)
	if err != nil {
		cl.logger.Printf("switchboard: request failed: %v", err)
		return
	}

	if cl.bus != nil {
		cl.bus.Emit(events.Event{Type: events.SwitchboardResponse, Addresses: resp.Addresses})
	}

	for _, item := range resp.NegotiationItems {
		if item.For != cl.selfAddress {
			continue
		}
		cl.handleInbound(item)
	}
	for _, addr := range resp.Addresses {
		if addr == cl.selfAddress {
			continue
		}
		cl.ensureOfferFor(addr)
	}
}

func (cl *Client) post(req wire.SwitchboardRequest) (wire.SwitchboardResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return wire.SwitchboardResponse{}, fmt.Errorf("switchboard: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.url, bytes.NewReader(body))
	if err != nil {
		return wire.SwitchboardResponse{}, fmt.Errorf("switchboard: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := cl.httpClient.Do(httpReq)
	if err != nil {
		return wire.SwitchboardResponse{}, fmt.Errorf("switchboard: do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return wire.SwitchboardResponse{}, fmt.Errorf("switchboard: unexpected status %d", httpResp.StatusCode)
	}

	var resp wire.SwitchboardResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return wire.SwitchboardResponse{}, fmt.Errorf("switchboard: decode response: %w", err)
	}
	return resp, nil
}

// handleInbound dispatches one negotiation item addressed to us: an
// offer gets accepted and its answer queued for the next outbound
// request; an answer gets signaled straight into its waiting initiator.
func (cl *Client) handleInbound(item wire.NegotiationItem) {
	switch item.Negotiation.Type {
	case wire.NegotiationOffer:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
			defer cancel()
			answer, err := cl.negotiator.AcceptOffer(ctx, item.Negotiation)
			if err != nil {
				cl.logger.Printf("switchboard: accept offer from %s: %v", item.From, err)
				return
			}
			cl.queueItem(wire.NegotiationItem{For: item.From, From: cl.selfAddress, Negotiation: answer})
		}()
	case wire.NegotiationAnswer:
		if err := cl.negotiator.SignalAnswer(item.Negotiation); err != nil {
			cl.logger.Printf("switchboard: signal answer from %s: %v", item.From, err)
		}
	}
}

// ensureOfferFor starts an initiator Connection toward addr and queues
// its offer for the next request. An address that any Connection — of
// any state, including one still mid-negotiation — already has as its
// remote address or dial target is skipped, so no redundant second
// Connection is created.
func (cl *Client) ensureOfferFor(addr string) {
	for _, c := range cl.manager.Connections() {
		if c.RemoteAddress() == addr || c.DialTarget() == addr {
			return
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
		defer cancel()
		offer, err := cl.negotiator.EnsureInitiatorOffer(ctx, addr)
		if err != nil {
			cl.logger.Printf("switchboard: ensure initiator for %s: %v", addr, err)
			return
		}
		if offer.ConnectionID == "" {
			return // already connected; EnsureInitiatorOffer's no-op sentinel
		}
		cl.queueItem(wire.NegotiationItem{For: addr, From: cl.selfAddress, Negotiation: offer})
	}()
}
