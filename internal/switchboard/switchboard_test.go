package switchboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meshnet/internal/connection"
	"meshnet/internal/events"
	"meshnet/internal/negotiator"
	"meshnet/internal/transport/memtransport"
	"meshnet/internal/wire"
)

func newTestClient(t *testing.T, url string, bus *events.Bus) (*Client, *connection.Manager) {
	t.Helper()
	net := memtransport.NewNetwork()
	manager := connection.NewManager(net.Factory(), connection.IdentityCodec{}, "addr-a", "test-network", nil, nil)
	neg := negotiator.New(manager, "addr-a", 0, nil)
	return New(url, "test-network", "addr-a", manager, neg, bus, 5*time.Millisecond, 50*time.Millisecond, nil), manager
}

func TestNextDelayFastWhenNoActiveConnections(t *testing.T) {
	cl, _ := newTestClient(t, "http://unused", nil)
	if got := cl.nextDelay(); got != cl.fastInterval {
		t.Fatalf("expected fastInterval with zero active connections, got %v", got)
	}
}

func TestTickEmitsSwitchboardResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.SwitchboardRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(wire.SwitchboardResponse{Addresses: []string{"addr-b"}})
	}))
	defer srv.Close()

	bus := events.NewBus()
	got := make(chan []string, 1)
	bus.On(events.SwitchboardResponse, func(e events.Event) { got <- e.Addresses })

	cl, _ := newTestClient(t, srv.URL, bus)
	cl.tick()

	select {
	case addrs := <-got:
		if len(addrs) != 1 || addrs[0] != "addr-b" {
			t.Fatalf("unexpected addresses: %v", addrs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SwitchboardResponse event")
	}
}

func TestQueueItemDrainsOnce(t *testing.T) {
	cl, _ := newTestClient(t, "http://unused", nil)
	cl.queueItem(wire.NegotiationItem{For: "addr-b", From: "addr-a"})
	cl.queueItem(wire.NegotiationItem{For: "addr-c", From: "addr-a"})

	items := cl.drainPending()
	if len(items) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(items))
	}
	if more := cl.drainPending(); len(more) != 0 {
		t.Fatal("drainPending should empty the queue")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wire.SwitchboardResponse{})
	}))
	defer srv.Close()

	cl, _ := newTestClient(t, srv.URL, nil)
	cl.Start()
	cl.Start() // second Start should be a no-op, not panic on double-close
	cl.Stop()
	cl.Stop() // second Stop should likewise be a no-op
}
