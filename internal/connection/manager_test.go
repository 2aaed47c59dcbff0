package connection

import (
	"context"
	"testing"
	"time"

	"meshnet/internal/transport/memtransport"
)

// negotiate drives a full initiator/responder handshake through two
// Managers sharing a memtransport.Network, mirroring what
// internal/negotiator does in production, and returns both ends once
// Connected.
func negotiate(t *testing.T, net *memtransport.Network, a, b *Manager, aAddr, bAddr string) (*Connection, *Connection) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	initiator, err := a.EnsureInitiator(bAddr)
	if err != nil {
		t.Fatalf("ensure initiator: %v", err)
	}
	initiator, err = a.WaitOpen(ctx, initiator.ID)
	if err != nil {
		t.Fatalf("wait open (initiator): %v", err)
	}
	offer := initiator.Offer()

	responder, err := b.AcceptOffer(offer)
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	responder, err = b.WaitOpen(ctx, responder.ID)
	if err != nil {
		t.Fatalf("wait open (responder): %v", err)
	}
	answer, ok := responder.Answer()
	if !ok {
		t.Fatal("responder should carry an answer once open")
	}

	if err := a.SignalAnswer(answer); err != nil {
		t.Fatalf("signal answer: %v", err)
	}

	deadline := time.After(time.Second)
	for initiator.State() != StateConnected || responder.State() != StateConnected {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for both ends to reach Connected (initiator=%s responder=%s)", initiator.State(), responder.State())
		case <-time.After(time.Millisecond):
		}
	}
	return initiator, responder
}

func newTestManager(net *memtransport.Network, selfAddress string) *Manager {
	return NewManager(net.Factory(), IdentityCodec{}, selfAddress, "test-network", nil, nil)
}

func TestNegotiationReachesConnected(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")
	b := newTestManager(net, "addr-b")

	initiator, responder := negotiate(t, net, a, b, "addr-a", "addr-b")

	if initiator.RemoteAddress() != "addr-b" {
		t.Fatalf("initiator should have confirmed remote address addr-b, got %q", initiator.RemoteAddress())
	}
	if responder.RemoteAddress() != "addr-a" {
		t.Fatalf("responder should have recorded remote address addr-a, got %q", responder.RemoteAddress())
	}
	if !initiator.Active() || !responder.Active() {
		t.Fatal("both ends should be Active once Connected")
	}
}

func TestDataFlowsBothWays(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")
	b := newTestManager(net, "addr-b")

	var gotOnB []byte
	doneB := make(chan struct{}, 1)
	b.SetOnData(func(c *Connection, data []byte) {
		gotOnB = data
		doneB <- struct{}{}
	})

	initiator, _ := negotiate(t, net, a, b, "addr-a", "addr-b")

	if err := initiator.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data to arrive on b")
	}
	if string(gotOnB) != "hello" {
		t.Fatalf("unexpected payload on b: %q", gotOnB)
	}
}

func TestEnsureInitiatorReusesConnectedConnection(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")
	b := newTestManager(net, "addr-b")

	initiator, _ := negotiate(t, net, a, b, "addr-a", "addr-b")

	again, err := a.EnsureInitiator("addr-b")
	if err != nil {
		t.Fatalf("ensure initiator (again): %v", err)
	}
	if again.ID != initiator.ID {
		t.Fatal("EnsureInitiator should return the existing Connected connection, not create a new one")
	}
}

func TestEnsureInitiatorPopsNonConnectedDuplicate(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")

	first, err := a.EnsureInitiator("addr-b")
	if err != nil {
		t.Fatalf("ensure initiator: %v", err)
	}
	if first.State() == StateConnected {
		t.Fatal("setup: first connection should not yet be connected")
	}

	second, err := a.EnsureInitiator("addr-b")
	if err != nil {
		t.Fatalf("ensure initiator (second): %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh connection since the first was not Connected")
	}

	deadline := time.After(time.Second)
	for first.State() != StateDead {
		select {
		case <-deadline:
			t.Fatal("expected the pre-existing non-Connected duplicate to be destroyed")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestGCRemovesDestroyedTransports(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")
	b := newTestManager(net, "addr-b")

	initiator, _ := negotiate(t, net, a, b, "addr-a", "addr-b")

	// Simulate the transport itself reporting destroyed without going
	// through Manager.Destroy, the case GC exists to sweep up.
	_ = initiator.peer.Close()

	a.GC()

	for _, c := range a.Connections() {
		if c.ID == initiator.ID {
			t.Fatal("GC should have removed the connection once its transport self-reported destroyed")
		}
	}
}

func TestTeardownDestroysEveryConnection(t *testing.T) {
	net := memtransport.NewNetwork()
	a := newTestManager(net, "addr-a")
	b := newTestManager(net, "addr-b")
	negotiate(t, net, a, b, "addr-a", "addr-b")

	a.Teardown()

	if len(a.Active()) != 0 {
		t.Fatal("Teardown should leave no Active connections")
	}
}
