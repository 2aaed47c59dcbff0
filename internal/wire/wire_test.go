package wire

import (
	"encoding/json"
	"testing"
)

func TestNegotiationPending(t *testing.T) {
	n := Negotiation{Address: "addr-a"}
	if !n.Pending() {
		t.Fatal("negotiation with nil SDP should be pending")
	}
	sdp := "v=0..."
	n.SDP = &sdp
	if n.Pending() {
		t.Fatal("negotiation with sdp set should no longer be pending")
	}
}

func TestHopCountMatchesSignatureCount(t *testing.T) {
	m := Message{Signatures: []Signature{{Signer: "a"}, {Signer: "b"}}}
	if got := m.HopCount(); got != 2 {
		t.Fatalf("expected hop count 2, got %d", got)
	}
	if got := (Message{}).HopCount(); got != 0 {
		t.Fatalf("expected hop count 0 for no signatures, got %d", got)
	}
}

func TestAddressedTo(t *testing.T) {
	direct := Message{Destination: "addr-a"}
	if !direct.AddressedTo("addr-a") {
		t.Fatal("direct match should be addressed to self")
	}
	if direct.AddressedTo("addr-b") {
		t.Fatal("direct message for addr-a should not be addressed to addr-b")
	}

	broadcast := Message{Destination: Wildcard}
	if !broadcast.AddressedTo("addr-b") {
		t.Fatal("wildcard destination should be addressed to every address")
	}
}

func TestMustMarshalRoundTrips(t *testing.T) {
	raw := MustMarshal(PresenceData{Address: "addr-a"})
	var got PresenceData
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Address != "addr-a" {
		t.Fatalf("expected addr-a, got %q", got.Address)
	}
}

func TestMustMarshalPanicsOnUnmarshalable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustMarshal to panic on an unmarshalable value")
		}
	}()
	MustMarshal(make(chan int))
}
