package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"meshnet/internal/wire"
)

func newKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv, hex.EncodeToString(pub)
}

func baseMessage(originator string) wire.Message {
	return wire.Message{
		ID:          "msg-1",
		Address:     originator,
		AppID:       "chat",
		TTL:         6,
		Type:        "text",
		Destination: wire.Wildcard,
	}
}

func TestSignThenVerifyChainSingleHop(t *testing.T) {
	_, priv, addr := newKeypair(t)
	msg := baseMessage(addr)

	sig, err := Sign(priv, addr, msg, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	msg.Signatures = []wire.Signature{sig}

	if err := VerifyChain(msg); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestVerifyChainMultiHop(t *testing.T) {
	_, originPriv, originAddr := newKeypair(t)
	_, relayPriv, relayAddr := newKeypair(t)

	msg := baseMessage(originAddr)
	originSig, err := Sign(originPriv, originAddr, msg, nil)
	if err != nil {
		t.Fatalf("sign origin: %v", err)
	}
	msg.Signatures = []wire.Signature{originSig}

	relaySig, err := Sign(relayPriv, relayAddr, msg, msg.Signatures)
	if err != nil {
		t.Fatalf("sign relay: %v", err)
	}
	msg.Signatures = append(msg.Signatures, relaySig)

	if err := VerifyChain(msg); err != nil {
		t.Fatalf("verify two-hop chain: %v", err)
	}
	if msg.HopCount() != 2 {
		t.Fatalf("expected hop count 2, got %d", msg.HopCount())
	}
}

func TestVerifyChainRejectsTamperedData(t *testing.T) {
	_, priv, addr := newKeypair(t)
	msg := baseMessage(addr)
	sig, err := Sign(priv, addr, msg, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	msg.Signatures = []wire.Signature{sig}

	msg.Type = "tampered"
	if err := VerifyChain(msg); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for tampered message, got %v", err)
	}
}

func TestVerifyChainRejectsWrongOriginator(t *testing.T) {
	_, priv, addr := newKeypair(t)
	msg := baseMessage(addr)
	sig, err := Sign(priv, addr, msg, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	msg.Signatures = []wire.Signature{sig}
	msg.Address = "someone-else"

	if err := VerifyChain(msg); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature when final signer != msg.Address, got %v", err)
	}
}

func TestVerifyChainRejectsEmptySignatures(t *testing.T) {
	msg := baseMessage("addr")
	if err := VerifyChain(msg); err != ErrMissingSignatures {
		t.Fatalf("expected ErrMissingSignatures, got %v", err)
	}
}
