// Package signing implements the gossip signature chain: deterministic
// canonical serialization plus ed25519 sign/verify, following the same
// "marshal a fixed struct" approach as the teacher's
// proto.EncodeSnapshotCanonical (internal/proto/helpers.go) — a generic
// sorted-key JSON library isn't needed because signer and verifier both
// serialize through the exact same Go type, which already fixes field
// order deterministically.
package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"

	"meshnet/internal/wire"
)

// ErrBadSignature is returned by VerifyChain when any hop's signature
// fails to verify, or when a signer field doesn't decode to a valid
// ed25519 public key.
var ErrBadSignature = errors.New("signing: bad signature")

// ErrMissingSignatures is returned by VerifyChain when signing is required
// but the message carries no signatures at all.
var ErrMissingSignatures = errors.New("signing: missing signatures")

type signable struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	AppID       string          `json:"app_id"`
	TTL         int             `json:"ttl"`
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Data        json.RawMessage `json:"data"`
	Signatures  []wire.Signature `json:"signatures"`
}

// Canonical returns the deterministic byte serialization of msg as it
// stood when it carried exactly sigsSoFar — the form each hop signs and
// each verifier re-derives while peeling the chain.
func Canonical(msg wire.Message, sigsSoFar []wire.Signature) ([]byte, error) {
	if sigsSoFar == nil {
		sigsSoFar = []wire.Signature{}
	}
	s := signable{
		ID:          msg.ID,
		Address:     msg.Address,
		AppID:       msg.AppID,
		TTL:         msg.TTL,
		Type:        msg.Type,
		Destination: msg.Destination,
		Data:        msg.Data,
		Signatures:  sigsSoFar,
	}
	return json.Marshal(s)
}

// Sign produces this hop's signature pair over msg as it stands with
// sigsSoFar already attached (i.e. before this hop's own pair is
// appended), matching spec.md §4.3's "each hop signs the message as it
// received it, then appends its own pair".
func Sign(priv ed25519.PrivateKey, selfAddress string, msg wire.Message, sigsSoFar []wire.Signature) (wire.Signature, error) {
	data, err := Canonical(msg, sigsSoFar)
	if err != nil {
		return wire.Signature{}, err
	}
	sig := ed25519.Sign(priv, data)
	return wire.Signature{Signer: selfAddress, Signature: hex.EncodeToString(sig)}, nil
}

// VerifyChain verifies every hop's signature, peeling from the tail
// (spec.md §4.3 step 4). It requires the final (first-appended) signature
// to belong to msg.Address, the originator.
func VerifyChain(msg wire.Message) error {
	sigs := msg.Signatures
	if len(sigs) == 0 {
		return ErrMissingSignatures
	}
	for i := len(sigs) - 1; i >= 0; i-- {
		hop := sigs[i]
		remaining := sigs[:i]
		data, err := Canonical(msg, remaining)
		if err != nil {
			return err
		}
		pubBytes, err := hex.DecodeString(hop.Signer)
		if err != nil || len(pubBytes) != ed25519.PublicKeySize {
			return ErrBadSignature
		}
		sigBytes, err := hex.DecodeString(hop.Signature)
		if err != nil {
			return ErrBadSignature
		}
		if !ed25519.Verify(ed25519.PublicKey(pubBytes), data, sigBytes) {
			return ErrBadSignature
		}
	}
	if sigs[0].Signer != msg.Address {
		return ErrBadSignature
	}
	return nil
}
