// Package sdpcrypto implements the "configured asymmetric scheme" spec.md
// §4.1 hooks encryption of negotiation SDP behind: Seal encrypts a session
// description to a recipient Address with no prior interaction, Open
// decrypts it with the recipient's own signing key. It is grounded on the
// teacher's internal/crypto/noiseconn, which already vendors flynn/noise
// for Curve25519 Diffie-Hellman — but where the teacher drives a full
// interactive Noise_XX handshake over a TCP stream, sealing a SDP string
// to a known recipient public key is exactly what Noise's one-way N
// pattern (a single "-> e, es" message) is for, so that's what's used here
// instead of a generic authenticated-encryption library.
package sdpcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/flynn/noise"
)

func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)
}

// Seal encrypts plaintext so that only the holder of the ed25519 private
// key behind recipientPub can decrypt it. The returned blob embeds the
// sender's fresh ephemeral public key, so no prior round trip is needed —
// matching spec.md's requirement that SDP encryption not add a signaling
// round trip.
func Seal(recipientPub ed25519.PublicKey, plaintext []byte) ([]byte, error) {
	recipientCurve, err := pubToCurve25519(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: seal: %w", err)
	}
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite(),
		Random:      rand.Reader,
		Pattern:     noise.HandshakeN,
		Initiator:   true,
		PeerStatic:  recipientCurve[:],
	})
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: seal: %w", err)
	}
	blob, _, _, err := hs.WriteMessage(nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: seal: %w", err)
	}
	return blob, nil
}

// Open decrypts a blob produced by Seal using the recipient's own ed25519
// keypair.
func Open(priv ed25519.PrivateKey, pub ed25519.PublicKey, blob []byte) ([]byte, error) {
	localCurvePriv := privToCurve25519(priv)
	localCurvePub, err := pubToCurve25519(pub)
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: open: %w", err)
	}
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite(),
		Random:      rand.Reader,
		Pattern:     noise.HandshakeN,
		Initiator:   false,
		StaticKeypair: noise.DHKey{
			Private: localCurvePriv[:],
			Public:  localCurvePub[:],
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: open: %w", err)
	}
	plaintext, _, _, err := hs.ReadMessage(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("sdpcrypto: open: %w", err)
	}
	return plaintext, nil
}
