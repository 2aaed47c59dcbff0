package sdpcrypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"meshnet/internal/address"
)

// Codec adapts Seal/Open to connection.Codec's (recipientAddress,
// plaintext)/(ciphertext) shape, keyed by the hex ed25519 addresses the
// rest of meshnet already uses. The wire ciphertext is hex-encoded so it
// still fits a JSON string field.
type Codec struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewCodec returns a Codec backed by a node's own signing keypair.
func NewCodec(priv ed25519.PrivateKey, pub ed25519.PublicKey) *Codec {
	return &Codec{priv: priv, pub: pub}
}

func (c *Codec) Encrypt(recipientAddress string, plaintext string) (string, error) {
	_, recipientPub, err := address.FromPublicKeyHex(recipientAddress)
	if err != nil {
		return "", fmt.Errorf("sdpcrypto: codec: bad recipient address: %w", err)
	}
	blob, err := Seal(recipientPub, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(blob), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	blob, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("sdpcrypto: codec: bad ciphertext encoding: %w", err)
	}
	plaintext, err := Open(c.priv, c.pub, blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
