package sdpcrypto

import (
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"math/big"
)

// This file implements the standard birational map between Ed25519 and
// Curve25519 keys (the same transform libsodium's
// crypto_sign_ed25519_{pk,sk}_to_curve25519 perform). It is the "key
// derivation" pure function spec.md §1 names alongside sign/verify: it
// lets any node turn a peer's Address (an ed25519 public key) into the
// Curve25519 public key needed to seal a message to them, with no
// additional out-of-band exchange.

var curveP *big.Int

func init() {
	// 2^255 - 19
	p := new(big.Int).Lsh(big.NewInt(1), 255)
	p.Sub(p, big.NewInt(19))
	curveP = p
}

// pubToCurve25519 converts an ed25519 public key's Edwards y-coordinate to
// the Montgomery u-coordinate Curve25519 uses: u = (1+y)/(1-y) mod p. The
// result does not depend on the sign bit the top bit of an Ed25519 point
// encodes, so it's cleared before decoding.
func pubToCurve25519(pub ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	if len(pub) != ed25519.PublicKeySize {
		return out, errors.New("sdpcrypto: bad ed25519 public key length")
	}

	yle := make([]byte, ed25519.PublicKeySize)
	copy(yle, pub)
	yle[31] &= 0x7f // clear sign bit

	y := new(big.Int).SetBytes(reverseBytes(yle))

	one := big.NewInt(1)
	num := new(big.Int).Mod(new(big.Int).Add(one, y), curveP)
	den := new(big.Int).Mod(new(big.Int).Sub(one, y), curveP)
	den.Mod(den, curveP)
	denInv := new(big.Int).ModInverse(den, curveP)
	if denInv == nil {
		return out, errors.New("sdpcrypto: public key has no curve25519 equivalent")
	}
	u := new(big.Int).Mod(new(big.Int).Mul(num, denInv), curveP)

	ub := u.Bytes()
	le := reverseBytes(ub)
	copy(out[:], le) // zero-pads the high end, matching little-endian field encoding
	return out, nil
}

// privToCurve25519 derives the Curve25519 scalar an ed25519 private key
// would use, by reproducing the same clamped SHA-512(seed) prefix ed25519
// key generation already computes internally.
func privToCurve25519(priv ed25519.PrivateKey) [32]byte {
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
