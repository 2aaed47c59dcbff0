// Package uiutil formats Addresses for terminal display: a short id and
// a deterministic color so the same peer always prints the same way in
// a session. Grounded on the teacher's peer-name coloring (same
// hash-to-palette trick), reworked for this domain: an Address is
// usually a hex-encoded ed25519 public key (address.FromSecret,
// address.FromPublicKeyHex), so the color hashes over the decoded key
// bytes rather than the hex text itself, falling back to the raw string
// only for an unsigned, non-hex Address.
package uiutil

import "encoding/hex"

const (
	AnsiReset = "\033[0m"
	AnsiDim   = "\033[2m"
)

var addressColors = []string{
	"\033[31m", // red
	"\033[32m", // green
	"\033[33m", // yellow
	"\033[34m", // blue
	"\033[35m", // magenta
	"\033[36m", // cyan
}

// ShortAddress truncates addr to its first 8 characters for compact
// display.
func ShortAddress(addr string) string {
	if len(addr) > 8 {
		return addr[:8]
	}
	return addr
}

// colorKeyBytes returns the bytes PickColor hashes over: the decoded
// public key when addr is a hex-encoded ed25519 address, or the raw
// address text for an unsigned Address that never decodes to hex.
func colorKeyBytes(addr string) []byte {
	if key, err := hex.DecodeString(addr); err == nil && len(key) > 0 {
		return key
	}
	return []byte(addr)
}

// PickColor deterministically maps addr onto one of addressColors,
// hashing over its decoded key bytes where available.
func PickColor(addr string) string {
	if addr == "" {
		return AnsiReset
	}
	key := colorKeyBytes(addr)
	var h uint32
	for _, b := range key {
		h = h*16777619 ^ uint32(b)
	}
	return addressColors[h%uint32(len(addressColors))]
}

// FormatAddress renders addr in its deterministic color, shortened for
// display.
func FormatAddress(addr string) string {
	return PickColor(addr) + ShortAddress(addr) + AnsiReset
}
