package sdpcrypto

import (
	"crypto/ed25519"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	plaintext := []byte("v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\n")
	blob, err := Seal(pub, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := Open(priv, pub, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenRejectsWrongRecipient(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wrongPub, wrongPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	blob, err := Seal(pub, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Open(wrongPriv, wrongPub, blob); err == nil {
		t.Fatal("expected Open to fail when decrypted with the wrong keypair")
	}
}

func TestPubToCurve25519RejectsBadLength(t *testing.T) {
	if _, err := pubToCurve25519([]byte("too-short")); err == nil {
		t.Fatal("expected error for an ed25519 public key of the wrong length")
	}
}

func TestPubToCurve25519Deterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	a, err := pubToCurve25519(pub)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	b, err := pubToCurve25519(pub)
	if err != nil {
		t.Fatalf("convert again: %v", err)
	}
	if a != b {
		t.Fatal("conversion of the same public key should be deterministic")
	}
}
