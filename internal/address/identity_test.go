package address

import "testing"

func TestFromSecretIsDeterministic(t *testing.T) {
	a, err := FromSecret("correct horse battery staple")
	if err != nil {
		t.Fatalf("first derivation: %v", err)
	}
	b, err := FromSecret("correct horse battery staple")
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}
	if a.Address != b.Address {
		t.Fatalf("same secret should derive the same Address, got %s and %s", a.Address, b.Address)
	}
	if !a.Signed || a.SignPriv == nil {
		t.Fatal("FromSecret should produce a signed identity with a private key")
	}
}

func TestFromSecretDifferentSecretsDifferentAddresses(t *testing.T) {
	a, _ := FromSecret("one")
	b, _ := FromSecret("two")
	if a.Address == b.Address {
		t.Fatal("different secrets should derive different Addresses")
	}
}

func TestFromSecretRejectsEmpty(t *testing.T) {
	if _, err := FromSecret(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestUnsigned(t *testing.T) {
	id, err := Unsigned("my-custom-address")
	if err != nil {
		t.Fatalf("unsigned: %v", err)
	}
	if id.Signed {
		t.Fatal("Unsigned identity should report Signed=false")
	}
	if id.Address != "my-custom-address" {
		t.Fatalf("expected address to round-trip, got %s", id.Address)
	}
	if id.SignPriv != nil || id.SignPub != nil {
		t.Fatal("unsigned identity should carry no keypair")
	}
}

func TestUnsignedRejectsEmpty(t *testing.T) {
	if _, err := Unsigned(""); err == nil {
		t.Fatal("expected error for empty unsigned address")
	}
}

func TestFromPublicKeyHexRoundTrip(t *testing.T) {
	id, err := NewSigned()
	if err != nil {
		t.Fatalf("new signed: %v", err)
	}
	addr, pub, err := FromPublicKeyHex(string(id.Address))
	if err != nil {
		t.Fatalf("from public key hex: %v", err)
	}
	if addr != id.Address {
		t.Fatalf("address mismatch: %s vs %s", addr, id.Address)
	}
	if !pub.Equal(id.SignPub) {
		t.Fatal("decoded public key should match the identity's own SignPub")
	}
}

func TestFromPublicKeyHexRejectsBadLength(t *testing.T) {
	if _, _, err := FromPublicKeyHex("deadbeef"); err == nil {
		t.Fatal("expected error for too-short hex public key")
	}
}

func TestFromPublicKeyHexRejectsBadHex(t *testing.T) {
	if _, _, err := FromPublicKeyHex("not-hex!!"); err == nil {
		t.Fatal("expected error for invalid hex encoding")
	}
}
