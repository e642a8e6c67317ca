package primitives

import (
	"bytes"
	"testing"
)

func TestX25519SharedSecretAgrees(t *testing.T) {
	aPub, aPriv, err := GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bPub, bPriv, err := GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}

	secretAB, err := X25519SharedSecret(aPriv, bPub)
	if err != nil {
		t.Fatal(err)
	}
	secretBA, err := X25519SharedSecret(bPriv, aPub)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretAB, secretBA) {
		t.Fatal("shared secrets computed by each side disagree")
	}
}

func TestX25519PublicKeyDeterministic(t *testing.T) {
	_, priv, err := GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pub1, err := X25519PublicKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	pub2, err := X25519PublicKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pub1, pub2) {
		t.Fatal("public key derivation is not deterministic")
	}
}
