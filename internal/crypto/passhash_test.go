package crypto

import (
	"encoding/hex"
	"testing"
)

func TestNewSaltAndToken(t *testing.T) {
	t.Parallel()

	s1, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	s2, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt(2): %v", err)
	}
	if len(s1) != 2*saltLen {
		t.Fatalf("salt len=%d, want=%d", len(s1), 2*saltLen)
	}
	if s1 == s2 {
		t.Fatalf("two salts are equal, looks non-random")
	}

	tok, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if _, err := hex.DecodeString(tok); err != nil || len(tok) != 2*tokenLen {
		t.Fatalf("token %q is not %d hex bytes", tok, tokenLen)
	}
}

func TestHashPassword_DeterministicOnSameInput(t *testing.T) {
	t.Parallel()

	h1 := HashPassword("secret1", "salt-a")
	h2 := HashPassword("secret1", "salt-a")
	if h1 == "" || h1 != h2 {
		t.Fatalf("hash not deterministic for same input")
	}
	if h1 == HashPassword("secret1", "salt-b") {
		t.Fatalf("hash should differ when salt differs")
	}
	if h1 == HashPassword("secret2", "salt-a") {
		t.Fatalf("hash should differ when password differs")
	}
	if h1 == "secret1" {
		t.Fatalf("hash must not be the plaintext")
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	hash := HashPassword("correct horse", "salty")
	if !VerifyPassword("correct horse", "salty", hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if VerifyPassword("wrong", "salty", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if VerifyPassword("correct horse", "other", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong salt")
	}
	if VerifyPassword("", "salty", hash) {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
}
