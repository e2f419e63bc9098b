// Package crypto implements server-side password hashing and session token
// generation.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	saltLen  = 16
	tokenLen = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewSalt returns a fresh per-account salt, hex encoded.
func NewSalt() (string, error) {
	b, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewToken returns an opaque session token, hex encoded.
func NewToken() (string, error) {
	b, err := RandBytes(tokenLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashPassword returns the hex Argon2id hash of password under salt.
func HashPassword(password, salt string) string {
	return hex.EncodeToString(argon2.IDKey([]byte(password), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen))
}

// VerifyPassword reports whether password hashes to expected under salt.
func VerifyPassword(password, salt, expected string) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
