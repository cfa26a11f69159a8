// Package crypto implements server-side hashing of the client-submitted
// auth-key hash. The server never sees passwords or master keys; the
// credential it protects at rest is itself a derived hash.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashCredential returns the Argon2id hash of the submitted auth-key hash
// using the provided per-user salt.
func HashCredential(authKeyHash, salt []byte) []byte {
	return argon2.IDKey(authKeyHash, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyCredential compares the submitted auth-key hash against the stored
// Argon2id hash in constant time.
func VerifyCredential(authKeyHash, salt, expected []byte) bool {
	got := HashCredential(authKeyHash, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
