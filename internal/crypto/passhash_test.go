package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes(t *testing.T) {
	t.Parallel()
	a, err := RandBytes(16)
	if err != nil || len(a) != 16 {
		t.Fatalf("RandBytes: %v len=%d", err, len(a))
	}
	b, _ := RandBytes(16)
	if bytes.Equal(a, b) {
		t.Fatalf("RandBytes produced equal slices")
	}
}

func TestHashVerifyCredential(t *testing.T) {
	t.Parallel()
	salt, _ := RandBytes(16)
	cred := []byte("deadbeefcafe")

	h := HashCredential(cred, salt)
	if len(h) == 0 {
		t.Fatalf("empty hash")
	}
	if !VerifyCredential(cred, salt, h) {
		t.Fatalf("valid credential must verify")
	}
	if VerifyCredential([]byte("wrong"), salt, h) {
		t.Fatalf("wrong credential must not verify")
	}
	salt2, _ := RandBytes(16)
	if VerifyCredential(cred, salt2, h) {
		t.Fatalf("wrong salt must not verify")
	}
}
