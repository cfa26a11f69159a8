// Package clientcrypto contains the client-side cryptographic primitives of
// the zero-knowledge vault: password-based key derivation, auth-key hashing,
// and whole-object AEAD encryption. The master key never leaves this side of
// the wire in plaintext.
package clientcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

const (
	// KeyLen is the length of the master and auth keys.
	KeyLen = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1

	// PayloadAlg identifies the AEAD used for vault payloads.
	PayloadAlg = "xchacha20poly1305"

	saltContext = "careervault/kdf/v1"
)

// KeySet holds the two keys derived from (password, email). The master key
// encrypts the vault; only the hash of the auth key is sent to the server.
type KeySet struct {
	MasterKey []byte
	AuthKey   []byte
}

// Clear zeroes both keys. Safe to call more than once.
func (ks *KeySet) Clear() {
	if ks == nil {
		return
	}
	ClearKey(ks.MasterKey)
	ClearKey(ks.AuthKey)
}

// emailSalt derives a deterministic per-account KDF salt from the email.
// The same (email, password) pair must always yield the same keys so that
// any device can decrypt the vault.
func emailSalt(email string) []byte {
	h := sha256.Sum256([]byte(saltContext + "|" + strings.ToLower(strings.TrimSpace(email))))
	return h[:]
}

// DeriveKeys derives the master and auth keys from the password and email
// using Argon2id followed by HKDF-SHA256 expansion with distinct labels.
func DeriveKeys(password, email string) (*KeySet, error) {
	if password == "" || email == "" {
		return nil, errs.New(errs.CodeKeyDerivationFailed, "empty password or email")
	}
	root := argon2.IDKey([]byte(password), emailSalt(email), argonTime, argonMemory, argonThreads, KeyLen)
	defer ClearKey(root)

	master, err := expand(root, "master key")
	if err != nil {
		return nil, errs.Wrap(errs.CodeKeyDerivationFailed, err)
	}
	auth, err := expand(root, "auth key")
	if err != nil {
		ClearKey(master)
		return nil, errs.Wrap(errs.CodeKeyDerivationFailed, err)
	}
	return &KeySet{MasterKey: master, AuthKey: auth}, nil
}

func expand(root []byte, label string) ([]byte, error) {
	r := hkdf.New(sha256.New, root, nil, []byte(label))
	key := make([]byte, KeyLen)
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// HashAuthKey returns the hex SHA-256 of the auth key. This hash is the only
// credential the server ever receives.
func HashAuthKey(authKey []byte) string {
	h := sha256.Sum256(authKey)
	return hex.EncodeToString(h[:])
}

// EncryptObject serializes v to JSON and seals it with XChaCha20-Poly1305
// under key, using a fresh random nonce.
func EncryptObject(v any, key []byte) (*model.EncryptedPayload, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.CodeEncryptionFailed, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errs.Wrap(errs.CodeEncryptionFailed, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errs.Wrap(errs.CodeEncryptionFailed, err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return &model.EncryptedPayload{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Alg:        PayloadAlg,
	}, nil
}

// DecryptObject opens the payload with key and unmarshals the plaintext into
// out. A wrong key or corrupted ciphertext yields CodeDecryptionFailed;
// authenticated but non-JSON plaintext yields CodeInvalidVaultFormat.
func DecryptObject(p *model.EncryptedPayload, key []byte, out any) error {
	if p == nil || p.Alg != PayloadAlg {
		return errs.New(errs.CodeInvalidVaultFormat, "unsupported payload")
	}
	ct, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidVaultFormat, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return errs.New(errs.CodeInvalidVaultFormat, "bad nonce")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errs.Wrap(errs.CodeDecryptionFailed, err)
	}
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return errs.Wrap(errs.CodeDecryptionFailed, err)
	}
	defer ClearKey(plaintext)
	if err := json.Unmarshal(plaintext, out); err != nil {
		return errs.Wrap(errs.CodeInvalidVaultFormat, err)
	}
	return nil
}

// ClearKey zeroes key material in place.
func ClearKey(k []byte) {
	for i := range k {
		k[i] = 0
	}
}

// ExportKey encodes the master key for session-scoped storage.
func ExportKey(k []byte) string {
	return base64.StdEncoding.EncodeToString(k)
}

// ImportKey reconstitutes a key from its exported form.
func ImportKey(s string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(k) != KeyLen {
		return nil, errs.New(errs.CodeKeyDerivationFailed, "bad exported key")
	}
	return k, nil
}
