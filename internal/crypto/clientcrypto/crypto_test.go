package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"testing"
	"time"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

func TestDeriveKeys_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := DeriveKeys("correct horse", "user@example.com")
	if err != nil {
		t.Fatalf("DeriveKeys: %v", err)
	}
	b, err := DeriveKeys("correct horse", "user@example.com")
	if err != nil {
		t.Fatalf("DeriveKeys: %v", err)
	}
	if subtle.ConstantTimeCompare(a.MasterKey, b.MasterKey) != 1 {
		t.Fatalf("master key not deterministic")
	}
	if subtle.ConstantTimeCompare(a.AuthKey, b.AuthKey) != 1 {
		t.Fatalf("auth key not deterministic")
	}
	if subtle.ConstantTimeCompare(a.MasterKey, a.AuthKey) == 1 {
		t.Fatalf("master and auth keys must differ")
	}
	if len(a.MasterKey) != KeyLen || len(a.AuthKey) != KeyLen {
		t.Fatalf("key lengths: %d %d", len(a.MasterKey), len(a.AuthKey))
	}
}

func TestDeriveKeys_ChangesWithInputs(t *testing.T) {
	t.Parallel()
	a, _ := DeriveKeys("pw", "user@example.com")
	b, _ := DeriveKeys("pw2", "user@example.com")
	c, _ := DeriveKeys("pw", "other@example.com")
	if bytes.Equal(a.MasterKey, b.MasterKey) {
		t.Fatalf("master key must change with password")
	}
	if bytes.Equal(a.MasterKey, c.MasterKey) {
		t.Fatalf("master key must change with email")
	}
	// Email is case/whitespace-normalized so keys survive sloppy input.
	d, _ := DeriveKeys("pw", "  User@Example.COM ")
	if !bytes.Equal(a.MasterKey, d.MasterKey) {
		t.Fatalf("email normalization must not change the key")
	}
}

func TestDeriveKeys_RejectsEmptyInputs(t *testing.T) {
	t.Parallel()
	if _, err := DeriveKeys("", "user@example.com"); errs.CodeOf(err) != errs.CodeKeyDerivationFailed {
		t.Fatalf("want KEY_DERIVATION_FAILED, got %v", err)
	}
	if _, err := DeriveKeys("pw", ""); errs.CodeOf(err) != errs.CodeKeyDerivationFailed {
		t.Fatalf("want KEY_DERIVATION_FAILED, got %v", err)
	}
}

func TestHashAuthKey_StableHex(t *testing.T) {
	t.Parallel()
	k := []byte("0123456789abcdef0123456789abcdef")
	h1 := HashAuthKey(k)
	h2 := HashAuthKey(k)
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("HashAuthKey unstable or wrong length: %q %q", h1, h2)
	}
	if HashAuthKey([]byte("other")) == h1 {
		t.Fatalf("different keys must hash differently")
	}
}

func TestEncryptDecryptObject_Roundtrip(t *testing.T) {
	t.Parallel()
	key := make([]byte, KeyLen)
	copy(key, "0123456789abcdef0123456789abcdef")

	in := model.NewEmptyVault(time.Unix(1700000000, 0).UTC())
	in.Profile = model.VaultProfile{Name: "Alice", Email: "a@example.com", Skills: []string{"go"}}
	in.Documents = append(in.Documents, model.VaultDocument{ID: "d1", Type: model.DocumentCV, Name: "cv"})

	p, err := EncryptObject(in, key)
	if err != nil {
		t.Fatalf("EncryptObject: %v", err)
	}
	if p.Alg != PayloadAlg || p.Ciphertext == "" || p.Nonce == "" {
		t.Fatalf("bad payload: %+v", p)
	}

	out := &model.UserVault{}
	if err := DecryptObject(p, key, out); err != nil {
		t.Fatalf("DecryptObject: %v", err)
	}
	if out.Profile.Name != "Alice" || len(out.Documents) != 1 || out.Documents[0].ID != "d1" {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestEncryptObject_FreshNonce(t *testing.T) {
	t.Parallel()
	key := make([]byte, KeyLen)
	a, _ := EncryptObject(map[string]string{"k": "v"}, key)
	b, _ := EncryptObject(map[string]string{"k": "v"}, key)
	if a.Nonce == b.Nonce || a.Ciphertext == b.Ciphertext {
		t.Fatalf("nonce/ciphertext must differ between seals")
	}
}

func TestDecryptObject_WrongKey(t *testing.T) {
	t.Parallel()
	key := make([]byte, KeyLen)
	key[0] = 1
	p, err := EncryptObject(map[string]string{"k": "v"}, key)
	if err != nil {
		t.Fatalf("EncryptObject: %v", err)
	}

	wrong := make([]byte, KeyLen)
	wrong[0] = 2
	var out map[string]string
	err = DecryptObject(p, wrong, &out)
	if errs.CodeOf(err) != errs.CodeDecryptionFailed {
		t.Fatalf("want DECRYPTION_FAILED, got %v", err)
	}
}

func TestDecryptObject_RejectsMalformedPayload(t *testing.T) {
	t.Parallel()
	key := make([]byte, KeyLen)
	var out map[string]string

	if err := DecryptObject(nil, key, &out); errs.CodeOf(err) != errs.CodeInvalidVaultFormat {
		t.Fatalf("nil payload: want INVALID_VAULT_FORMAT, got %v", err)
	}
	p := &model.EncryptedPayload{Ciphertext: "xx", Nonce: "yy", Alg: "aes-gcm"}
	if err := DecryptObject(p, key, &out); errs.CodeOf(err) != errs.CodeInvalidVaultFormat {
		t.Fatalf("unknown alg: want INVALID_VAULT_FORMAT, got %v", err)
	}
	p = &model.EncryptedPayload{Ciphertext: "%%%", Nonce: "yy", Alg: PayloadAlg}
	if err := DecryptObject(p, key, &out); errs.CodeOf(err) != errs.CodeInvalidVaultFormat {
		t.Fatalf("bad base64: want INVALID_VAULT_FORMAT, got %v", err)
	}
}

func TestExportImportKey(t *testing.T) {
	t.Parallel()
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i)
	}
	got, err := ImportKey(ExportKey(key))
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatalf("export/import mismatch")
	}

	if _, err := ImportKey("not base64 %%"); err == nil {
		t.Fatalf("want error on bad encoding")
	}
	if _, err := ImportKey(ExportKey([]byte("short"))); err == nil {
		t.Fatalf("want error on wrong length")
	}
}

func TestClearKey(t *testing.T) {
	t.Parallel()
	k := []byte{1, 2, 3}
	ClearKey(k)
	if !bytes.Equal(k, []byte{0, 0, 0}) {
		t.Fatalf("key not zeroed: %v", k)
	}

	ks := &KeySet{MasterKey: []byte{9}, AuthKey: []byte{9}}
	ks.Clear()
	ks.Clear() // idempotent
	if ks.MasterKey[0] != 0 || ks.AuthKey[0] != 0 {
		t.Fatalf("KeySet not zeroed")
	}
}
