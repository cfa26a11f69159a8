package state

import (
	"errors"
	"os"
	"path/filepath"
)

// KeyFile stores the exported master key for the lifetime of a login
// session. It lives outside the durable store on purpose: wiping it ends
// the session without touching the token, and the token alone can never
// reconstruct the key.
type KeyFile struct{ path string }

// NewKeyFile creates a key store at path.
func NewKeyFile(path string) *KeyFile { return &KeyFile{path: path} }

// DefaultKeyPath places the key file in the user runtime dir when
// available, falling back to the system temp dir.
func DefaultKeyPath() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "careervault", "session.key")
	}
	return filepath.Join(os.TempDir(), "careervault-session.key")
}

// Save writes the exported key with owner-only permissions.
func (k *KeyFile) Save(export string) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(k.path, []byte(export), 0o600)
}

// Load returns the exported key, or "" when no session key exists.
func (k *KeyFile) Load() (string, error) {
	b, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

// Delete removes the key file. Missing file is not an error.
func (k *KeyFile) Delete() error {
	if err := os.Remove(k.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
