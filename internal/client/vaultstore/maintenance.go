package vaultstore

import (
	"context"
	"encoding/json"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

// Stats summarizes vault contents for dashboards and storage warnings.
type Stats struct {
	Documents    int   `json:"documents"`
	Applications int   `json:"applications"`
	SizeBytes    int64 `json:"sizeBytes"`
}

// Export returns a deep copy of the decrypted vault for backup.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s.vault, "", "  ")
}

// Import replaces the whole vault with the provided export and syncs.
func (s *Store) Import(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	prev := s.vault
	imported := *prev // keep LastModified shape; overwritten by unmarshal
	if err := json.Unmarshal(data, &imported); err != nil {
		return errs.Wrap(errs.CodeInvalidVaultFormat, err)
	}
	s.vault = &imported
	if err := s.sync(ctx); err != nil {
		s.vault = prev
		return err
	}
	return nil
}

// ClearAll empties profile, documents, and applications, keeping the vault
// row itself (and its version history) on the server.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.vault.Profile = model.VaultProfile{}
	s.vault.Documents = s.vault.Documents[:0]
	s.vault.Applications = s.vault.Applications[:0]
	return s.sync(ctx)
}

// Stats reports entity counts and the serialized plaintext size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return Stats{}, err
	}
	raw, err := json.Marshal(s.vault)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:    len(s.vault.Documents),
		Applications: len(s.vault.Applications),
		SizeBytes:    int64(len(raw)),
	}, nil
}
