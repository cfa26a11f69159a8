package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/kseleznyov/careervault/internal/crypto"
	"github.com/kseleznyov/careervault/internal/model"
	"github.com/kseleznyov/careervault/internal/repository"
)

// VaultService defines operations over the per-user encrypted vault blob.
// The server never inspects payload contents; it only enforces versioning.
type VaultService interface {
	// Get returns the vault record, or nil when the user has none yet.
	Get(ctx context.Context, userID uuid.UUID) (*model.VaultRecord, error)
	// Put stores a new payload with an optimistic version check.
	Put(ctx context.Context, userID uuid.UUID, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64) (int64, time.Time, error)
	// ChangePassword rotates the credential and replaces the vault atomically.
	ChangePassword(ctx context.Context, userID uuid.UUID, newAuthKeyHash string, payload model.EncryptedPayload, lastModified time.Time) error
}

type VaultServiceImpl struct {
	vaults repository.VaultRepository
}

// NewVaultService constructs VaultService.
func NewVaultService(vaults repository.VaultRepository) *VaultServiceImpl {
	return &VaultServiceImpl{vaults: vaults}
}

// Get loads the user's vault record; a missing vault is not an error here,
// the transport layer reports it as a null vault.
func (s *VaultServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*model.VaultRecord, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.vaults.Get(ctx, userID)
}

// Put validates input and delegates the version-checked upsert.
func (s *VaultServiceImpl) Put(
	ctx context.Context, userID uuid.UUID, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64,
) (int64, time.Time, error) {
	if userID == uuid.Nil {
		return 0, time.Time{}, errors.New("validation: empty userID")
	}
	if payload.Ciphertext == "" || payload.Nonce == "" {
		return 0, time.Time{}, errors.New("validation: empty payload")
	}
	if baseVersion < 0 {
		return 0, time.Time{}, errors.New("validation: negative base version")
	}
	return s.vaults.Put(ctx, userID, payload, lastModified, baseVersion)
}

// ChangePassword hashes the new credential and applies credential rotation
// and vault replacement in one repository transaction. Old-credential
// verification happens in the auth service before this is called.
func (s *VaultServiceImpl) ChangePassword(
	ctx context.Context, userID uuid.UUID, newAuthKeyHash string, payload model.EncryptedPayload, lastModified time.Time,
) error {
	if userID == uuid.Nil {
		return errors.New("validation: empty userID")
	}
	cred, err := decodeCredential(newAuthKeyHash)
	if err != nil {
		return err
	}
	if payload.Ciphertext == "" || payload.Nonce == "" {
		return errors.New("validation: empty payload")
	}
	saltAuth, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return err
	}
	newHash := pkgcrypto.HashCredential(cred, saltAuth)
	return s.vaults.RotateCredentials(ctx, userID, newHash, saltAuth, payload, lastModified)
}
