package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kseleznyov/careervault/internal/model"
)

// VaultRepository provides versioned access to the single encrypted vault
// document per user.
type VaultRepository interface {
	// Get returns the user's vault record, or ErrNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID) (*model.VaultRecord, error)

	// Put stores the payload with an optimistic version check: baseVersion
	// must equal the stored version (0 when creating). Returns the new
	// version and server timestamp, or ErrVersionConflict on a stale write.
	Put(ctx context.Context, userID uuid.UUID, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64) (int64, time.Time, error)

	// RotateCredentials atomically replaces the user's stored credential
	// hash/salt and the vault payload in one transaction.
	RotateCredentials(ctx context.Context, userID uuid.UUID, authHash, saltAuth []byte, payload model.EncryptedPayload, lastModified time.Time) error
}
