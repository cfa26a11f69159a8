package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

// VaultRepo implements VaultRepository using PostgreSQL. Each user has at
// most one row; the version column is the optimistic-concurrency token.
type VaultRepo struct{ db *DB }

// NewVaultRepo constructs a vault repository.
func NewVaultRepo(db *DB) *VaultRepo { return &VaultRepo{db: db} }

// Get returns the user's vault record or ErrNotFound.
func (r *VaultRepo) Get(ctx context.Context, userID uuid.UUID) (*model.VaultRecord, error) {
	const q = `
SELECT encrypted_data, version, last_modified, server_updated_at
FROM vaults WHERE user_id=$1`
	var raw []byte
	rec := model.VaultRecord{UserID: userID}
	err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&raw, &rec.Version, &rec.LastModified, &rec.ServerUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Payload); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put stores the payload if baseVersion matches the stored version
// (0 creates the row) and returns the new version and server timestamp.
func (r *VaultRepo) Put(
	ctx context.Context, userID uuid.UUID, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64,
) (newVer int64, updatedAt time.Time, err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, time.Time{}, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, time.Time{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT version FROM vaults WHERE user_id=$1 FOR UPDATE`
	const ins = `
INSERT INTO vaults (user_id, encrypted_data, version, last_modified, server_updated_at)
VALUES ($1,$2,$3,$4,now()) RETURNING server_updated_at`
	const upd = `
UPDATE vaults SET encrypted_data=$2, version=$3, last_modified=$4, server_updated_at=now()
WHERE user_id=$1 RETURNING server_updated_at`

	var curVer int64
	scanErr := tx.QueryRow(ctx, sel, userID).Scan(&curVer)
	switch {
	case scanErr == nil:
		if curVer != baseVersion {
			err = errs.ErrVersionConflict
			return 0, time.Time{}, err
		}
		newVer = curVer + 1
		if err = tx.QueryRow(ctx, upd, userID, raw, newVer, lastModified).Scan(&updatedAt); err != nil {
			return 0, time.Time{}, err
		}
	case errors.Is(scanErr, pgx.ErrNoRows):
		if baseVersion != 0 {
			err = errs.ErrVersionConflict
			return 0, time.Time{}, err
		}
		newVer = 1
		if err = tx.QueryRow(ctx, ins, userID, raw, newVer, lastModified).Scan(&updatedAt); err != nil {
			return 0, time.Time{}, err
		}
	default:
		err = scanErr
		return 0, time.Time{}, err
	}
	return newVer, updatedAt, nil
}

// RotateCredentials replaces the stored credential hash/salt and the vault
// payload in a single transaction. Either both changes commit or neither.
func (r *VaultRepo) RotateCredentials(
	ctx context.Context, userID uuid.UUID, authHash, saltAuth []byte, payload model.EncryptedPayload, lastModified time.Time,
) (err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const updUser = `UPDATE users SET auth_hash=$2, salt_auth=$3 WHERE id=$1`
	tag, err := tx.Exec(ctx, updUser, userID, authHash, saltAuth)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
		return err
	}

	const updVault = `
UPDATE vaults SET encrypted_data=$2, version=version+1, last_modified=$3, server_updated_at=now()
WHERE user_id=$1`
	tag, err = tx.Exec(ctx, updVault, userID, raw, lastModified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
		return err
	}
	return nil
}
