// Package api defines the transport-agnostic server client used by the
// session manager, sync engine, and password-change protocol, plus its
// HTTP implementation.
package api

import (
	"context"
	"time"

	"github.com/kseleznyov/careervault/internal/model"
)

// LoginResult carries the session token issued by the server.
type LoginResult struct {
	Token  string
	UserID string
}

// VaultEnvelope is a stored vault as returned by the server. Version is the
// optimistic-concurrency token to echo back on the next put.
type VaultEnvelope struct {
	EncryptedData   model.EncryptedPayload
	Version         int64
	LastModified    time.Time
	ServerUpdatedAt time.Time
}

// PutResult reports the server state after a successful vault write.
type PutResult struct {
	Version         int64
	ServerUpdatedAt time.Time
}

// Client is the server API consumed by the client core. Implementations
// translate transport failures into the tagged error taxonomy; callers
// never branch on transport details.
type Client interface {
	// Register creates an account for the auth-key hash.
	Register(ctx context.Context, email, authKeyHash string) (userID string, err error)
	// Login authenticates and returns a bearer token.
	Login(ctx context.Context, email, authKeyHash string) (*LoginResult, error)
	// ValidateToken checks whether the bearer token is still accepted.
	ValidateToken(ctx context.Context, token string) error
	// GetVault fetches the encrypted vault; nil when the server has none.
	GetVault(ctx context.Context, token string) (*VaultEnvelope, error)
	// PutVault stores the payload; a stale baseVersion yields CodeSyncConflict.
	PutVault(ctx context.Context, token string, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64) (*PutResult, error)
	// ChangePassword rotates credentials and replaces the vault atomically.
	ChangePassword(ctx context.Context, token, oldAuthKeyHash, newAuthKeyHash string, payload model.EncryptedPayload, lastModified time.Time) error
	// Ping probes server reachability (used by the offline monitor).
	Ping(ctx context.Context) error
}
