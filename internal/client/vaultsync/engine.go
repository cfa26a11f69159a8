// Package vaultsync loads, decrypts, re-encrypts, and saves the vault as a
// single atomic blob. The whole-document model keeps the server
// zero-knowledge: partial-field sync would require the server to understand
// plaintext structure.
package vaultsync

import (
	"context"
	"time"

	"github.com/kseleznyov/careervault/internal/client/api"
	"github.com/kseleznyov/careervault/internal/client/session"
	"github.com/kseleznyov/careervault/internal/crypto/clientcrypto"
	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
	"github.com/kseleznyov/careervault/internal/retry"
)

// Source tells callers where a loaded vault came from.
type Source string

const (
	// SourceCreated means the server had no vault and an empty one was built.
	SourceCreated Source = "created"
	// SourceServer means the vault was fetched and decrypted.
	SourceServer Source = "server"
)

// LoadResult is a decrypted vault plus the version token for the next save.
type LoadResult struct {
	Vault           *model.UserVault
	Source          Source
	Version         int64
	ServerUpdatedAt time.Time
}

// SaveResult reports the server state after a successful sync.
type SaveResult struct {
	Version         int64
	ServerUpdatedAt time.Time
}

// Engine performs vault synchronization for one session.
type Engine struct {
	api   api.Client
	retry retry.Config
	now   func() time.Time
}

// New constructs an engine with the default retry policy.
func New(apiClient api.Client) *Engine {
	return &Engine{api: apiClient, retry: retry.DefaultConfig(), now: time.Now}
}

// NewWithOptions allows tests and callers to pin the retry policy and clock.
func NewWithOptions(apiClient api.Client, cfg retry.Config, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{api: apiClient, retry: cfg, now: now}
}

// Load fetches and decrypts the vault. A missing server vault yields a fresh
// empty one tagged SourceCreated. A wrong key or corrupted payload surfaces
// as CodeDecryptionFailed, never as silently corrupted data.
func (e *Engine) Load(ctx context.Context, sess *session.Session) (*LoadResult, error) {
	var env *api.VaultEnvelope
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var callErr error
		env, callErr = e.api.GetVault(ctx, sess.Token)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if env == nil {
		return &LoadResult{
			Vault:   model.NewEmptyVault(e.now()),
			Source:  SourceCreated,
			Version: 0,
		}, nil
	}

	vault := &model.UserVault{}
	if err := clientcrypto.DecryptObject(&env.EncryptedData, sess.MasterKey(), vault); err != nil {
		return nil, err
	}
	return &LoadResult{
		Vault:           vault,
		Source:          SourceServer,
		Version:         env.Version,
		ServerUpdatedAt: env.ServerUpdatedAt,
	}, nil
}

// Save stamps LastModified, encrypts the whole document, and issues a single
// put carrying baseVersion. A stale baseVersion surfaces as CodeSyncConflict
// without transparent retry; the caller must reload and reapply.
func (e *Engine) Save(ctx context.Context, sess *session.Session, vault *model.UserVault, baseVersion int64) (*SaveResult, error) {
	vault.LastModified = e.now()
	payload, err := clientcrypto.EncryptObject(vault, sess.MasterKey())
	if err != nil {
		return nil, err
	}

	var res *api.PutResult
	err = retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var callErr error
		res, callErr = e.api.PutVault(ctx, sess.Token, *payload, vault.LastModified, baseVersion)
		return callErr
	})
	if err != nil {
		if errs.CodeOf(err) == errs.CodeUnknown {
			return nil, errs.Wrap(errs.CodeSaveFailed, err)
		}
		return nil, err
	}
	return &SaveResult{Version: res.Version, ServerUpdatedAt: res.ServerUpdatedAt}, nil
}
