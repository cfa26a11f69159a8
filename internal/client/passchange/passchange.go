// Package passchange implements end-to-end password rotation: the vault is
// fetched, decrypted with the old key, re-encrypted with the new key, and
// submitted together with the credential rotation in one atomic request.
package passchange

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

// MinPasswordLen is the hard minimum for a new password.
const MinPasswordLen = 8

// Validation errors surfaced before any key derivation.
var (
	ErrSamePassword  = errs.New(errs.CodeUnknown, "new password must differ from the old one")
	ErrShortPassword = errs.New(errs.CodeUnknown, "new password is too short")
)

// Changer orchestrates the password-change protocol.
type Changer struct {
	api   api.Client
	retry retry.Config
}

// New constructs a changer with the default retry policy.
func New(apiClient api.Client) *Changer {
	return &Changer{api: apiClient, retry: retry.DefaultConfig()}
}

// Change runs the single linear path of the protocol. All derived key
// material is zeroed on every return path, success included; the active
// session's own master key is the caller's concern.
func (c *Changer) Change(ctx context.Context, sess *session.Session, oldPassword, newPassword string) (err error) {
	if newPassword == oldPassword {
		return ErrSamePassword
	}
	if len(newPassword) < MinPasswordLen {
		return ErrShortPassword
	}

	oldKeys, err := clientcrypto.DeriveKeys(oldPassword, sess.Email)
	if err != nil {
		return err
	}
	defer oldKeys.Clear()

	newKeys, err := clientcrypto.DeriveKeys(newPassword, sess.Email)
	if err != nil {
		return err
	}
	defer newKeys.Clear()

	// Fetch with the existing session token; no re-authentication.
	var env *api.VaultEnvelope
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var callErr error
		env, callErr = c.api.GetVault(ctx, sess.Token)
		return callErr
	})
	if err != nil {
		return err
	}
	if env == nil {
		return errs.New(errs.CodeVaultNotFound, "no vault to migrate")
	}

	// Decryption failure is fatal and aborts before any server mutation.
	vault := &model.UserVault{}
	if err := clientcrypto.DecryptObject(&env.EncryptedData, oldKeys.MasterKey, vault); err != nil {
		return err
	}

	payload, err := clientcrypto.EncryptObject(vault, newKeys.MasterKey)
	if err != nil {
		return err
	}

	oldHash := clientcrypto.HashAuthKey(oldKeys.AuthKey)
	newHash := clientcrypto.HashAuthKey(newKeys.AuthKey)
	vault.LastModified = time.Now()

	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.api.ChangePassword(ctx, sess.Token, oldHash, newHash, *payload, vault.LastModified)
	})
}
