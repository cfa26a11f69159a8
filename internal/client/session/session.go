// Package session manages authentication and the lifetime of the in-memory
// master key. The key exists only inside an open Session and is zeroed on
// Close; durable storage holds the bearer token, and a separate
// session-scoped store holds the exported key.
package session

import (
	"context"
	"time"

	"github.com/kseleznyov/careervault/internal/client/api"
	"github.com/kseleznyov/careervault/internal/client/state"
	"github.com/kseleznyov/careervault/internal/crypto/clientcrypto"
	"github.com/kseleznyov/careervault/internal/errs"
)

// TokenStore is the durable side of session persistence.
type TokenStore interface {
	SaveCredentials(c state.Credentials) error
	LoadCredentials() (*state.Credentials, error)
	DeleteCredentials() error
}

// KeyStore is the session-scoped store for the exported master key.
type KeyStore interface {
	Save(export string) error
	Load() (string, error)
	Delete() error
}

// Session is the exclusively-owned handle to an authenticated session.
// The master key is reachable only through it and dies with Close.
type Session struct {
	Email  string
	UserID string
	Token  string

	masterKey []byte
	closed    bool
}

// MasterKey returns the raw key for cryptographic use. Callers must not
// retain the slice beyond the session's lifetime.
func (s *Session) MasterKey() []byte { return s.masterKey }

// Closed reports whether the key has been destroyed.
func (s *Session) Closed() bool { return s.closed }

// Close zeroes the master key. Idempotent; guaranteed to run on logout and
// on every failed login path.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	clientcrypto.ClearKey(s.masterKey)
	s.masterKey = nil
	s.closed = true
}

// Manager drives register/login/logout/restore against the server.
type Manager struct {
	api    api.Client
	tokens TokenStore
	keys   KeyStore
}

// NewManager constructs a session manager.
func NewManager(apiClient api.Client, tokens TokenStore, keys KeyStore) *Manager {
	return &Manager{api: apiClient, tokens: tokens, keys: keys}
}

// Register creates the account and immediately performs the login flow.
// Only the auth-key hash ever leaves the derivation step.
func (m *Manager) Register(ctx context.Context, email, password string) (*Session, error) {
	ks, err := clientcrypto.DeriveKeys(password, email)
	if err != nil {
		return nil, err
	}
	authHash := clientcrypto.HashAuthKey(ks.AuthKey)
	ks.Clear()

	if _, err := m.api.Register(ctx, email, authHash); err != nil {
		return nil, err
	}
	return m.Login(ctx, email, password)
}

// Login derives keys, authenticates, and commits session state only after
// the full chain succeeds: no partial token-without-key states.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	ks, err := clientcrypto.DeriveKeys(password, email)
	if err != nil {
		return nil, err
	}
	authHash := clientcrypto.HashAuthKey(ks.AuthKey)
	clientcrypto.ClearKey(ks.AuthKey)

	res, err := m.api.Login(ctx, email, authHash)
	if err != nil {
		ks.Clear()
		return nil, err
	}

	sess := &Session{
		Email:     email,
		UserID:    res.UserID,
		Token:     res.Token,
		masterKey: ks.MasterKey,
	}

	// Key export first, then token: a failure between the two leaves no
	// token pointing at a missing key.
	if err := m.keys.Save(clientcrypto.ExportKey(sess.masterKey)); err != nil {
		sess.Close()
		return nil, err
	}
	cred := state.Credentials{Token: res.Token, Email: email, UserID: res.UserID, Saved: time.Now()}
	if err := m.tokens.SaveCredentials(cred); err != nil {
		_ = m.keys.Delete()
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// Logout destroys the key and clears both stores.
func (m *Manager) Logout(ctx context.Context, sess *Session) error {
	sess.Close()
	if err := m.keys.Delete(); err != nil {
		return err
	}
	return m.tokens.DeleteCredentials()
}

// Restore rebuilds a session from persisted state on app start. A token
// without a key export requires re-authentication: the master key is never
// reconstructible from the durable token alone.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	cred, err := m.tokens.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errs.New(errs.CodeUnauthorized, "no saved session")
	}

	export, err := m.keys.Load()
	if err != nil {
		return nil, err
	}
	if export == "" {
		return nil, errs.New(errs.CodeUnauthorized, "session key expired; password required")
	}

	if err := m.api.ValidateToken(ctx, cred.Token); err != nil {
		switch errs.CodeOf(err) {
		case errs.CodeUnauthorized, errs.CodeSessionExpired:
			_ = m.keys.Delete()
			_ = m.tokens.DeleteCredentials()
			return nil, errs.Wrap(errs.CodeSessionExpired, err)
		}
		return nil, err
	}

	key, err := clientcrypto.ImportKey(export)
	if err != nil {
		return nil, err
	}
	return &Session{
		Email:     cred.Email,
		UserID:    cred.UserID,
		Token:     cred.Token,
		masterKey: key,
	}, nil
}
