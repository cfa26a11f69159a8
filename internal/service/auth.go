// Package service contains application services for authentication and vaults.
package service

import (
	"encoding/hex"
	"errors"
	"time"

	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/kseleznyov/careervault/internal/crypto"
	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/limiter"
	"github.com/kseleznyov/careervault/internal/model"
	"github.com/kseleznyov/careervault/internal/repository"
)

// AuthService defines account and session-token operations. The credential
// it receives is the client-derived auth-key hash, never a password.
type AuthService interface {
	// Register creates a new account for the auth-key hash.
	Register(ctx context.Context, email, authKeyHash string) (userID string, err error)
	// LoginWithIP applies rate-limiting, verifies the credential, and issues a token.
	LoginWithIP(ctx context.Context, email, authKeyHash, ip string) (token string, userID uuid.UUID, err error)
	// VerifyCredential checks the auth-key hash for an already authenticated user.
	VerifyCredential(ctx context.Context, userID uuid.UUID, authKeyHash string) error
	// ParseToken validates a bearer token and returns the subject user ID.
	ParseToken(token string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// decodeCredential validates the hex auth-key hash shape before hashing.
func decodeCredential(authKeyHash string) ([]byte, error) {
	b, err := hex.DecodeString(authKeyHash)
	if err != nil || len(b) == 0 {
		return nil, errors.New("malformed auth key hash")
	}
	return b, nil
}

// Register creates a new user record with a per-user salt. The stored hash
// is argon2id over the submitted credential.
func (s *AuthServiceImpl) Register(ctx context.Context, email, authKeyHash string) (string, error) {
	if email == "" || authKeyHash == "" {
		return "", errors.New("empty email/credential")
	}
	cred, err := decodeCredential(authKeyHash)
	if err != nil {
		return "", err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	saltAuth, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", err
	}
	u := &model.User{
		ID:       uid,
		Email:    email,
		AuthHash: pkgcrypto.HashCredential(cred, saltAuth),
		SaltAuth: saltAuth,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, authKeyHash, ip string) (string, uuid.UUID, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return "", uuid.Nil, err
	}
	if !allowed {
		return "", uuid.Nil, errs.ErrRateLimited
	}

	cred, credErr := decodeCredential(authKeyHash)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || credErr != nil || !pkgcrypto.VerifyCredential(cred, u.SaltAuth, u.AuthHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return "", uuid.Nil, errs.ErrRateLimited
		}
		// hide user existence on any mismatch
		return "", uuid.Nil, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, email, ipHash)

	token, _, err := s.issueAccessToken(u.ID)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, u.ID, nil
}

// VerifyCredential checks the submitted auth-key hash against the stored one.
func (s *AuthServiceImpl) VerifyCredential(ctx context.Context, userID uuid.UUID, authKeyHash string) error {
	cred, err := decodeCredential(authKeyHash)
	if err != nil {
		return errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errs.ErrUnauthorized
	}
	if !pkgcrypto.VerifyCredential(cred, u.SaltAuth, u.AuthHash) {
		return errs.ErrUnauthorized
	}
	return nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseToken validates signature and expiry and extracts the user ID.
func (s *AuthServiceImpl) ParseToken(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return uid, nil
}
