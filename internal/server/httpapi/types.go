package httpapi

import (
	"time"

	"github.com/kseleznyov/careervault/internal/model"
)

type registerRequest struct {
	Email       string `json:"email"`
	AuthKeyHash string `json:"authKeyHash"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type loginRequest struct {
	Email       string `json:"email"`
	AuthKeyHash string `json:"authKeyHash"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// vaultEnvelope is the wire form of a stored vault. Version is the
// optimistic-concurrency token the client must echo back on PUT.
type vaultEnvelope struct {
	EncryptedData   model.EncryptedPayload `json:"encryptedData"`
	Version         int64                  `json:"version"`
	LastModified    time.Time              `json:"lastModified"`
	ServerUpdatedAt time.Time              `json:"serverUpdatedAt"`
}

type getVaultResponse struct {
	Vault *vaultEnvelope `json:"vault"`
}

type putVaultRequest struct {
	EncryptedData model.EncryptedPayload `json:"encryptedData"`
	LastModified  time.Time              `json:"lastModified"`
	BaseVersion   int64                  `json:"baseVersion"`
}

type putVaultResponse struct {
	Version         int64     `json:"version"`
	ServerUpdatedAt time.Time `json:"serverUpdatedAt"`
}

type changePasswordRequest struct {
	OldAuthKeyHash string                 `json:"oldAuthKeyHash"`
	NewAuthKeyHash string                 `json:"newAuthKeyHash"`
	EncryptedData  model.EncryptedPayload `json:"encryptedData"`
	LastModified   time.Time              `json:"lastModified"`
}

type errorResponse struct {
	Error string `json:"error"`
}
