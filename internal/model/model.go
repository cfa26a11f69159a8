// Package model defines the vault document model shared by the client core
// and the server, plus server-side entities.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// DocumentType distinguishes CVs from other stored documents.
type DocumentType string

const (
	DocumentCV    DocumentType = "cv"
	DocumentOther DocumentType = "other"
)

// ApplicationStatus is the pipeline stage of a job application.
type ApplicationStatus string

const (
	StatusSaved        ApplicationStatus = "saved"
	StatusApplied      ApplicationStatus = "applied"
	StatusInterviewing ApplicationStatus = "interviewing"
	StatusOffer        ApplicationStatus = "offer"
	StatusRejected     ApplicationStatus = "rejected"
)

// ValidStatus reports whether s is a known application status.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusSaved, StatusApplied, StatusInterviewing, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// VaultProfile holds the user's profile inside the vault.
type VaultProfile struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone,omitempty"`
	Location string   `json:"location,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Skills   []string `json:"skills,omitempty"`
	Avatar   string   `json:"avatar,omitempty"`
}

// VaultDocument is a CV or other document stored inside the vault. Binary
// payloads are base64 text so the whole vault stays JSON-serializable prior
// to encryption.
type VaultDocument struct {
	ID        string       `json:"id"`
	Type      DocumentType `json:"type"`
	Name      string       `json:"name"`
	Content   string       `json:"content"`
	Data      string       `json:"data,omitempty"`
	MimeType  string       `json:"mimeType,omitempty"`
	IsActive  bool         `json:"isActive,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// VaultApplication is a tracked job application inside the vault.
type VaultApplication struct {
	ID             string            `json:"id"`
	Company        string            `json:"company"`
	Role           string            `json:"role"`
	Status         ApplicationStatus `json:"status"`
	JobDescription string            `json:"jobDescription,omitempty"`
	JobURL         string            `json:"jobUrl,omitempty"`
	MatchScore     int               `json:"matchScore,omitempty"`
	Analysis       string            `json:"analysis,omitempty"`
	CoverLetter    string            `json:"coverLetter,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	AppliedAt      *time.Time        `json:"appliedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// UserVault is the single encrypted document holding all of a user's data.
// LastModified is stamped by the storage adapter before every save.
type UserVault struct {
	Profile      VaultProfile       `json:"profile"`
	Documents    []VaultDocument    `json:"documents"`
	Applications []VaultApplication `json:"applications"`
	LastModified time.Time          `json:"lastModified"`
}

// NewEmptyVault returns a vault with empty collections and LastModified set.
func NewEmptyVault(now time.Time) *UserVault {
	return &UserVault{
		Documents:    []VaultDocument{},
		Applications: []VaultApplication{},
		LastModified: now,
	}
}

// EncryptedPayload is ciphertext plus the parameters needed to decrypt it
// given the master key. The server persists it opaquely.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Alg        string `json:"alg"`
}

// VaultRecord is the server-side row for a user's vault: the opaque payload
// plus versioning metadata. Version is the optimistic-concurrency token;
// ServerUpdatedAt is authoritative for conflict comparison.
type VaultRecord struct {
	UserID          uuid.UUID
	Payload         EncryptedPayload
	Version         int64
	LastModified    time.Time
	ServerUpdatedAt time.Time
}

// User represents an account stored on the server. The server only ever
// sees the hash of the client-derived auth key, never a password or key.
type User struct {
	ID        uuid.UUID
	Email     string
	AuthHash  []byte
	SaltAuth  []byte
	CreatedAt time.Time
}
