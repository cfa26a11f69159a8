// Package vaultstore is the encrypted storage adapter: the sole mutator of
// the in-memory vault. Every mutation applies to the cached document and
// syncs before returning; reads never touch the network after the first
// load.
package vaultstore

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kseleznyov/careervault/internal/client/session"
	"github.com/kseleznyov/careervault/internal/client/vaultsync"
	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

// TextExtractor is the external collaborator that turns an uploaded binary
// document into text content (AI-backed in the product). Failures are
// reported verbatim and leave the vault untouched.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Store caches the decrypted vault for one session and serializes
// load-mutate-sync cycles behind a mutex so concurrent callers cannot lose
// updates within this process.
type Store struct {
	mu        sync.Mutex
	engine    *vaultsync.Engine
	sess      *session.Session
	extractor TextExtractor

	vault   *model.UserVault
	version int64
	loaded  bool

	now   func() time.Time
	newID func() string
}

// New constructs a store bound to a session.
func New(engine *vaultsync.Engine, sess *session.Session, extractor TextExtractor) *Store {
	return &Store{
		engine:    engine,
		sess:      sess,
		extractor: extractor,
		now:       time.Now,
		newID:     func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

// ensureLoaded loads the vault once per store lifetime. Callers hold mu.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	res, err := s.engine.Load(ctx, s.sess)
	if err != nil {
		return err
	}
	s.vault = res.Vault
	s.version = res.Version
	s.loaded = true
	return nil
}

// sync pushes the cached vault and advances the version token. Callers hold mu.
func (s *Store) sync(ctx context.Context) error {
	res, err := s.engine.Save(ctx, s.sess, s.vault, s.version)
	if err != nil {
		return err
	}
	s.version = res.Version
	return nil
}

// Reload discards the cache and refetches, e.g. after a sync conflict.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return s.ensureLoaded(ctx)
}

// Version returns the last seen server version token.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// --- Profile ---

// Profile returns the vault profile.
func (s *Store) Profile(ctx context.Context) (model.VaultProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultProfile{}, err
	}
	return s.vault.Profile, nil
}

// SaveProfile replaces the profile and syncs.
func (s *Store) SaveProfile(ctx context.Context, p model.VaultProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.vault.Profile = p
	return s.sync(ctx)
}

// --- Documents ---

// DocumentInput carries the caller-settable fields of a document.
type DocumentInput struct {
	Type     model.DocumentType
	Name     string
	Content  string
	Data     []byte
	MimeType string
	IsActive bool
}

// Documents returns all documents in vault order.
func (s *Store) Documents(ctx context.Context) ([]model.VaultDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]model.VaultDocument, len(s.vault.Documents))
	copy(out, s.vault.Documents)
	return out, nil
}

// Document returns one document by ID.
func (s *Store) Document(ctx context.Context, id string) (model.VaultDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	i := s.findDocument(id)
	if i < 0 {
		return model.VaultDocument{}, errs.New(errs.CodeVaultNotFound, "document not found")
	}
	return s.vault.Documents[i], nil
}

// CreateDocument appends a document and syncs. If IsActive is set on a cv,
// all other cv documents are deactivated first.
func (s *Store) CreateDocument(ctx context.Context, in DocumentInput) (model.VaultDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	now := s.now()
	doc := model.VaultDocument{
		ID:        s.newID(),
		Type:      in.Type,
		Name:      in.Name,
		Content:   in.Content,
		MimeType:  in.MimeType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(in.Data) > 0 {
		doc.Data = base64.StdEncoding.EncodeToString(in.Data)
	}
	if in.IsActive && in.Type == model.DocumentCV {
		s.deactivateCVs()
		doc.IsActive = true
	}
	s.vault.Documents = append(s.vault.Documents, doc)
	if err := s.sync(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	return doc, nil
}

// DocumentUpdate carries optional field changes; nil fields are untouched.
type DocumentUpdate struct {
	Name     *string
	Content  *string
	Data     []byte
	MimeType *string
	IsActive *bool
}

// UpdateDocument applies the changes and syncs, keeping the single-active
// invariant when IsActive becomes true.
func (s *Store) UpdateDocument(ctx context.Context, id string, up DocumentUpdate) (model.VaultDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	i := s.findDocument(id)
	if i < 0 {
		return model.VaultDocument{}, errs.New(errs.CodeVaultNotFound, "document not found")
	}
	doc := &s.vault.Documents[i]
	if up.Name != nil {
		doc.Name = *up.Name
	}
	if up.Content != nil {
		doc.Content = *up.Content
	}
	if len(up.Data) > 0 {
		doc.Data = base64.StdEncoding.EncodeToString(up.Data)
	}
	if up.MimeType != nil {
		doc.MimeType = *up.MimeType
	}
	if up.IsActive != nil {
		if *up.IsActive && doc.Type == model.DocumentCV {
			s.deactivateCVs()
			doc.IsActive = true
		} else if !*up.IsActive {
			doc.IsActive = false
		}
	}
	doc.UpdatedAt = s.now()
	if err := s.sync(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	return *doc, nil
}

// DeleteDocument removes a document and syncs. Deleting the active CV does
// not promote another document: the set may be left with no active CV and
// SetActiveCV is the only promotion path.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	i := s.findDocument(id)
	if i < 0 {
		return errs.New(errs.CodeVaultNotFound, "document not found")
	}
	s.vault.Documents = append(s.vault.Documents[:i], s.vault.Documents[i+1:]...)
	return s.sync(ctx)
}

// SetActiveCV marks the given cv document active and deactivates the rest.
// Idempotent: repeating the call yields the same state.
func (s *Store) SetActiveCV(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	i := s.findDocument(id)
	if i < 0 || s.vault.Documents[i].Type != model.DocumentCV {
		return errs.New(errs.CodeVaultNotFound, "cv document not found")
	}
	s.deactivateCVs()
	s.vault.Documents[i].IsActive = true
	s.vault.Documents[i].UpdatedAt = s.now()
	return s.sync(ctx)
}

// ActiveCV returns the active cv document, or CodeVaultNotFound when none.
func (s *Store) ActiveCV(ctx context.Context) (model.VaultDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultDocument{}, err
	}
	for _, d := range s.vault.Documents {
		if d.Type == model.DocumentCV && d.IsActive {
			return d, nil
		}
	}
	return model.VaultDocument{}, errs.New(errs.CodeVaultNotFound, "no active cv")
}

// StoredCVs returns all cv documents in the domain-facing shape.
func (s *Store) StoredCVs(ctx context.Context) ([]model.StoredCV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return model.ToStoredCVs(s.vault.Documents), nil
}

// UploadCV extracts text from the binary via the collaborator, then creates
// the document with both content and original payload. Extraction failure
// returns before the vault is touched.
func (s *Store) UploadCV(ctx context.Context, name string, data []byte, mimeType string) (model.VaultDocument, error) {
	content, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return model.VaultDocument{}, err
	}
	return s.CreateDocument(ctx, DocumentInput{
		Type:     model.DocumentCV,
		Name:     name,
		Content:  content,
		Data:     data,
		MimeType: mimeType,
	})
}

// deactivateCVs clears IsActive on every cv document. Callers hold mu.
func (s *Store) deactivateCVs() {
	for i := range s.vault.Documents {
		if s.vault.Documents[i].Type == model.DocumentCV {
			s.vault.Documents[i].IsActive = false
		}
	}
}

func (s *Store) findDocument(id string) int {
	for i := range s.vault.Documents {
		if s.vault.Documents[i].ID == id {
			return i
		}
	}
	return -1
}
