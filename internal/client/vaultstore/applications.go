package vaultstore

import (
	"context"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

// ApplicationInput carries the caller-settable fields of an application.
type ApplicationInput struct {
	Company        string
	Role           string
	Status         model.ApplicationStatus
	JobDescription string
	JobURL         string
	MatchScore     int
	Analysis       string
	CoverLetter    string
	Notes          string
}

// Applications returns all tracked applications.
func (s *Store) Applications(ctx context.Context) ([]model.VaultApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]model.VaultApplication, len(s.vault.Applications))
	copy(out, s.vault.Applications)
	return out, nil
}

// CreateApplication appends an application and syncs.
func (s *Store) CreateApplication(ctx context.Context, in ApplicationInput) (model.VaultApplication, error) {
	if in.Status == "" {
		in.Status = model.StatusSaved
	}
	if !model.ValidStatus(in.Status) {
		return model.VaultApplication{}, errs.New(errs.CodeUnknown, "invalid application status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultApplication{}, err
	}
	now := s.now()
	app := model.VaultApplication{
		ID:             s.newID(),
		Company:        in.Company,
		Role:           in.Role,
		Status:         in.Status,
		JobDescription: in.JobDescription,
		JobURL:         in.JobURL,
		MatchScore:     in.MatchScore,
		Analysis:       in.Analysis,
		CoverLetter:    in.CoverLetter,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.vault.Applications = append(s.vault.Applications, app)
	if err := s.sync(ctx); err != nil {
		return model.VaultApplication{}, err
	}
	return app, nil
}

// ApplicationUpdate carries optional field changes; nil fields are untouched.
type ApplicationUpdate struct {
	Company        *string
	Role           *string
	Status         *model.ApplicationStatus
	JobDescription *string
	JobURL         *string
	MatchScore     *int
	Analysis       *string
	CoverLetter    *string
	Notes          *string
}

// UpdateApplication applies the changes and syncs. Moving into the applied
// status stamps AppliedAt once.
func (s *Store) UpdateApplication(ctx context.Context, id string, up ApplicationUpdate) (model.VaultApplication, error) {
	if up.Status != nil && !model.ValidStatus(*up.Status) {
		return model.VaultApplication{}, errs.New(errs.CodeUnknown, "invalid application status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.VaultApplication{}, err
	}
	i := s.findApplication(id)
	if i < 0 {
		return model.VaultApplication{}, errs.New(errs.CodeVaultNotFound, "application not found")
	}
	app := &s.vault.Applications[i]
	if up.Company != nil {
		app.Company = *up.Company
	}
	if up.Role != nil {
		app.Role = *up.Role
	}
	if up.Status != nil {
		if *up.Status == model.StatusApplied && app.AppliedAt == nil {
			t := s.now()
			app.AppliedAt = &t
		}
		app.Status = *up.Status
	}
	if up.JobDescription != nil {
		app.JobDescription = *up.JobDescription
	}
	if up.JobURL != nil {
		app.JobURL = *up.JobURL
	}
	if up.MatchScore != nil {
		app.MatchScore = *up.MatchScore
	}
	if up.Analysis != nil {
		app.Analysis = *up.Analysis
	}
	if up.CoverLetter != nil {
		app.CoverLetter = *up.CoverLetter
	}
	if up.Notes != nil {
		app.Notes = *up.Notes
	}
	app.UpdatedAt = s.now()
	if err := s.sync(ctx); err != nil {
		return model.VaultApplication{}, err
	}
	return *app, nil
}

// DeleteApplication removes an application and syncs.
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	i := s.findApplication(id)
	if i < 0 {
		return errs.New(errs.CodeVaultNotFound, "application not found")
	}
	s.vault.Applications = append(s.vault.Applications[:i], s.vault.Applications[i+1:]...)
	return s.sync(ctx)
}

func (s *Store) findApplication(id string) int {
	for i := range s.vault.Applications {
		if s.vault.Applications[i].ID == id {
			return i
		}
	}
	return -1
}
