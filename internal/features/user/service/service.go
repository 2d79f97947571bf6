package service

import (
	"context"

	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/user/models"
	"contestlet-backend/internal/features/user/repository"
	"contestlet-backend/internal/platform/clock"
)

// Service handles user profiles, sponsor profiles and timezone preferences.
type Service struct {
	cfg   *config.Config
	repo  repository.UserRepository
	clock clock.Clock
}

func NewService(cfg *config.Config, repo repository.UserRepository, clk clock.Clock) *Service {
	return &Service{cfg: cfg, repo: repo, clock: clk}
}

func (s *Service) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if err == models.ErrUserNotFound {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of the patch. Phone is immutable.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch models.ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Timezone != nil {
		if !s.TimezoneSupported(*patch.Timezone) {
			return nil, apperrors.New(apperrors.ErrCodeValidation, "unsupported timezone").
				WithDetail("timezone", *patch.Timezone)
		}
		user.Timezone = *patch.Timezone
		user.TimezoneAuto = false
	}
	if patch.TimezoneAuto != nil {
		user.TimezoneAuto = *patch.TimezoneAuto
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update profile")
	}
	return user, nil
}

// SupportedTimezones returns the configured IANA list.
func (s *Service) SupportedTimezones() []string {
	return s.cfg.SupportedTimezones
}

func (s *Service) TimezoneSupported(tz string) bool {
	for _, supported := range s.cfg.SupportedTimezones {
		if supported == tz {
			return true
		}
	}
	return false
}

// SponsorProfileFor returns the sponsor profile of a user.
func (s *Service) SponsorProfileFor(ctx context.Context, userID int64) (*models.SponsorProfile, error) {
	profile, err := s.repo.GetSponsorProfileByUser(ctx, userID)
	if err != nil {
		if err == repository.ErrSponsorProfileNotFound {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "sponsor profile not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load sponsor profile")
	}
	return profile, nil
}

// CreateSponsorProfile registers a sponsor profile for the user and promotes
// them to the sponsor role with an audit row.
func (s *Service) CreateSponsorProfile(ctx context.Context, userID int64, profile *models.SponsorProfile) (*models.SponsorProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.UserID = userID
	profile.CreatedAt = s.clock.Now()
	if profile.CompanyName == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "company_name is required")
	}

	if err := s.repo.CreateSponsorProfile(ctx, profile); err != nil {
		if err == repository.ErrDuplicateSponsorProfile {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "sponsor profile already exists")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create sponsor profile")
	}

	if user.Role == models.RoleUser {
		audit := &models.RoleAudit{
			UserID:    userID,
			OldRole:   user.Role,
			NewRole:   models.RoleSponsor,
			ChangedBy: userID,
			Reason:    "sponsor profile created",
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.AssignRole(ctx, userID, models.RoleSponsor, audit); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to assign sponsor role")
		}
	}

	return profile, nil
}
