package repository

import (
	"context"
	"errors"

	"contestlet-backend/internal/features/user/models"
)

var (
	ErrDuplicatePhone          = errors.New("phone number already registered")
	ErrSponsorProfileNotFound  = errors.New("sponsor profile not found")
	ErrDuplicateSponsorProfile = errors.New("sponsor profile already exists")
)

// UserRepository is the persistence boundary for users, sponsor profiles and
// role audits.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	MarkVerified(ctx context.Context, id int64) error

	// AssignRole changes the user's role and appends the audit row in one
	// transaction.
	AssignRole(ctx context.Context, userID int64, role models.Role, audit *models.RoleAudit) error
	ListRoleAudits(ctx context.Context, userID int64) ([]models.RoleAudit, error)

	CreateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error
	GetSponsorProfile(ctx context.Context, id int64) (*models.SponsorProfile, error)
	GetSponsorProfileByUser(ctx context.Context, userID int64) (*models.SponsorProfile, error)
	UpdateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error
}
