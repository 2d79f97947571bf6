package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"contestlet-backend/internal/features/user/models"
	"contestlet-backend/internal/features/user/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.UserRepository {
	return &postgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

const userColumns = `id, phone, role, is_verified, full_name, email, bio,
	date_of_birth, timezone, timezone_auto_detect, created_at,
	role_assigned_at, role_assigned_by`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var fullName, email, bio, timezone sql.NullString
	err := row.Scan(&u.ID, &u.Phone, &u.Role, &u.IsVerified, &fullName, &email,
		&bio, &u.DateOfBirth, &timezone, &u.TimezoneAuto, &u.CreatedAt,
		&u.RoleAssignedAt, &u.RoleAssignedBy)
	if err != nil {
		return nil, err
	}
	u.FullName = fullName.String
	u.Email = email.String
	u.Bio = bio.String
	u.Timezone = timezone.String
	return &u, nil
}

func (r *postgresRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (phone, role, is_verified, full_name, email, bio,
			date_of_birth, timezone, timezone_auto_detect, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Phone, user.Role, user.IsVerified, user.FullName, user.Email,
		user.Bio, user.DateOfBirth, user.Timezone, user.TimezoneAuto,
		user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns), id)
	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM users WHERE phone = $1", userColumns), phone)
	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET full_name = $2, email = $3, bio = $4,
			date_of_birth = $5, timezone = $6, timezone_auto_detect = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.FullName, user.Email, user.Bio, user.DateOfBirth,
		user.Timezone, user.TimezoneAuto)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) MarkVerified(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_verified = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) AssignRole(ctx context.Context, userID int64, role models.Role, audit *models.RoleAudit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET role = $2, role_assigned_at = $3, role_assigned_by = $4
		WHERE id = $1`,
		userID, role, audit.CreatedAt, audit.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrUserNotFound
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO role_audits (user_id, old_role, new_role, changed_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		audit.UserID, audit.OldRole, audit.NewRole, audit.ChangedBy,
		audit.Reason, audit.CreatedAt).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("failed to insert role audit: %w", err)
	}

	return tx.Commit()
}

func (r *postgresRepository) ListRoleAudits(ctx context.Context, userID int64) ([]models.RoleAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, old_role, new_role, changed_by, reason, created_at
		FROM role_audits WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role audits: %w", err)
	}
	defer rows.Close()

	var audits []models.RoleAudit
	for rows.Next() {
		var a models.RoleAudit
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.OldRole, &a.NewRole,
			&a.ChangedBy, &reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Reason = reason.String
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

const sponsorColumns = `id, user_id, company_name, website_url, logo_url,
	contact_email, contact_phone, industry, description, is_verified, created_at`

func scanSponsorProfile(row interface{ Scan(...interface{}) error }) (*models.SponsorProfile, error) {
	var p models.SponsorProfile
	var website, logo, email, phone, industry, description sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.CompanyName, &website, &logo, &email,
		&phone, &industry, &description, &p.IsVerified, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.WebsiteURL = website.String
	p.LogoURL = logo.String
	p.ContactEmail = email.String
	p.ContactPhone = phone.String
	p.Industry = industry.String
	p.Description = description.String
	return &p, nil
}

func (r *postgresRepository) CreateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error {
	query := `
		INSERT INTO sponsor_profiles (user_id, company_name, website_url, logo_url,
			contact_email, contact_phone, industry, description, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		profile.UserID, profile.CompanyName, profile.WebsiteURL, profile.LogoURL,
		profile.ContactEmail, profile.ContactPhone, profile.Industry,
		profile.Description, profile.IsVerified, profile.CreatedAt).Scan(&profile.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateSponsorProfile
		}
		return fmt.Errorf("failed to create sponsor profile: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetSponsorProfile(ctx context.Context, id int64) (*models.SponsorProfile, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM sponsor_profiles WHERE id = $1", sponsorColumns), id)
	profile, err := scanSponsorProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrSponsorProfileNotFound
		}
		return nil, fmt.Errorf("failed to get sponsor profile: %w", err)
	}
	return profile, nil
}

func (r *postgresRepository) GetSponsorProfileByUser(ctx context.Context, userID int64) (*models.SponsorProfile, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM sponsor_profiles WHERE user_id = $1", sponsorColumns), userID)
	profile, err := scanSponsorProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrSponsorProfileNotFound
		}
		return nil, fmt.Errorf("failed to get sponsor profile by user: %w", err)
	}
	return profile, nil
}

func (r *postgresRepository) UpdateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error {
	query := `
		UPDATE sponsor_profiles SET company_name = $2, website_url = $3,
			logo_url = $4, contact_email = $5, contact_phone = $6,
			industry = $7, description = $8, is_verified = $9
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.CompanyName, profile.WebsiteURL, profile.LogoURL,
		profile.ContactEmail, profile.ContactPhone, profile.Industry,
		profile.Description, profile.IsVerified)
	if err != nil {
		return fmt.Errorf("failed to update sponsor profile: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrSponsorProfileNotFound
	}
	return nil
}
