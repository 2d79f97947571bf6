package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/auth/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.OtpRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) InsertAttempt(ctx context.Context, attempt *models.OtpAttempt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE otp_attempts SET consumed = TRUE WHERE phone = $1 AND NOT consumed",
		attempt.Phone); err != nil {
		return fmt.Errorf("failed to supersede otp attempts: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_attempts (phone, code_hash, issued_at, expires_at, consumed, attempts)
		VALUES ($1, $2, $3, $4, FALSE, 0)
		RETURNING id`,
		attempt.Phone, attempt.CodeHash, attempt.IssuedAt, attempt.ExpiresAt).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert otp attempt: %w", err)
	}

	return tx.Commit()
}

func (r *postgresRepository) MostRecentUnconsumed(ctx context.Context, phone string) (*models.OtpAttempt, error) {
	var a models.OtpAttempt
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, code_hash, issued_at, expires_at, consumed, attempts
		FROM otp_attempts
		WHERE phone = $1 AND NOT consumed
		ORDER BY issued_at DESC
		LIMIT 1`, phone).Scan(
		&a.ID, &a.Phone, &a.CodeHash, &a.IssuedAt, &a.ExpiresAt, &a.Consumed, &a.Attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get otp attempt: %w", err)
	}
	return &a, nil
}

func (r *postgresRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		"UPDATE otp_attempts SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts",
		id).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, repository.ErrAttemptNotFound
		}
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return attempts, nil
}

func (r *postgresRepository) ConsumeAttempt(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE otp_attempts SET consumed = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to consume otp attempt: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrAttemptNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM otp_attempts WHERE expires_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otp attempts: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
