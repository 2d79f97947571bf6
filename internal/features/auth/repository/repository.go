package repository

import (
	"context"
	"errors"
	"time"

	"contestlet-backend/internal/features/auth/models"
)

var ErrAttemptNotFound = errors.New("otp attempt not found")

// OtpRepository stores issued one-time codes. A new code for a phone
// supersedes any outstanding one; only the most recent unconsumed row is ever
// consulted on verify.
type OtpRepository interface {
	// InsertAttempt stores a freshly issued code and consumes any
	// outstanding row for the same phone.
	InsertAttempt(ctx context.Context, attempt *models.OtpAttempt) error
	// MostRecentUnconsumed returns the live attempt for a phone.
	MostRecentUnconsumed(ctx context.Context, phone string) (*models.OtpAttempt, error)
	// IncrementAttempts bumps the failed-verification counter and returns
	// the new count.
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	ConsumeAttempt(ctx context.Context, id int64) error
	// DeleteExpired clears rows whose expiry is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
