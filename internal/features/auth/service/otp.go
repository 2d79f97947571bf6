package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/logger"
	"contestlet-backend/internal/common/ratelimit"
	"contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/auth/repository"
	usermodels "contestlet-backend/internal/features/user/models"
	userrepo "contestlet-backend/internal/features/user/repository"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/sms"
)

// OtpService implements the phone verification flow: request issues a
// six-digit code over SMS, verify exchanges it for a token pair. Codes are
// stored hashed and live for a short TTL; both endpoints are rate limited per
// phone.
type OtpService struct {
	cfg      *config.Config
	otps     repository.OtpRepository
	users    userrepo.UserRepository
	sessions *SessionService
	limiter  ratelimit.Limiter
	gateway  sms.Gateway
	clock    clock.Clock
	random   clock.Random
}

func NewOtpService(
	cfg *config.Config,
	otps repository.OtpRepository,
	users userrepo.UserRepository,
	sessions *SessionService,
	limiter ratelimit.Limiter,
	gateway sms.Gateway,
	clk clock.Clock,
	random clock.Random,
) *OtpService {
	return &OtpService{
		cfg:      cfg,
		otps:     otps,
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		gateway:  gateway,
		clock:    clk,
		random:   random,
	}
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (s *OtpService) checkLimit(ctx context.Context, kind, phone string, limit int) error {
	key := fmt.Sprintf("otp:%s:%s", kind, phone)
	allowed, retryAfter, err := s.limiter.Allow(ctx, key, limit, s.cfg.Auth.OtpRateWindow)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "rate limiter failure")
	}
	if !allowed {
		return apperrors.New(apperrors.ErrCodeRateLimited, "too many attempts, slow down").
			WithDetail("retry_after_seconds", int(retryAfter.Seconds()))
	}
	return nil
}

// Request issues a new code for the phone, superseding any outstanding one.
// The code leaves only over SMS; it is never part of the return value.
func (s *OtpService) Request(ctx context.Context, input models.RequestOtpInput) error {
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return err
	}

	if err := s.checkLimit(ctx, "request", phone, s.cfg.Auth.OtpRequestLimit); err != nil {
		return err
	}

	code := fmt.Sprintf("%06d", s.random.Intn(1000000))
	now := s.clock.Now()
	attempt := &models.OtpAttempt{
		Phone:     phone,
		CodeHash:  hashCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.Auth.OtpTTL),
	}
	if err := s.otps.InsertAttempt(ctx, attempt); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to store verification code")
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.Auth.OtpTTL.Minutes()))
	providerID, err := s.gateway.Send(ctx, phone, body)
	if err != nil {
		if sms.IsPermanent(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidPhone, "phone number rejected by carrier")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "sms delivery failed")
	}

	logger.Info().
		Str("phone", phone).
		Str("provider_id", providerID).
		Msg("verification code sent")
	return nil
}

// Verify checks the submitted code and, on success, returns a token pair for
// the (possibly just created) user. Codes are single use; a wrong guess past
// the attempt cap burns the code.
func (s *OtpService) Verify(ctx context.Context, input models.VerifyOtpInput) (*models.TokenResponse, error) {
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	if err := s.checkLimit(ctx, "verify", phone, s.cfg.Auth.OtpVerifyLimit); err != nil {
		return nil, err
	}

	attempt, err := s.otps.MostRecentUnconsumed(ctx, phone)
	if err != nil {
		if err == repository.ErrAttemptNotFound {
			return nil, apperrors.New(apperrors.ErrCodeInvalidOtp, "no verification code outstanding")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load verification code")
	}

	if attempt.Expired(s.clock.Now()) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidOtp, "verification code expired")
	}

	submitted := hashCode(input.Code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(attempt.CodeHash)) != 1 {
		attempts, incErr := s.otps.IncrementAttempts(ctx, attempt.ID)
		if incErr != nil {
			return nil, apperrors.Wrap(incErr, apperrors.ErrCodeInternal, "failed to record attempt")
		}
		if attempts > s.cfg.Auth.OtpMaxAttempts {
			if err := s.otps.ConsumeAttempt(ctx, attempt.ID); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to burn verification code")
			}
		}
		return nil, apperrors.New(apperrors.ErrCodeInvalidOtp, "wrong verification code")
	}

	if err := s.otps.ConsumeAttempt(ctx, attempt.ID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to consume verification code")
	}

	user, err := s.resolveUser(ctx, phone)
	if err != nil {
		return nil, err
	}

	return s.sessions.Issue(user)
}

// resolveUser loads or creates the user for a verified phone and applies the
// admin allowlist.
func (s *OtpService) resolveUser(ctx context.Context, phone string) (*usermodels.User, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err == usermodels.ErrUserNotFound {
		user = &usermodels.User{
			Phone:        phone,
			Role:         usermodels.RoleUser,
			IsVerified:   true,
			TimezoneAuto: true,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			if err == userrepo.ErrDuplicatePhone {
				// Lost a create race; the row exists now.
				user, err = s.users.GetByPhone(ctx, phone)
				if err != nil {
					return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
				}
			} else {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create user")
			}
		}
	} else if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
	}

	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to mark user verified")
		}
		user.IsVerified = true
	}

	if s.cfg.IsAdminPhone(user.Phone) && user.Role != usermodels.RoleAdmin {
		audit := &usermodels.RoleAudit{
			UserID:    user.ID,
			OldRole:   user.Role,
			NewRole:   usermodels.RoleAdmin,
			ChangedBy: user.ID,
			Reason:    "admin phone allowlist",
			CreatedAt: s.clock.Now(),
		}
		if err := s.users.AssignRole(ctx, user.ID, usermodels.RoleAdmin, audit); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to promote admin")
		}
		user.Role = usermodels.RoleAdmin
		logger.Info().Int64("user_id", user.ID).Msg("allowlisted phone promoted to admin")
	}

	return user, nil
}

// RefreshSession exchanges a refresh token for a fresh pair, re-reading the
// user so role changes take effect.
func (s *OtpService) RefreshSession(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.sessions.RefreshClaims(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if err == usermodels.ErrUserNotFound {
			return nil, apperrors.New(apperrors.ErrCodeInvalidToken, "user no longer exists")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
	}
	return s.sessions.Issue(user)
}
