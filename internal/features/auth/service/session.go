package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/platform/clock"
	usermodels "contestlet-backend/internal/features/user/models"
)

// SessionService mints and verifies the access/refresh token pair. Tokens are
// HS256 JWTs; the refresh token carries a distinct type claim and is only
// accepted by Refresh.
type SessionService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewSessionService(cfg *config.Config, clk clock.Clock) *SessionService {
	return &SessionService{
		secret:     []byte(cfg.Auth.JWTSecret),
		accessTTL:  cfg.Auth.AccessTokenTTL,
		refreshTTL: cfg.Auth.RefreshTokenTTL,
		clock:      clk,
	}
}

type sessionClaims struct {
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (s *SessionService) mint(userID int64, phone string, role usermodels.Role, tokenType models.TokenType, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := sessionClaims{
		Phone:     phone,
		Role:      string(role),
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Issue returns a fresh access/refresh pair for the user.
func (s *SessionService) Issue(user *usermodels.User) (*models.TokenResponse, error) {
	access, err := s.mint(user.ID, user.Phone, user.Role, models.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(user.ID, user.Phone, user.Role, models.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		UserID:       user.ID,
	}, nil
}

func (s *SessionService) parse(tokenString string) (*models.Claims, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.New(apperrors.ErrCodeExpiredToken, "token expired")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidToken, "invalid token")
	}
	if !token.Valid {
		return nil, apperrors.New(apperrors.ErrCodeInvalidToken, "invalid token")
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidToken, "invalid token subject")
	}

	out := &models.Claims{
		UserID:    userID,
		Phone:     claims.Phone,
		Role:      usermodels.Role(claims.Role),
		TokenType: models.TokenType(claims.TokenType),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Verify validates an access token and returns its claims.
func (s *SessionService) Verify(tokenString string) (*models.Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != models.TokenTypeAccess {
		return nil, apperrors.New(apperrors.ErrCodeWrongTokenType, "expected an access token")
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. The current role is
// re-read by the caller and passed in so role changes take effect on refresh.
func (s *SessionService) Refresh(refreshToken string, user *usermodels.User) (*models.TokenResponse, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != models.TokenTypeRefresh {
		return nil, apperrors.New(apperrors.ErrCodeWrongTokenType, "expected a refresh token")
	}
	if claims.UserID != user.ID {
		return nil, apperrors.New(apperrors.ErrCodeInvalidToken, "token does not belong to user")
	}
	return s.Issue(user)
}

// RefreshClaims parses a refresh token without minting, so callers can load
// the user it belongs to.
func (s *SessionService) RefreshClaims(refreshToken string) (*models.Claims, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != models.TokenTypeRefresh {
		return nil, apperrors.New(apperrors.ErrCodeWrongTokenType, "expected a refresh token")
	}
	return claims, nil
}
