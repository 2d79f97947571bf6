package models

import (
	"time"

	usermodels "contestlet-backend/internal/features/user/models"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the decoded content of a bearer token. Tokens are self-contained;
// there is no server-side session store.
type Claims struct {
	UserID    int64           `json:"user_id"`
	Phone     string          `json:"phone"`
	Role      usermodels.Role `json:"role"`
	TokenType TokenType       `json:"token_type"`
	IssuedAt  time.Time       `json:"issued_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (c *Claims) IsAdmin() bool {
	return c.Role == usermodels.RoleAdmin
}

// OtpAttempt is one issued one-time code. The code is stored hashed and is
// single-use.
type OtpAttempt struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	CodeHash  string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Consumed  bool      `json:"consumed"`
	Attempts  int       `json:"attempts"`
}

func (a *OtpAttempt) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// RequestOtpInput is the POST /auth/request-otp body.
type RequestOtpInput struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyOtpInput is the POST /auth/verify-otp body.
type VerifyOtpInput struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,len=6"`
}

// TokenResponse is returned from a successful verification.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	UserID       int64  `json:"user_id"`
}
