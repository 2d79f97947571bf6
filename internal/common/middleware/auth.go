package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/response"
	authmodels "contestlet-backend/internal/features/auth/models"
)

const claimsKey = "claims"

// TokenVerifier validates a bearer token into session claims.
type TokenVerifier interface {
	Verify(token string) (*authmodels.Claims, error)
}

func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}

// Authenticate parses a Bearer token when present and stores the claims on
// the context. It does not reject unauthenticated requests; pair it with
// RequireAuth or RequireAdmin on protected groups.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			response.Error(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Authorization header must use the Bearer scheme"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); !ok {
			response.Error(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Authentication required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.Error(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Authentication required"))
			c.Abort()
			return
		}
		if !claims.IsAdmin() {
			response.Error(c, apperrors.New(apperrors.ErrCodeForbidden, "Admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetClaims returns the authenticated session claims, if any.
func GetClaims(c *gin.Context) (*authmodels.Claims, bool) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*authmodels.Claims)
	return claims, ok
}
