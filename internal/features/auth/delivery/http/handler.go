package http

import (
	"github.com/gin-gonic/gin"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/middleware"
	"contestlet-backend/internal/common/response"
	"contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/auth/service"
)

type Handler struct {
	otp *service.OtpService
}

func NewHandler(otp *service.OtpService) *Handler {
	return &Handler{otp: otp}
}

// RegisterRoutes mounts the auth endpoints. request-otp and verify-otp are
// public; me and logout require a bearer token.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/request-otp", h.requestOtp)
		auth.POST("/verify-otp", h.verifyOtp)
		auth.POST("/refresh", h.refresh)
		auth.GET("/me", middleware.RequireAuth(), h.me)
		auth.POST("/logout", middleware.RequireAuth(), h.logout)
	}
}

func (h *Handler) requestOtp(c *gin.Context) {
	var input models.RequestOtpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	if err := h.otp.Request(c.Request.Context(), input); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

func (h *Handler) verifyOtp(c *gin.Context) {
	var input models.VerifyOtpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "phone and 6-digit code are required"))
		return
	}

	tokens, err := h.otp.Verify(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokens)
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) refresh(c *gin.Context) {
	var input refreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "refresh_token is required"))
		return
	}

	tokens, err := h.otp.RefreshSession(c.Request.Context(), input.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokens)
}

func (h *Handler) me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Error(c, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required"))
		return
	}
	response.OK(c, claims)
}

func (h *Handler) logout(c *gin.Context) {
	// Tokens are stateless; the client discards them. The endpoint exists so
	// clients have a uniform logout call.
	response.OKWithMessage(c, nil, "logged out")
}
