package http

import (
	"time"

	"github.com/gin-gonic/gin"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/middleware"
	"contestlet-backend/internal/common/response"
	"contestlet-backend/internal/features/user/models"
	"contestlet-backend/internal/features/user/service"
)

type Handler struct {
	users *service.Service
}

func NewHandler(users *service.Service) *Handler {
	return &Handler{users: users}
}

// RegisterRoutes mounts profile and timezone endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users", middleware.RequireAuth())
	{
		users.GET("/me", h.getMe)
		users.PUT("/me", h.updateMe)
		users.POST("/me/sponsor-profile", h.createSponsorProfile)
		users.GET("/me/sponsor-profile", h.getSponsorProfile)
	}

	tz := r.Group("/timezone")
	{
		tz.GET("/supported", h.supportedTimezones)
		tz.POST("/validate", h.validateTimezone)
		tz.GET("/me", middleware.RequireAuth(), h.getTimezone)
		tz.PUT("/me", middleware.RequireAuth(), h.setTimezone)
	}
}

func (h *Handler) getMe(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	user, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) updateMe(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var patch models.ProfileUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeValidation, "invalid profile fields").
			WithDetail("cause", err.Error()))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) createSponsorProfile(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var profile models.SponsorProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid sponsor profile body"))
		return
	}

	created, err := h.users.CreateSponsorProfile(c.Request.Context(), claims.UserID, &profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

func (h *Handler) getSponsorProfile(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	profile, err := h.users.SponsorProfileFor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

func (h *Handler) supportedTimezones(c *gin.Context) {
	response.OK(c, gin.H{"timezones": h.users.SupportedTimezones()})
}

type timezoneInput struct {
	Timezone string `json:"timezone" binding:"required"`
}

func (h *Handler) validateTimezone(c *gin.Context) {
	var input timezoneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "timezone is required"))
		return
	}
	response.OK(c, gin.H{
		"timezone": input.Timezone,
		"valid":    h.users.TimezoneSupported(input.Timezone),
	})
}

func (h *Handler) getTimezone(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	user, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	tz := user.Timezone
	if tz == "" {
		tz = "UTC"
	}
	response.OK(c, gin.H{
		"timezone":             tz,
		"timezone_auto_detect": user.TimezoneAuto,
		"local_time":           localTime(tz),
	})
}

func (h *Handler) setTimezone(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var input struct {
		Timezone     string `json:"timezone" binding:"required"`
		TimezoneAuto *bool  `json:"timezone_auto_detect"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "timezone is required"))
		return
	}

	patch := models.ProfileUpdate{Timezone: &input.Timezone, TimezoneAuto: input.TimezoneAuto}
	user, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"timezone":             user.Timezone,
		"timezone_auto_detect": user.TimezoneAuto,
	})
}

func localTime(tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return ""
	}
	return time.Now().In(loc).Format(time.RFC3339)
}
