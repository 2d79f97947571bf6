package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "contestlet-backend/internal/common/errors"
)

// Envelope is the uniform JSON response shape for every endpoint.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Errors    interface{} `json:"errors,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Page is the standard paginated list payload.
type Page struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func NewPagination(page, size int, total int64) Pagination {
	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func OKWithMessage(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Error writes err through the standard envelope, mapping its code to an
// HTTP status. Plain errors surface as 500 INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "Internal server error")
	}

	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			appErr.WithRequestID(id)
		}
	}

	c.JSON(StatusCode(appErr.Code), Envelope{
		Success:   false,
		Message:   appErr.Message,
		Errors:    appErr,
		Timestamp: time.Now().UTC(),
	})
}

// StatusCode maps an application error code to an HTTP status.
func StatusCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeBadRequest, apperrors.ErrCodeInvalidPhone:
		return http.StatusBadRequest
	case apperrors.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeInvalidToken,
		apperrors.ErrCodeExpiredToken, apperrors.ErrCodeWrongTokenType,
		apperrors.ErrCodeInvalidOtp:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeContestNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeIllegalTransition,
		apperrors.ErrCodeDuplicateEntry, apperrors.ErrCodeContestProtected,
		apperrors.ErrCodeContestNotActive, apperrors.ErrCodeEntryLimitReached,
		apperrors.ErrCodeNotEligible, apperrors.ErrCodeInsufficientEntries:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
