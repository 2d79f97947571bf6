package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a class of application error. Codes map 1:1 to HTTP
// statuses at the transport boundary; services deal only in codes.
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeUnavailable     ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"

	// Auth
	ErrCodeInvalidPhone   ErrorCode = "INVALID_PHONE"
	ErrCodeInvalidOtp     ErrorCode = "INVALID_OTP"
	ErrCodeInvalidToken   ErrorCode = "INVALID_TOKEN"
	ErrCodeExpiredToken   ErrorCode = "EXPIRED_TOKEN"
	ErrCodeWrongTokenType ErrorCode = "WRONG_TOKEN_TYPE"

	// Contest lifecycle
	ErrCodeIllegalTransition    ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeContestNotFound      ErrorCode = "CONTEST_NOT_FOUND"
	ErrCodeContestProtected     ErrorCode = "CONTEST_PROTECTED"
	ErrCodeContestNotActive     ErrorCode = "CONTEST_NOT_ACTIVE"
	ErrCodeDuplicateEntry       ErrorCode = "DUPLICATE_ENTRY"
	ErrCodeEntryLimitReached    ErrorCode = "ENTRY_LIMIT_REACHED"
	ErrCodeNotEligible          ErrorCode = "NOT_ELIGIBLE"
	ErrCodeInsufficientEntries  ErrorCode = "INSUFFICIENT_ENTRIES"
)

// AppError is the typed application error carried from the service layer to
// the HTTP adapter. Cause is never serialized.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithFieldErrors attaches a per-field validation error map.
func (e *AppError) WithFieldErrors(fields map[string]string) *AppError {
	return e.WithDetail("fields", fields)
}

func (e *AppError) IsRetriable() bool {
	return e.Code == ErrCodeUnavailable
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// AsAppError unwraps err into an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
