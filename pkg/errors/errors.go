package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`

	cause error
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// Common error codes
const (
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternalError     = "internal_error"
	ErrCodeMethodNotFound    = "method_not_found"
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeInvalidParams     = "invalid_params"
	ErrCodeHandlerFailed     = "handler_failed"
	ErrCodeLedgerInvalid     = "ledger_invalid"
	ErrCodeCatalogInvalid    = "catalog_invalid"
	ErrCodeReportWriteFailed = "report_write_failed"
	ErrCodeChainMismatch     = "chain_mismatch"
)

// Predefined errors
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       ErrCodeForbidden,
		Message:    "Access denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// Wrap creates an AppError that carries cause for errors.Is / errors.As.
// The cause message becomes the detail.
func Wrap(code, message string, statusCode int, cause error) *AppError {
	e := &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		cause:      cause,
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// InvalidRequest creates an invalid request error for malformed envelopes
func InvalidRequest(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidRequest,
		Message:    "Invalid request",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// LedgerInvalid creates an error for a finding ledger that fails validation
func LedgerInvalid(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeLedgerInvalid,
		Message:    "Invalid finding ledger",
		Detail:     detail,
		StatusCode: http.StatusInternalServerError,
	}
}

// CatalogInvalid creates an error for a boundary catalog that fails validation
func CatalogInvalid(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeCatalogInvalid,
		Message:    "Invalid boundary catalog",
		Detail:     detail,
		StatusCode: http.StatusInternalServerError,
	}
}

// ReportWriteFailed wraps an I/O failure on the report destination
func ReportWriteFailed(cause error) *AppError {
	return Wrap(ErrCodeReportWriteFailed, "Failed to write report", http.StatusInternalServerError, cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
