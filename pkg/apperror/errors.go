package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"retryable"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code extracts the error code from err, or "" if err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	return Code(err) == code
}

// Error codes, stable across releases.
const (
	CodeInvalidRequest    = "MINT_001"
	CodeGenerationFailed  = "MINT_002"
	CodeDuplicateKey      = "MINT_003"
	CodeInsufficientFunds = "LEDGER_001"
	CodeNotFound          = "ASSET_001"
	CodeForbidden         = "ASSET_002"
	CodeNonceReused       = "SEC_001"
	CodeUnauthorized      = "AUTH_001"
	CodeRateLimited       = "RATE_001"
	CodePersistence       = "SYS_001"
)

// ---- Mint (MINT) ----

func ErrInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}

// ErrGenerationFailed is retryable: resubmitting with the same idempotency key
// re-attempts the whole mint.
func ErrGenerationFailed(err error) *AppError {
	e := Wrap(CodeGenerationFailed, "Artwork generation failed", http.StatusBadGateway, err)
	e.Retryable = true
	return e
}

func ErrDuplicateIdempotencyKey() *AppError {
	return New(CodeDuplicateKey, "Idempotency key already processed", http.StatusConflict)
}

// ---- Ledger (LEDGER) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient credits in wallet", http.StatusPaymentRequired)
}

// ---- Assets (ASSET) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrForbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// ---- Security & Authentication (SEC / AUTH) ----

func ErrNonceReused() *AppError {
	return New(CodeNonceReused, "Nonce has already been used", http.StatusConflict)
}

func ErrUnauthorized() *AppError {
	return New(CodeUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	e := New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
	e.Retryable = true
	return e
}

// ---- System & Infrastructure (SYS) ----

// ErrPersistence wraps a storage failure. Nothing was applied, so the caller
// may retry with the same idempotency key.
func ErrPersistence(err error) *AppError {
	e := Wrap(CodePersistence, "Internal storage error", http.StatusInternalServerError, err)
	e.Retryable = true
	return e
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodePersistence, "Internal server error", http.StatusInternalServerError, err)
}
