package models

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-agent-wallet/pkg/logger"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Rate limiting
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Session and connection-token errors
	ErrorCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrorCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrorCodeTokenAlreadyUsed   ErrorCode = "TOKEN_ALREADY_USED"
	ErrorCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrorCodeWalletNotConnected ErrorCode = "WALLET_NOT_CONNECTED"

	// Transfer validation errors
	ErrorCodeInvalidAddress      ErrorCode = "INVALID_ADDRESS"
	ErrorCodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrorCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrorCodeBuildFailed         ErrorCode = "BUILD_FAILED"

	// Pending-transaction state errors
	ErrorCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrorCodeAlreadyProcessed    ErrorCode = "ALREADY_PROCESSED"
	ErrorCodeTransactionExpired  ErrorCode = "TRANSACTION_EXPIRED"
	ErrorCodeSignerMismatch      ErrorCode = "SIGNER_MISMATCH"

	// Infrastructure errors
	ErrorCodeRPCUnavailable ErrorCode = "RPC_UNAVAILABLE"
	ErrorCodeDatabaseError  ErrorCode = "DATABASE_ERROR"
	ErrorCodeMalformedJSON  ErrorCode = "MALFORMED_JSON"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeSessionNotFound, ErrorCodeTransactionNotFound, ErrorCodeInvalidToken:
		return http.StatusNotFound
	case ErrorCodeSessionExpired, ErrorCodeTokenExpired, ErrorCodeTokenAlreadyUsed,
		ErrorCodeWalletNotConnected, ErrorCodeInvalidAddress, ErrorCodeInvalidAmount,
		ErrorCodeInsufficientBalance, ErrorCodeAlreadyProcessed, ErrorCodeTransactionExpired,
		ErrorCodeBuildFailed, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeSignerMismatch:
		return http.StatusForbidden
	case ErrorCodeRPCUnavailable:
		return http.StatusBadGateway
	case ErrorCodeDatabaseError, ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppError represents an application error carrying a user-readable
// message. Validation and state-guard errors surface verbatim; anything
// else is reduced to a generic message at the boundary.
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: code.HTTPStatusCode(),
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: code.HTTPStatusCode(),
	}
}

// AsAppError unwraps err into an *AppError, or wraps it as a generic
// internal error so internal details never leak to the caller.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewAppErrorWithCause(ErrorCodeInternalError, "Something went wrong. Please try again.", err)
}

// HandleError converts err to an AppError, logs it, and writes the
// structured JSON error response.
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	appErr := AsAppError(err)

	logFields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_message", appErr.Message),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	}
	if appErr.Cause != nil {
		logFields = append(logFields, zap.Error(appErr.Cause))
	}

	if appErr.StatusCode >= 500 {
		log.Error("Application error", logFields...)
	} else {
		log.Warn("Client error", logFields...)
	}

	c.JSON(appErr.StatusCode, &ErrorResponse{
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Timestamp: time.Now().UTC(),
	})
}
