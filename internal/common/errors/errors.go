// Package errors provides standardized error handling for the NorthBound API.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"

	ErrCodeSubscriptionSaveFailed   ErrorCode = "SUBSCRIPTION_SAVE_FAILED"
	ErrCodeSubscriptionNotFound     ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeSubscriptionLookupFailed ErrorCode = "SUBSCRIPTION_LOOKUP_FAILED"
	ErrCodeUnsubscribeFailed        ErrorCode = "UNSUBSCRIBE_FAILED"
	ErrCodeConfirmFailed            ErrorCode = "CONFIRM_FAILED"

	ErrCodeRateLimitCheckFailed ErrorCode = "RATE_LIMIT_CHECK_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodePredictionsError       ErrorCode = "PREDICTIONS_ERROR"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeMissingAPIKey ErrorCode = "MISSING_API_KEY"
	ErrCodeInvalidAPIKey ErrorCode = "INVALID_API_KEY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTokenError creates a non-retryable token error.
func NewInvalidTokenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidToken,
		Message:   "Token does not match any subscription",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenExpiredError creates a non-retryable token expiry error.
func NewTokenExpiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenExpired,
		Message:   "Verification token has expired",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscriptionSaveFailedError creates a retryable database error.
func NewSubscriptionSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionSaveFailed,
		Message:   "Database error while saving subscription",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscriptionLookupFailedError creates a retryable database error.
func NewSubscriptionLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionLookupFailed,
		Message:   "Database error while loading subscription",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscriptionNotFoundError creates a non-retryable lookup miss.
func NewSubscriptionNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionNotFound,
		Message:   "No subscription matches this email",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsubscribeFailedError creates a retryable database error.
func NewUnsubscribeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsubscribeFailed,
		Message:   "Database error while unsubscribing",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfirmFailedError creates a retryable database error.
func NewConfirmFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfirmFailed,
		Message:   "Database error while confirming subscription",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionsError creates a retryable upstream read error.
func NewPredictionsError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionsError,
		Message:   "Failed to load predictions",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}
