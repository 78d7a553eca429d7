// internal/common/errors/errors.go
// Package errors provides standardized error handling for the delivery pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeChannelUnconfigured ErrorCode = "CHANNEL_UNCONFIGURED"
	ErrCodeEmailDeliveryFailed ErrorCode = "EMAIL_DELIVERY_FAILED"
	ErrCodeSMSDeliveryFailed   ErrorCode = "SMS_DELIVERY_FAILED"
	ErrCodeUnsupportedType     ErrorCode = "UNSUPPORTED_TYPE"

	ErrCodeQueuePublishFailed ErrorCode = "QUEUE_PUBLISH_FAILED"
	ErrCodeRetriesExhausted   ErrorCode = "RETRIES_EXHAUSTED"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// StandardError represents a structured application error. Retryable decides
// whether the queue bridge requeues the message that produced it.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// NewValidationError creates a non-retryable input error for a missing or
// invalid creation field.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Notification validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable error for an unknown notification
// id; it indicates a logic bug or a race with deletion and is logged, never
// surfaced to callers.
func NewNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelUnconfiguredError creates a delivery failure for an adapter with
// no usable transport. It is counted toward the retry budget like any other
// delivery failure, so a notification on an unconfigured channel ends FAILED
// after MaxRetries attempts.
func NewChannelUnconfiguredError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelUnconfigured,
		Message:   fmt.Sprintf("%s channel is not configured", channel),
		Details:   fmt.Sprintf("missing %s transport credentials", channel),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailDeliveryError creates a retryable transport failure for email.
func NewEmailDeliveryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailDeliveryFailed,
		Message:   "Email delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSMSDeliveryError creates a retryable transport failure for SMS.
func NewSMSDeliveryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSMSDeliveryFailed,
		Message:   "SMS delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnsupportedTypeError creates a non-retryable error for a notification
// type with no adapter. Redelivering cannot fix it.
func NewUnsupportedTypeError(notificationType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedType,
		Message:   "Unsupported notification type",
		Details:   fmt.Sprintf("type: %s", notificationType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueuePublishError creates an error for a failed enqueue. It is surfaced
// to the ingestion caller; the persisted record stays PENDING with no queued
// delivery until manual recovery.
func NewQueuePublishError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueuePublishFailed,
		Message:   "Failed to publish notification to queue",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRetriesExhaustedError wraps the final delivery failure once the retry
// budget is spent. Non-retryable so the bridge acknowledges instead of
// requeueing the message.
func NewRetriesExhaustedError(retryCount int, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetriesExhausted,
		Message:   fmt.Sprintf("Delivery failed after %d attempts", retryCount),
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStoreUnavailableError creates a retryable persistence error; the message
// is requeued so the attempt repeats once the store is reachable again.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Notification store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsRetryable reports whether the queue bridge should requeue the message
// that produced err. Unknown error types default to retryable: in an
// at-least-once pipeline an unclassified failure is assumed transient.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// GetCode extracts the error code, or empty string for foreign errors.
func GetCode(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
