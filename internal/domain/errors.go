package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoConnection means the owner has no active store connection. It is an empty state, not a failure.
	ErrNoConnection = errors.New("no active store connection")

	// ErrSyncInProgress is returned when another invocation holds the connection's sync lease
	ErrSyncInProgress = errors.New("sync already in progress for this connection")

	// ErrSyncLogNotFound is returned when a resume references an unknown log entry
	ErrSyncLogNotFound = errors.New("sync log entry not found")

	// ErrSyncRunClosed is returned when a resume references a terminal log entry
	ErrSyncRunClosed = errors.New("sync run is no longer in progress")
)

// ConfigurationError reports a missing or malformed deployment setting
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// ValidationError reports caller-fixable input problems
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthenticationError means the store rejected the stored credential or endpoint.
// The owner has to reconnect.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("store authentication failed (status %d): %s", e.Status, e.Message)
}

// RateLimitError means the store throttled the request
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("store rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "store rate limit exceeded"
}

// UpstreamError is any other failed store call, including network failures
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("store request failed: %v", e.Err)
	}
	return fmt.Sprintf("store request failed with status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a row store failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err as a PersistenceError for op
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsFatalStoreError reports store failures that close a sync run as failed.
// Rate limits, upstream failures and timeouts leave the run resumable.
func IsFatalStoreError(err error) bool {
	var authErr *AuthenticationError
	var validationErr *ValidationError
	return errors.As(err, &authErr) || errors.As(err, &validationErr)
}
