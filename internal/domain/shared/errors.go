// Package shared contains common domain types, errors and events that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidID     = errors.New("invalid ID")
	ErrNegativeValue = errors.New("value cannot be negative")
	ErrInvalidFormat = errors.New("invalid format")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "record", "presence", "persistence"
	Op      string // Operation that failed, e.g., "Load", "Decode"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Record domain errors
var (
	ErrDuplicateMember = NewDomainError("record", "Load", ErrAlreadyExists, "duplicate member in record set")
	ErrEmptyMemberID   = NewDomainError("record", "Validate", ErrInvalidID, "member ID cannot be empty")
	ErrNegativeXP      = NewDomainError("record", "Validate", ErrNegativeValue, "xp cannot be negative")
)

// Presence domain errors
var (
	ErrGuildUnavailable = NewDomainError("presence", "Scan", ErrServiceUnavailable, "guild voice state unavailable")
)

// External service errors
var (
	ErrDiscordAPIFailed   = NewDomainError("discord", "Request", ErrExternalService, "Discord API request failed")
	ErrDiscordRateLimited = NewDomainError("discord", "Request", ErrRateLimited, "Discord API rate limit exceeded")
	ErrBackupSinkFailed   = NewDomainError("backup", "Ship", ErrExternalService, "backup sink unreachable")
)

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
