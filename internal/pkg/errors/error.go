package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrRateLimited      = errors.New("too many requests")
	ErrSessionExpired   = errors.New("session expired or invalid")
	ErrUsernameRequired = errors.New("username is required")
	ErrNoSession        = errors.New("no active session")
)

// Auth error codes reported by the auth service or raised locally before a call.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeRateLimited        = "rate_limited"
	CodeUserExists         = "user_already_exists"
	CodeWeakPassword       = "weak_password"
	CodeSessionExpired     = "session_expired"
	CodeUnknown            = "unknown"
)

// AuthError is a rejection from the auth service. Message is shown to the user verbatim.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Is lets errors.Is(err, ErrRateLimited) and errors.Is(err, ErrSessionExpired) match coded auth errors.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Code == CodeRateLimited
	case ErrSessionExpired:
		return e.Code == CodeSessionExpired
	case ErrDuplicateEntry:
		return e.Code == CodeUserExists
	}
	return false
}

// NewAuthError builds an AuthError with the given code and message.
func NewAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

// ProfileLoadError is a transient failure reading or writing the profile store.
// It is never a "logged out" signal.
type ProfileLoadError struct {
	ID  string
	Err error
}

func (e *ProfileLoadError) Error() string {
	return fmt.Sprintf("failed to load profile %s: %v", e.ID, e.Err)
}

func (e *ProfileLoadError) Unwrap() error { return e.Err }

// Recovery link rejection reasons.
const (
	RecoveryMalformed = "malformed"
	RecoveryWrongType = "wrong_type"
	RecoveryExpired   = "expired"
	RecoveryReused    = "reused"
	RecoveryMissing   = "missing"
)

// RecoveryLinkError is a malformed, expired or reused password-recovery link.
type RecoveryLinkError struct {
	Reason string
	Err    error
}

func (e *RecoveryLinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recovery link %s: %v", e.Reason, e.Err)
	}
	return "recovery link " + e.Reason
}

func (e *RecoveryLinkError) Unwrap() error { return e.Err }

// ConflictError reports which unique constraint rejected a write.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return "conflict on " + e.Constraint
}

func (e *ConflictError) Unwrap() error { return ErrDuplicateEntry }

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
