package errx

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError so callers can decide how far it may travel.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindResourceUnavailable
	KindIterationLimit
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindResourceUnavailable:
		return "resource_unavailable"
	case KindIterationLimit:
		return "iteration_limit_exceeded"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// AppError wraps an underlying error with a Kind and a safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	if e.Err == nil {
		return false
	}
	return errors.Is(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(err error, kind Kind, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    kind,
		Message: message,
	}
}

func Validation(format string, args ...any) error {
	return New(nil, KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return New(nil, KindNotFound, fmt.Sprintf(format, args...))
}

// Unavailable marks err as a failure of an external collaborator
// (model backend, retrieval, persistence).
func Unavailable(err error, message string) error {
	if err == nil {
		return nil
	}
	return New(err, KindResourceUnavailable, message)
}

func Configuration(err error, message string) error {
	return New(err, KindConfiguration, message)
}

// KindOf returns the Kind of the first AppError in err's chain.
// Errors outside the taxonomy are reported as KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err as a short sentence that is safe to show to a guest.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return SystemErrorMessage
}
