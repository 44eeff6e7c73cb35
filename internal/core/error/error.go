package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// TurnFallbackMessage is shown to the user when a whole conversation turn
	// is aborted by a transport failure. Nothing from the failed turn is kept.
	TurnFallbackMessage = "Sorry, I couldn't process your request right now. Please try again in a moment."
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing key in Redis.
	RedisNotFoundMessage = "redis key not found"
	// TransportErrorMessage describes an unreachable or timed-out collaborator.
	TransportErrorMessage = "upstream call failed"
	// RateLimitedMessage describes a rate-limit budget that ran out.
	RateLimitedMessage = "rate limit retry budget exhausted"
)

// AppError wraps an underlying error with an HTTP-style status and safe message.
//
// The status doubles as the failure class used by the turn loop:
// 422 validation (record skipped), 404 not found (structured tool result),
// 429 rate limited (retried, then escalated), 502/504 transport (turn fatal).
type AppError struct {
	Err     error
	Status  int
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

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapValidation marks an error as a per-record validation failure.
func WrapValidation(err error, message string) *AppError {
	return New(err, http.StatusUnprocessableEntity, message)
}

// NotFound builds a not-found error with a safe message.
func NotFound(message string) *AppError {
	return New(nil, http.StatusNotFound, message)
}

// WrapTransport marks an error as a turn-fatal transport failure.
func WrapTransport(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, TransportErrorMessage)
}

// WrapRateLimited marks an error as an exhausted rate-limit budget.
// Callers treat it as transport-class once surfaced.
func WrapRateLimited(err error) *AppError {
	return New(err, http.StatusTooManyRequests, RateLimitedMessage)
}

// IsTransport reports whether err carries a turn-fatal transport status.
func IsTransport(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}
