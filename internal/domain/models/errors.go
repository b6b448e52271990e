package models

import "github.com/pkg/errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidUnitCount    = errors.New("invalid unit count")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("automation engine unavailable")
	ErrUpstreamMalformed   = errors.New("automation engine returned malformed response")
	ErrPersistence         = errors.New("persistence failure")
)

// ErrorCode is the stable machine-readable name of a domain error, used in API bodies and run error records.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound):
		return "UserNotFound"
	case errors.Is(err, ErrInvalidUnitCount):
		return "InvalidUnitCount"
	case errors.Is(err, ErrInsufficientCredits):
		return "InsufficientCredits"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "UpstreamUnavailable"
	case errors.Is(err, ErrUpstreamMalformed):
		return "UpstreamMalformed"
	default:
		return "PersistenceFailure"
	}
}
