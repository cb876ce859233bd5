package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated          = errors.New("unauthenticated")
	ErrNotFoundOrExpired        = errors.New("not found or expired")
	ErrForbidden                = errors.New("forbidden")
	ErrUpstreamRejected         = errors.New("upstream rejected the request")
	ErrSessionExpiredOrUnknown  = errors.New("auth session expired or unknown")
	ErrInvalidSelection         = errors.New("invalid selection")
	ErrNoTargets                = errors.New("post needs at least one target")
	ErrPartialAutomationFailure = errors.New("automation finished with errors")
	ErrNotConfigured            = errors.New("integration not configured")
	ErrInvalidInput             = errors.New("invalid input")
)

// UpstreamError is a non-2xx answer from a platform API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamRejected
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
