package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse means the backend answered without any content.
var ErrEmptyResponse = errors.New("ai: empty backend response")

type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
)

// BackendError is a failure reported by, or reaching, the planning backend.
type BackendError struct {
	Kind    ErrorKind
	Status  int // HTTP status when known
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai: backend %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("ai: backend %s: %s", e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Retryable reports whether the caller may back off and try again.
// Bad credentials are not retryable: the operator has to fix configuration.
func (e *BackendError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTimeout
}

// IsKind reports whether err is a BackendError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == kind
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}

// transportError classifies an error that happened before any status arrived.
func transportError(ctx context.Context, err error) *BackendError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &BackendError{Kind: KindTimeout, Message: "backend call timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &BackendError{Kind: KindTimeout, Message: "backend call canceled", Cause: err}
	}
	return &BackendError{Kind: KindUnavailable, Message: err.Error(), Cause: err}
}
