package invoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/elee1766/gauntletfuse/src/orclient"
)

// Kind classifies an invocation failure.
type Kind string

const (
	KindRateLimited Kind = "RateLimited"
	KindTimeout     Kind = "Timeout"
	KindAuthFailed  Kind = "AuthFailed"
	KindUnknown     Kind = "Unknown"
)

// Transient reports whether a failure of this kind is worth retrying.
func (k Kind) Transient() bool {
	return k == KindRateLimited || k == KindTimeout
}

// Error is the only error type an Invoker returns.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("invocation of %s failed (%s): %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("invocation failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUnknown
}

// Classify wraps a client error into an *Error with the matching kind.
func Classify(provider string, err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	return &Error{Kind: classifyKind(err), Provider: provider, Err: err}
}

func classifyKind(err error) Kind {
	var apiErr *orclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsRateLimit():
			return KindRateLimited
		case apiErr.IsAuthError(), apiErr.StatusCode == http.StatusForbidden:
			return KindAuthFailed
		case apiErr.IsTimeout():
			return KindTimeout
		}
		return KindUnknown
	}
	switch {
	case errors.Is(err, orclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, orclient.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, orclient.ErrNoAPIKey):
		return KindAuthFailed
	}
	return KindUnknown
}
