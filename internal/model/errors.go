package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse marks an upstream envelope that is neither a JSON
	// object nor an array. Anything object- or array-shaped degrades to
	// defaults instead of erroring.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrUpstreamUnreachable covers network failures and deadline expiry on
	// the upstream call. Not retried automatically.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// UpstreamStatusError reports a non-success HTTP status from the upstream
// patient API. The body is kept for logs, never for user-facing text.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
