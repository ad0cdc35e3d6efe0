package models

import "fmt"

// AuthError means no valid token could be produced: the persisted
// token record is missing or corrupt, or the refresh call failed. It
// is fatal to the calling operation.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no valid token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("no valid token: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx response from the marketplace or catalog
// service. Recovered locally (skip and log) inside per-entry loops;
// fatal only when it affects the single required shipment-items call.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.Endpoint, e.StatusCode)
}

// NotFoundError is an empty result set for an expected lookup. It is
// returned as a value so callers handle it without panic paths.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// DomainError is a structured rejection of a pack/dispatch action with
// a human-readable reason: repeat actions, dispatch of a not-fully-
// packed shipment, dispatch of a cancelled shipment.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string { return e.Reason }

// NewDomainError builds a DomainError from a format string.
func NewDomainError(format string, args ...interface{}) *DomainError {
	return &DomainError{Reason: fmt.Sprintf(format, args...)}
}
