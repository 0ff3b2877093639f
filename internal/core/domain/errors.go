package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lead or credential does not exist in
	// the queried tier.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input rejected before any storage
	// attempt.
	ErrValidation = errors.New("validation failed")

	// ErrAllTiersFailed is the only storage condition fatal to a request:
	// primary, durable and memory tiers all rejected the write.
	ErrAllTiersFailed = errors.New("all storage tiers failed")

	// ErrUnauthorized is returned when the access gate denies an operation.
	ErrUnauthorized = errors.New("unauthorized")
)

// AccessDeniedError carries the gate decision behind a denial so callers can
// map the reason onto a transport status.
type AccessDeniedError struct {
	Decision Decision
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision.Reason)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrUnauthorized
}
