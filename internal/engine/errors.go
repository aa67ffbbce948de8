package engine

import (
	"errors"

	"github.com/shopqueue/shop-queue/internal/store"
)

// Failure kinds raised by the engine. Callers match with errors.Is; the API
// layer maps them to HTTP statuses.
var (
	// ErrValidation is returned for missing or empty required identifiers.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced queue does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrPreconditionFailed is returned when a queue is not in an
	// assignable state at the time of an assignment attempt.
	ErrPreconditionFailed = errors.New("queue is not assignable")
	// ErrNoEligibleEmployees is returned when the eligibility filter
	// produces an empty candidate pool.
	ErrNoEligibleEmployees = errors.New("no eligible employees")
	// ErrStrategyNotImplemented is returned for named assignment
	// strategies whose selection logic does not exist yet.
	ErrStrategyNotImplemented = errors.New("assignment strategy not implemented")
	// ErrOperationFailed wraps unexpected collaborator failures,
	// preserving the original cause for diagnostics.
	ErrOperationFailed = errors.New("operation failed")
)
