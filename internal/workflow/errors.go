package workflow

import (
	"errors"

	"github.com/internlink/workflow_layer/internal/database"
)

// Validation errors are deterministic outcomes of current state vs. request.
// They are surfaced verbatim to the caller and never retried.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCapacityExceeded  = errors.New("internship capacity exceeded")
	ErrAlreadyReviewed   = errors.New("submission already reviewed")
	ErrHasDependents     = errors.New("task has dependent submissions")
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// ErrSideEffectFailed marks a transition whose side effects exhausted their
// retry budget; the entity-state write has been rolled back.
var ErrSideEffectFailed = errors.New("side effect execution failed")

// Error codes returned to API callers.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	CodeAlreadyReviewed   = "ALREADY_REVIEWED"
	CodeHasDependents     = "HAS_DEPENDENTS"
	CodeSideEffectFailed  = "SIDE_EFFECT_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// ErrorCode maps an error returned by the coordinator to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrAlreadyReviewed):
		return CodeAlreadyReviewed
	case errors.Is(err, ErrHasDependents):
		return CodeHasDependents
	case errors.Is(err, ErrUnknownEntityType):
		return CodeInvalidTransition
	case errors.Is(err, ErrSideEffectFailed):
		return CodeSideEffectFailed
	case errors.Is(err, database.ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// IsValidationError reports whether err is a deterministic client error
// rather than a transient execution failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrAlreadyReviewed) ||
		errors.Is(err, ErrHasDependents) ||
		errors.Is(err, ErrUnknownEntityType)
}
