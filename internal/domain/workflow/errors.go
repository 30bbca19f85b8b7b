package workflow

import "errors"

var (
	// ErrValidation is returned when request input fails validation
	// (empty reason, invalid tier, malformed identifiers). No write has
	// occurred when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for an unknown instance, step or template.
	ErrNotFound = errors.New("not found")

	// ErrAuthorization is returned when the actor is not the assigned
	// approver for the current step, or not the original requestor for
	// resubmit, cancel or appeal.
	ErrAuthorization = errors.New("not authorized")

	// ErrStateConflict is returned when a precondition on status or
	// current step does not hold against the transaction's snapshot,
	// including concurrent-mutation conflicts. Callers should re-fetch
	// and retry; the engine never retries on its own.
	ErrStateConflict = errors.New("state conflict")

	// ErrPersistence is returned when the store is unavailable. The
	// transactional guarantee leaves no partial state committed.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidTransition is returned by the status machine when a
	// trigger is not permitted in the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrGuardFailed is returned when every guard on a permitted
	// trigger evaluates false.
	ErrGuardFailed = errors.New("guard condition failed")
)
