package workflow

import "context"

// TransitionGuards carries the per-instance facts the status machine
// needs to pick between guarded transitions.
type TransitionGuards struct {
	// LastStep is true when the step being approved is the final step of
	// the instance's template snapshot.
	LastStep bool
	// ReturnedToRequestor is true when a rejection or cascade hop lands
	// on the requestor rather than a lower tier.
	ReturnedToRequestor bool
	// AwaitingCascade is true when a returned instance is held by a tier
	// that may reject it further down the chain.
	AwaitingCascade bool
}

// NewInstanceMachine builds the status machine for a workflow instance
// currently in the given status. Terminal statuses are configured with
// no transitions, so firing anything from them fails with
// ErrInvalidTransition.
func NewInstanceMachine(current Status, guards TransitionGuards) StatusMachine {
	lastStep := func(context.Context) bool { return guards.LastStep }
	awaitingCascade := func(context.Context) bool { return guards.AwaitingCascade }
	lastStepOfCascade := func(context.Context) bool { return guards.AwaitingCascade && guards.LastStep }

	b := NewBuilder()

	b.Configure(StatusPending).
		PermitIf(TriggerApprove, StatusApproved, lastStep).
		Permit(TriggerApprove, StatusInProgress).
		Permit(TriggerReject, StatusReturned).
		Permit(TriggerCancel, StatusCancelled).
		Permit(TriggerEscalate, StatusEscalated)

	b.Configure(StatusInProgress).
		PermitIf(TriggerApprove, StatusApproved, lastStep).
		Permit(TriggerApprove, StatusInProgress).
		Permit(TriggerReject, StatusReturned).
		Permit(TriggerCancel, StatusCancelled).
		Permit(TriggerEscalate, StatusEscalated)

	// A tier holding a cascaded instance may approve it back up the
	// chain instead of rejecting further down.
	b.Configure(StatusReturned).
		PermitIf(TriggerApprove, StatusApproved, lastStepOfCascade).
		PermitIf(TriggerApprove, StatusInProgress, awaitingCascade).
		PermitIf(TriggerCascade, StatusReturned, awaitingCascade).
		Permit(TriggerResubmit, StatusPending).
		Permit(TriggerAppeal, StatusPending).
		Permit(TriggerCancel, StatusCancelled)

	b.Configure(StatusEscalated).
		PermitIf(TriggerApprove, StatusApproved, lastStep).
		Permit(TriggerApprove, StatusInProgress).
		Permit(TriggerReject, StatusReturned).
		Permit(TriggerCancel, StatusCancelled)

	return b.Build(current)
}
