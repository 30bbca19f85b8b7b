package workflow

import "context"

// StatusMachine tracks an instance's current status and validates
// transitions against the configured transition table
type StatusMachine interface {
	// Status returns the current status
	Status() Status

	// CanFire returns true if the trigger is permitted in the current status
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new
	// status if a permitted transition's guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the
	// current status
	PermittedTriggers() []Trigger
}
