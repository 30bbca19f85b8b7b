package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StatusMachineBuilder builds a configured status machine
type StatusMachineBuilder interface {
	// Configure returns a configuration for the given status
	Configure(status Status) StatusConfiguration

	// Build creates a new status machine with the given initial status
	Build(initial Status) StatusMachine
}

// StatusConfiguration configures transitions for a specific status
type StatusConfiguration interface {
	// Permit allows a trigger to transition to the target status
	Permit(trigger Trigger, to Status) StatusConfiguration

	// PermitIf allows a trigger to transition to the target status if
	// the guard passes. Transitions are tried in registration order.
	PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type statusConfig struct {
	from        Status
	transitions map[Trigger][]transition
}

type statusMachineBuilder struct {
	configurations map[Status]*statusConfig
}

type statusMachine struct {
	current        Status
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new status machine builder
func NewBuilder() StatusMachineBuilder {
	return &statusMachineBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns a configuration for the given status
func (b *statusMachineBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new status machine with the given initial status
func (b *statusMachineBuilder) Build(initial Status) StatusMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	// Deep copy configurations so later builder use cannot mutate a
	// built machine
	configsCopy := make(map[Status]*statusConfig)
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition)
		for trigger, ts := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, ts...)
		}
		configsCopy[status] = &statusConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &statusMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to transition to the target status
func (c *statusConfig) Permit(trigger Trigger, to Status) StatusConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows a trigger to transition to the target status if the
// guard passes
func (c *statusConfig) PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// Status returns the current status
func (m *statusMachine) Status() Status {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current status
func (m *statusMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}

	ts, exists := config.transitions[trigger]
	return exists && len(ts) > 0
}

// Fire attempts to execute the trigger, transitioning to the new status
// if a permitted transition's guard passes
func (m *statusMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	ts, exists := config.transitions[trigger]
	if !exists || len(ts) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from status %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns all triggers that can be fired in the
// current status
func (m *statusMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}

	return triggers
}
