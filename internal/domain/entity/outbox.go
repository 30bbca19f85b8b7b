package entity

import "time"

// OutboxEntry is a queued notification written in the same transaction
// as the transition it announces, and dispatched after commit. A failed
// dispatch can never roll back or desynchronize the state machine.
type OutboxEntry struct {
	ID         int64  `json:"id"`
	TenantID   string `json:"tenant_id"`
	InstanceID string `json:"instance_id"`
	Category   string `json:"category"`
	// TargetTier is the tier that must act next; zero when the
	// notification targets the requestor instead.
	TargetTier int    `json:"target_tier,omitempty"`
	TargetUser string `json:"target_user,omitempty"`
	Summary    string `json:"summary"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
