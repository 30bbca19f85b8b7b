package entity

import "time"

// StepHistoryEntry is one row of the append-only step history ledger.
// The ledger is the source of truth for audit and for reconstructing
// rejection, cascade, resubmit and appeal chains.
type StepHistoryEntry struct {
	ID         int64     `json:"id"`
	TenantID   string    `json:"tenant_id"`
	InstanceID string    `json:"instance_id"`
	StepID     string    `json:"step_id,omitempty"`
	StepOrder  int       `json:"step_order"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Comments   string    `json:"comments,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
