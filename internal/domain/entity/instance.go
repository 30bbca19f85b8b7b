package entity

import "time"

// WorkflowInstance is one concrete request moving through a workflow
// template's approval chain. It is mutated exclusively by the engine's
// transition operations; terminal instances are never deleted.
//
// Exactly one of the following holds at any time: CurrentStepID is empty
// (terminal, or awaiting the requestor) or CurrentStepID names the step
// whose approver must act next.
type WorkflowInstance struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	TemplateID       string           `json:"template_id"`
	Category         string           `json:"category"`
	TemplateSnapshot TemplateSnapshot `json:"template_snapshot"`
	Status           string           `json:"status"`
	StartedBy        string           `json:"started_by"`

	CurrentStepID    string `json:"current_step_id,omitempty"`
	CurrentStepOrder int    `json:"current_step_order"`
	CurrentTierLevel int    `json:"current_tier_level"`

	RejectionHistory []RejectionHistoryEntry `json:"rejection_history,omitempty"`
	CascadeChain     []CascadeChainEntry     `json:"cascade_chain,omitempty"`
	ResubmitHistory  []ResubmitRecord        `json:"resubmit_history,omitempty"`
	AppealHistory    []AppealRecord          `json:"appeal_history,omitempty"`
	ResubmitCount    int                     `json:"resubmit_count"`
	AppealCount      int                     `json:"appeal_count"`

	AwaitingRequestorAction bool `json:"awaiting_requestor_action"`
	AwaitingCascadeAction   bool `json:"awaiting_cascade_action"`
	// CascadePendingTier is the tier holding a returned instance; zero
	// when no cascade is pending.
	CascadePendingTier int `json:"cascade_pending_tier,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`

	// Version is the optimistic-concurrency counter; conditional updates
	// require the version read at the start of the transaction.
	Version     int64      `json:"version"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal returns true if the instance can accept no further transitions.
func (i *WorkflowInstance) IsTerminal() bool {
	switch i.Status {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CurrentStep returns the snapshot step the instance is waiting on, or
// nil when no approver holds it.
func (i *WorkflowInstance) CurrentStep() *WorkflowStep {
	if i.CurrentStepID == "" {
		return nil
	}
	return i.TemplateSnapshot.StepByID(i.CurrentStepID)
}

// RejectionHistoryEntry is an immutable record of one rejection. It is
// never mutated after creation; corrections are new entries.
type RejectionHistoryEntry struct {
	Tier                int       `json:"tier"`
	RejectedBy          string    `json:"rejected_by"`
	Reason              string    `json:"reason"`
	TargetTier          *int      `json:"target_tier,omitempty"`
	ReturnedToRequestor bool      `json:"returned_to_requestor"`
	Timestamp           time.Time `json:"timestamp"`
}

// CascadeChainEntry records one hop of a rejection propagating down the
// tiers. The chain as a whole reconstructs the full path a rejected
// request took back toward the requestor.
type CascadeChainEntry struct {
	FromTier  int       `json:"from_tier"`
	ToTier    *int      `json:"to_tier,omitempty"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ResubmitRecord captures one voluntary resubmission by the requestor.
type ResubmitRecord struct {
	ResubmittedBy        string    `json:"resubmitted_by"`
	Comments             string    `json:"comments,omitempty"`
	RejectionsAtResubmit int       `json:"rejections_at_resubmit"`
	Timestamp            time.Time `json:"timestamp"`
}

// AppealRecord captures one appeal by the requestor. Appeals restart the
// chain like a resubmission but remain distinguishable in audit queries.
type AppealRecord struct {
	AppealedBy string    `json:"appealed_by"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
