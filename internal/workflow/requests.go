package workflow

// Every request carries an explicit tenant id and actor identity; the
// engine holds no ambient organization context.

// CreateInstanceRequest starts a new instance against a template.
type CreateInstanceRequest struct {
	TenantID   string
	TemplateID string
	StartedBy  string
	Metadata   map[string]string
}

// ApproveStepRequest approves the instance's current step.
type ApproveStepRequest struct {
	TenantID   string
	InstanceID string
	StepID     string
	ActorID    string
	Comments   string
}

// RejectApprovalRequest rejects the instance at the given tier, starting
// a cascade back down the chain. Reason is mandatory.
type RejectApprovalRequest struct {
	TenantID   string
	InstanceID string
	StepID     string
	Tier       int
	ActorID    string
	Reason     string
}

// CascadeRejectionRequest propagates a returned instance one hop further
// down from the tier currently holding it. Reason is mandatory.
type CascadeRejectionRequest struct {
	TenantID   string
	InstanceID string
	ActorID    string
	Reason     string
}

// ResubmitRequest restarts a returned instance at step 1. Changes, if
// present, are merged into the instance's metadata.
type ResubmitRequest struct {
	TenantID   string
	InstanceID string
	ActorID    string
	Changes    map[string]string
	Comments   string
}

// CancelRequest cancels a non-terminal instance.
type CancelRequest struct {
	TenantID   string
	InstanceID string
	ActorID    string
	Reason     string
}

// AppealRequest restarts a returned instance at step 1, recorded as an
// appeal. AppealReason is mandatory.
type AppealRequest struct {
	TenantID     string
	InstanceID   string
	ActorID      string
	AppealReason string
}

// EscalateStepRequest marks the instance's current step administratively
// escalated.
type EscalateStepRequest struct {
	TenantID   string
	InstanceID string
	StepID     string
	ActorID    string
	Reason     string
}

// TransitionResult is returned by every mutation: the new status plus
// enough identifiers for the caller to refresh its view without
// re-deriving cascade logic.
type TransitionResult struct {
	TenantID            string `json:"tenant_id"`
	InstanceID          string `json:"instance_id"`
	Status              string `json:"status"`
	CurrentStepID       string `json:"current_step_id,omitempty"`
	CurrentStepOrder    int    `json:"current_step_order"`
	Tier                int    `json:"tier"`
	TargetTier          *int   `json:"target_tier,omitempty"`
	ReturnedToRequestor bool   `json:"returned_to_requestor"`
	ResubmitCount       int    `json:"resubmit_count"`
	AppealCount         int    `json:"appeal_count"`
	Version             int64  `json:"version"`
}
