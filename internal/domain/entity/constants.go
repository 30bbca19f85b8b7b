package entity

// Status constants for WorkflowInstance
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusReturned   = "returned"
	StatusEscalated  = "escalated"
)

// Category constants for WorkflowTemplate
const (
	CategoryPurchase = "purchase"
	CategoryTimeOff  = "time_off"
	CategoryPermit   = "permit"
	CategoryExpense  = "expense"
	CategoryContract = "contract"
	CategoryCustom   = "custom"
)

var validCategories = map[string]bool{
	CategoryPurchase: true,
	CategoryTimeOff:  true,
	CategoryPermit:   true,
	CategoryExpense:  true,
	CategoryContract: true,
	CategoryCustom:   true,
}

// IsValidCategory returns true if the category is a known workflow category
func IsValidCategory(category string) bool {
	return validCategories[category]
}

// Step type constants for WorkflowStep
const (
	StepTypeApproval = "approval"
	StepTypeReview   = "review"
)

// Action constants for step history ledger entries
const (
	ActionApproved    = "approved"
	ActionRejected    = "rejected"
	ActionSkipped     = "skipped"
	ActionEscalated   = "escalated"
	ActionDelegated   = "delegated"
	ActionReassigned  = "reassigned"
	ActionResubmitted = "resubmitted"
	ActionCancelled   = "cancelled"
	ActionReturned    = "returned"
)

// Outbox status constants
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)
