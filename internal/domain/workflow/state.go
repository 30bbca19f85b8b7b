package workflow

// Status represents a workflow instance status in the approval lifecycle
type Status string

const (
	// StatusPending is set when an instance is created or resubmitted and
	// the first step has not yet been acted on.
	StatusPending Status = "pending"
	// StatusInProgress means at least one tier approved and more remain.
	StatusInProgress Status = "in_progress"
	// StatusApproved is terminal: every tier approved.
	StatusApproved Status = "approved"
	// StatusRejected is terminal: a hard reject with no cascade path.
	StatusRejected Status = "rejected"
	// StatusCancelled is terminal: requestor-initiated cancellation.
	StatusCancelled Status = "cancelled"
	// StatusReturned is non-terminal: rejected and propagating down the
	// chain or awaiting requestor action.
	StatusReturned Status = "returned"
	// StatusEscalated marks an administrative escalation.
	StatusEscalated Status = "escalated"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusCancelled:  true,
	StatusReturned:   true,
	StatusEscalated:  true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a valid instance status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
