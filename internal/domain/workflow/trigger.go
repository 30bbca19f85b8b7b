package workflow

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerCascade  Trigger = "CASCADE"
	TriggerResubmit Trigger = "RESUBMIT"
	TriggerAppeal   Trigger = "APPEAL"
	TriggerCancel   Trigger = "CANCEL"
	TriggerEscalate Trigger = "ESCALATE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
