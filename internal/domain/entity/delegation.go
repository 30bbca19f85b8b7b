package entity

import "time"

// DelegationRule is a time-bounded substitution of one approver for
// another. It overlays, never owns, a step's approver assignment for its
// date range.
type DelegationRule struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	FromUser  string    `json:"from_user"`
	ToUser    string    `json:"to_user"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// AppliesOn returns true if the rule is active and its date window
// contains the given time.
func (r *DelegationRule) AppliesOn(t time.Time) bool {
	if !r.Active {
		return false
	}
	return !t.Before(r.StartDate) && !t.After(r.EndDate)
}
