package entity

import "time"

// WorkflowTemplate defines the ordered approval steps for a category of
// request. Templates are immutable once referenced by an instance: the
// engine snapshots the step structure into the instance at creation time.
type WorkflowTemplate struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Steps     []WorkflowStep `json:"steps"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WorkflowStep is a single approval step within a template.
type WorkflowStep struct {
	ID           string `json:"id"`
	StepOrder    int    `json:"step_order"`
	TierLevel    int    `json:"tier_level"`
	ApproverRole string `json:"approver_role"`
	StepType     string `json:"step_type"`
}

// FirstStep returns the step with the lowest order, or nil if the
// template has no steps.
func (t *WorkflowTemplate) FirstStep() *WorkflowStep {
	return firstStep(t.Steps)
}

func firstStep(steps []WorkflowStep) *WorkflowStep {
	var first *WorkflowStep
	for i := range steps {
		if first == nil || steps[i].StepOrder < first.StepOrder {
			first = &steps[i]
		}
	}
	return first
}

// TemplateSnapshot is the structural copy of a template stored with each
// instance, insulating in-flight instances from template edits.
type TemplateSnapshot struct {
	TemplateID string         `json:"template_id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Steps      []WorkflowStep `json:"steps"`
}

// Snapshot captures the template's current structure.
func (t *WorkflowTemplate) Snapshot() TemplateSnapshot {
	steps := make([]WorkflowStep, len(t.Steps))
	copy(steps, t.Steps)
	return TemplateSnapshot{
		TemplateID: t.ID,
		Name:       t.Name,
		Category:   t.Category,
		Steps:      steps,
	}
}

// FirstStep returns the snapshot's step with the lowest order.
func (s *TemplateSnapshot) FirstStep() *WorkflowStep {
	return firstStep(s.Steps)
}

// StepByID returns the step with the given id, or nil.
func (s *TemplateSnapshot) StepByID(stepID string) *WorkflowStep {
	for i := range s.Steps {
		if s.Steps[i].ID == stepID {
			return &s.Steps[i]
		}
	}
	return nil
}

// StepByOrder returns the step with the given order, or nil.
func (s *TemplateSnapshot) StepByOrder(order int) *WorkflowStep {
	for i := range s.Steps {
		if s.Steps[i].StepOrder == order {
			return &s.Steps[i]
		}
	}
	return nil
}

// FirstStepOfTier returns the lowest-order step belonging to the given
// tier, or nil if the tier does not appear in the snapshot.
func (s *TemplateSnapshot) FirstStepOfTier(tier int) *WorkflowStep {
	var found *WorkflowStep
	for i := range s.Steps {
		if s.Steps[i].TierLevel != tier {
			continue
		}
		if found == nil || s.Steps[i].StepOrder < found.StepOrder {
			found = &s.Steps[i]
		}
	}
	return found
}

// LastStepOrder returns the highest step order in the snapshot.
func (s *TemplateSnapshot) LastStepOrder() int {
	max := 0
	for i := range s.Steps {
		if s.Steps[i].StepOrder > max {
			max = s.Steps[i].StepOrder
		}
	}
	return max
}
