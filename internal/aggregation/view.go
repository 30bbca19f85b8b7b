// Package aggregation provides the unified pending-approvals inbox. It
// is a read-only projection: it merges non-terminal engine instances
// with category-specific sources that predate or bypass the engine, and
// performs no writes.
package aggregation

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/repository"
)

// Urgency levels for pending approvals, derived from age.
const (
	UrgencyNormal = "normal"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// PendingApproval is one row of the unified inbox.
type PendingApproval struct {
	InstanceID  string    `json:"instance_id"`
	TenantID    string    `json:"tenant_id"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	StartedBy   string    `json:"started_by"`
	StepOrder   int       `json:"step_order"`
	TotalSteps  int       `json:"total_steps"`
	TierLevel   int       `json:"tier_level"`
	Urgency     string    `json:"urgency"`
	Source      string    `json:"source"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Source supplies pending approvals from a system outside the engine,
// such as legacy purchase requests that predate it.
type Source interface {
	Name() string
	Pending(ctx context.Context, tenantID string) ([]PendingApproval, error)
}

// View merges engine instances and legacy sources into one inbox.
type View struct {
	instances *repository.InstanceRepository
	sources   []Source
	logger    *zap.Logger
	now       func() time.Time
}

// NewView creates a new aggregation view
func NewView(instances *repository.InstanceRepository, sources []Source, logger *zap.Logger) *View {
	return &View{
		instances: instances,
		sources:   sources,
		logger:    logger,
		now:       time.Now,
	}
}

var nonTerminalStatuses = []string{
	entity.StatusPending,
	entity.StatusInProgress,
	entity.StatusReturned,
	entity.StatusEscalated,
}

// PendingApprovals returns the tenant's unified inbox, oldest first. An
// instance id never appears twice: the engine's record wins over any
// legacy source reporting the same id, and a failing legacy source is
// skipped with a warning rather than failing the whole view.
func (v *View) PendingApprovals(ctx context.Context, tenantID string) ([]PendingApproval, error) {
	instances, err := v.instances.ListByStatuses(ctx, tenantID, nonTerminalStatuses)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(instances))
	result := make([]PendingApproval, 0, len(instances))

	for _, instance := range instances {
		seen[instance.ID] = true
		result = append(result, PendingApproval{
			InstanceID:  instance.ID,
			TenantID:    instance.TenantID,
			Category:    instance.Category,
			Status:      instance.Status,
			StartedBy:   instance.StartedBy,
			StepOrder:   instance.CurrentStepOrder,
			TotalSteps:  len(instance.TemplateSnapshot.Steps),
			TierLevel:   instance.CurrentTierLevel,
			Urgency:     v.urgency(instance.CreatedAt),
			Source:      "engine",
			SubmittedAt: instance.CreatedAt,
		})
	}

	for _, source := range v.sources {
		pending, err := source.Pending(ctx, tenantID)
		if err != nil {
			v.logger.Warn("Aggregation source failed, skipping",
				zap.String("source", source.Name()),
				zap.Error(err))
			continue
		}
		for _, p := range pending {
			if seen[p.InstanceID] {
				continue
			}
			seen[p.InstanceID] = true
			if p.Urgency == "" {
				p.Urgency = v.urgency(p.SubmittedAt)
			}
			if p.Source == "" {
				p.Source = source.Name()
			}
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})

	return result, nil
}

func (v *View) urgency(submittedAt time.Time) string {
	age := v.now().Sub(submittedAt)
	switch {
	case age > 72*time.Hour:
		return UrgencyHigh
	case age > 24*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyNormal
	}
}
