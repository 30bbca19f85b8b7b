package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// ResolveApprover returns who must act on the step on the given date:
// the designated approver, or an active delegate whose window contains
// the date. When more than one active rule overlaps, the most recently
// created rule wins and a conflict warning is logged.
func (e *Engine) ResolveApprover(ctx context.Context, tenantID, designated string, on time.Time) (string, error) {
	rules, err := e.delegations.ActiveForUser(ctx, tenantID, designated, on)
	if err != nil {
		return "", err
	}
	return e.pickDelegate(tenantID, designated, rules), nil
}

// resolveApproverTx is ResolveApprover on the engine's open write
// transaction. Mutations hold a pool connection for the whole
// transaction, so the lookup must reuse it rather than wait on the pool.
func (e *Engine) resolveApproverTx(tx *sql.Tx, tenantID, designated string, on time.Time) (string, error) {
	rules, err := e.delegations.ActiveForUserTx(tx, tenantID, designated, on)
	if err != nil {
		return "", err
	}
	return e.pickDelegate(tenantID, designated, rules), nil
}

func (e *Engine) pickDelegate(tenantID, designated string, rules []*entity.DelegationRule) string {
	if len(rules) == 0 {
		return designated
	}
	if len(rules) > 1 {
		e.logger.Warn("Overlapping delegation rules, picking most recent",
			zap.String("tenant_id", tenantID),
			zap.String("from_user", designated),
			zap.Int("rule_count", len(rules)),
			zap.String("picked_rule_id", rules[0].ID))
	}
	return rules[0].ToUser
}

// AddDelegation registers a new delegation rule.
func (e *Engine) AddDelegation(ctx context.Context, rule *entity.DelegationRule) error {
	if rule.FromUser == "" || rule.ToUser == "" {
		return fmt.Errorf("%w: delegation requires from_user and to_user", domain.ErrValidation)
	}
	if rule.EndDate.Before(rule.StartDate) {
		return fmt.Errorf("%w: delegation end date precedes start date", domain.ErrValidation)
	}
	return e.delegations.Create(ctx, rule)
}

// authorizeApprover verifies the actor may act on the step: either the
// designated approver, or the approver's currently active delegate.
func (e *Engine) authorizeApprover(tx *sql.Tx, instance *entity.WorkflowInstance, step *entity.WorkflowStep, actorID string) error {
	if actorID == step.ApproverRole {
		return nil
	}

	resolved, err := e.resolveApproverTx(tx, instance.TenantID, step.ApproverRole, e.now())
	if err != nil {
		return err
	}
	if actorID == resolved {
		e.logger.Info("Delegate acting on step",
			zap.String("instance_id", instance.ID),
			zap.String("designated", step.ApproverRole),
			zap.String("delegate", actorID))
		return nil
	}

	return fmt.Errorf("%w: actor %s is not the assigned approver for step %s",
		domain.ErrAuthorization, actorID, step.ID)
}
