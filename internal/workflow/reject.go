package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/pkg/utils"
)

// RejectApproval rejects the instance at its current step on the first
// pass and starts the cascade: the rejection is recorded, the cascade
// target resolved, and the instance either moves down one tier or
// returns to the requestor.
func (e *Engine) RejectApproval(ctx context.Context, req RejectApprovalRequest) (*TransitionResult, error) {
	if err := validateActorAndTenant(req.TenantID, req.ActorID); err != nil {
		return nil, err
	}
	if err := utils.ValidateReason(req.Reason); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := utils.ValidateTier(req.Tier); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var instance *entity.WorkflowInstance
	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		instance, err = e.instances.GetByIDTx(tx, req.TenantID, req.InstanceID)
		if err != nil {
			return err
		}

		step, err := e.requireCurrentStep(instance, req.StepID)
		if err != nil {
			return err
		}
		if step.TierLevel != req.Tier {
			return fmt.Errorf("%w: tier %d does not hold the current step of instance %s (tier %d)",
				domain.ErrStateConflict, req.Tier, instance.ID, step.TierLevel)
		}
		if err := e.authorizeApprover(tx, instance, step, req.ActorID); err != nil {
			return err
		}

		// A tier that already received this instance by cascade must use
		// CascadeRejection; RejectApproval is the first-pass path only.
		if cascadeChainContainsTarget(instance.CascadeChain, req.Tier) {
			return fmt.Errorf("%w: instance %s was cascaded to tier %d; use cascade rejection",
				domain.ErrStateConflict, instance.ID, req.Tier)
		}

		target := domain.ResolveCascadeTarget(req.Tier)

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{
			ReturnedToRequestor: target.ReturnedToRequestor,
		})
		if err := machine.Fire(ctx, domain.TriggerReject); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		return e.applyRejection(tx, instance, step, req.Tier, req.ActorID, req.Reason, target, entity.ActionRejected)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Step rejected",
		zap.String("instance_id", instance.ID),
		zap.Int("tier", req.Tier),
		zap.Bool("returned_to_requestor", instance.AwaitingRequestorAction))

	return e.result(instance), nil
}

// CascadeRejection is invoked when the tier currently holding a returned
// instance rejects it again, propagating the rejection one more hop down
// the chain. Each hop is independent: stale calls against an instance
// that has already moved past that tier fail with ErrStateConflict.
func (e *Engine) CascadeRejection(ctx context.Context, req CascadeRejectionRequest) (*TransitionResult, error) {
	if err := validateActorAndTenant(req.TenantID, req.ActorID); err != nil {
		return nil, err
	}
	if err := utils.ValidateReason(req.Reason); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var instance *entity.WorkflowInstance
	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		instance, err = e.instances.GetByIDTx(tx, req.TenantID, req.InstanceID)
		if err != nil {
			return err
		}

		if !instance.AwaitingCascadeAction || instance.CascadePendingTier == 0 {
			return fmt.Errorf("%w: instance %s is not awaiting a cascade action (status %s)",
				domain.ErrStateConflict, instance.ID, instance.Status)
		}

		actingTier := instance.CascadePendingTier
		// The acting tier must have received the instance by cascade; a
		// first-pass rejection belongs to RejectApproval.
		if !cascadeChainContainsTarget(instance.CascadeChain, actingTier) {
			return fmt.Errorf("%w: tier %d never received instance %s by cascade",
				domain.ErrStateConflict, actingTier, instance.ID)
		}

		step, err := e.requireCurrentStep(instance, instance.CurrentStepID)
		if err != nil {
			return err
		}
		if err := e.authorizeApprover(tx, instance, step, req.ActorID); err != nil {
			return err
		}

		target := domain.ResolveCascadeTarget(actingTier)

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{
			ReturnedToRequestor: target.ReturnedToRequestor,
			AwaitingCascade:     true,
		})
		if err := machine.Fire(ctx, domain.TriggerCascade); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		return e.applyRejection(tx, instance, step, actingTier, req.ActorID, req.Reason, target, entity.ActionReturned)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Rejection cascaded",
		zap.String("instance_id", instance.ID),
		zap.Int("chain_length", len(instance.CascadeChain)),
		zap.Bool("returned_to_requestor", instance.AwaitingRequestorAction))

	return e.result(instance), nil
}

// applyRejection appends the rejection and cascade records, the ledger
// entry tagged with the cascade target, and repositions the instance.
func (e *Engine) applyRejection(
	tx *sql.Tx,
	instance *entity.WorkflowInstance,
	step *entity.WorkflowStep,
	tier int,
	actorID, reason string,
	target domain.CascadeTarget,
	action string,
) error {
	now := e.now()

	instance.RejectionHistory = append(instance.RejectionHistory, entity.RejectionHistoryEntry{
		Tier:                tier,
		RejectedBy:          actorID,
		Reason:              reason,
		TargetTier:          target.TargetTier,
		ReturnedToRequestor: target.ReturnedToRequestor,
		Timestamp:           now,
	})
	instance.CascadeChain = append(instance.CascadeChain, entity.CascadeChainEntry{
		FromTier:  tier,
		ToTier:    target.TargetTier,
		Actor:     actorID,
		Reason:    reason,
		Timestamp: now,
	})

	var comments string
	if target.ReturnedToRequestor {
		comments = fmt.Sprintf("%s [returned to requestor]", reason)
	} else {
		comments = fmt.Sprintf("%s [cascaded to tier %d]", reason, *target.TargetTier)
	}

	entry := &entity.StepHistoryEntry{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		StepID:     step.ID,
		StepOrder:  step.StepOrder,
		Action:     action,
		Actor:      actorID,
		Comments:   comments,
	}
	if err := e.history.Append(tx, entry); err != nil {
		return err
	}

	if target.ReturnedToRequestor {
		instance.AwaitingRequestorAction = true
		instance.AwaitingCascadeAction = false
		instance.CascadePendingTier = 0
		instance.CurrentStepID = ""
	} else {
		prev := instance.TemplateSnapshot.FirstStepOfTier(*target.TargetTier)
		if prev == nil {
			return fmt.Errorf("%w: template snapshot has no step for tier %d",
				domain.ErrStateConflict, *target.TargetTier)
		}
		instance.AwaitingRequestorAction = false
		instance.AwaitingCascadeAction = true
		instance.CascadePendingTier = *target.TargetTier
		instance.CurrentStepID = prev.ID
		instance.CurrentStepOrder = prev.StepOrder
		instance.CurrentTierLevel = prev.TierLevel
	}

	if err := e.instances.UpdateWithVersion(tx, instance); err != nil {
		return err
	}

	if target.ReturnedToRequestor {
		return e.enqueueRequestorNotification(tx, instance,
			fmt.Sprintf("%s request returned: %s", instance.Category, reason))
	}
	return e.enqueueTierNotification(tx, instance, *target.TargetTier,
		fmt.Sprintf("%s request rejected at tier %d, cascaded to tier %d", instance.Category, tier, *target.TargetTier))
}

// cascadeChainContainsTarget reports whether the chain already cascaded
// the instance to the given tier. This is how an initial rejection is
// distinguished from a cascade hop.
func cascadeChainContainsTarget(chain []entity.CascadeChainEntry, tier int) bool {
	for i := range chain {
		if chain[i].ToTier != nil && *chain[i].ToTier == tier {
			return true
		}
	}
	return false
}
