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

// Resubmit restarts a returned instance at step 1. Only the original
// requestor may resubmit, and only while the instance awaits requestor
// action. Supplied changes are merged into the instance's metadata.
func (e *Engine) Resubmit(ctx context.Context, req ResubmitRequest) (*TransitionResult, error) {
	if err := validateActorAndTenant(req.TenantID, req.ActorID); err != nil {
		return nil, err
	}

	var instance *entity.WorkflowInstance
	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		instance, err = e.instances.GetByIDTx(tx, req.TenantID, req.InstanceID)
		if err != nil {
			return err
		}

		if err := e.authorizeRequestor(instance, req.ActorID); err != nil {
			return err
		}
		if !instance.AwaitingRequestorAction {
			return fmt.Errorf("%w: instance %s is not awaiting requestor action (status %s)",
				domain.ErrStateConflict, instance.ID, instance.Status)
		}
		if e.policy.MaxResubmits > 0 && instance.ResubmitCount >= e.policy.MaxResubmits {
			return fmt.Errorf("%w: resubmit limit of %d reached", domain.ErrValidation, e.policy.MaxResubmits)
		}

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{})
		if err := machine.Fire(ctx, domain.TriggerResubmit); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		instance.ResubmitHistory = append(instance.ResubmitHistory, entity.ResubmitRecord{
			ResubmittedBy:        req.ActorID,
			Comments:             req.Comments,
			RejectionsAtResubmit: len(instance.RejectionHistory),
			Timestamp:            e.now(),
		})
		instance.ResubmitCount++

		return e.restartAtFirstStep(tx, instance, req.ActorID, req.Comments, req.Changes)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance resubmitted",
		zap.String("instance_id", instance.ID),
		zap.Int("resubmit_count", instance.ResubmitCount))

	return e.result(instance), nil
}

// Appeal restarts a returned instance at step 1 like a resubmission, but
// is recorded separately so appeals remain distinguishable from
// voluntary resubmissions in audit queries. The appeal reason is
// mandatory.
func (e *Engine) Appeal(ctx context.Context, req AppealRequest) (*TransitionResult, error) {
	if err := validateActorAndTenant(req.TenantID, req.ActorID); err != nil {
		return nil, err
	}
	if err := utils.ValidateReason(req.AppealReason); err != nil {
		return nil, fmt.Errorf("%w: appeal reason: %v", domain.ErrValidation, err)
	}

	var instance *entity.WorkflowInstance
	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		instance, err = e.instances.GetByIDTx(tx, req.TenantID, req.InstanceID)
		if err != nil {
			return err
		}

		if err := e.authorizeRequestor(instance, req.ActorID); err != nil {
			return err
		}
		if !instance.AwaitingRequestorAction {
			return fmt.Errorf("%w: instance %s is not awaiting requestor action (status %s)",
				domain.ErrStateConflict, instance.ID, instance.Status)
		}
		if e.policy.MaxAppeals > 0 && instance.AppealCount >= e.policy.MaxAppeals {
			return fmt.Errorf("%w: appeal limit of %d reached", domain.ErrValidation, e.policy.MaxAppeals)
		}

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{})
		if err := machine.Fire(ctx, domain.TriggerAppeal); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		instance.AppealHistory = append(instance.AppealHistory, entity.AppealRecord{
			AppealedBy: req.ActorID,
			Reason:     req.AppealReason,
			Timestamp:  e.now(),
		})
		instance.AppealCount++

		comments := fmt.Sprintf("appeal: %s", req.AppealReason)
		return e.restartAtFirstStep(tx, instance, req.ActorID, comments, nil)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance appealed",
		zap.String("instance_id", instance.ID),
		zap.Int("appeal_count", instance.AppealCount))

	return e.result(instance), nil
}

// Cancel terminates the instance. Only the original requestor may
// cancel, from any non-terminal status.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*TransitionResult, error) {
	if err := validateActorAndTenant(req.TenantID, req.ActorID); err != nil {
		return nil, err
	}

	var instance *entity.WorkflowInstance
	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		instance, err = e.instances.GetByIDTx(tx, req.TenantID, req.InstanceID)
		if err != nil {
			return err
		}

		if err := e.authorizeRequestor(instance, req.ActorID); err != nil {
			return err
		}

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{})
		if err := machine.Fire(ctx, domain.TriggerCancel); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		entry := &entity.StepHistoryEntry{
			TenantID:   instance.TenantID,
			InstanceID: instance.ID,
			StepID:     instance.CurrentStepID,
			StepOrder:  instance.CurrentStepOrder,
			Action:     entity.ActionCancelled,
			Actor:      req.ActorID,
			Comments:   req.Reason,
		}
		if err := e.history.Append(tx, entry); err != nil {
			return err
		}

		completed := e.now()
		instance.CompletedAt = &completed
		instance.CurrentStepID = ""
		instance.AwaitingRequestorAction = false
		instance.AwaitingCascadeAction = false
		instance.CascadePendingTier = 0

		return e.instances.UpdateWithVersion(tx, instance)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance cancelled", zap.String("instance_id", instance.ID))

	return e.result(instance), nil
}

// restartAtFirstStep resets the instance to the template's first step,
// clears all cascade state, merges metadata changes, and notifies tier 1.
func (e *Engine) restartAtFirstStep(
	tx *sql.Tx,
	instance *entity.WorkflowInstance,
	actorID, comments string,
	changes map[string]string,
) error {
	first := instance.TemplateSnapshot.FirstStep()
	if first == nil {
		return fmt.Errorf("%w: template snapshot has no steps", domain.ErrStateConflict)
	}

	instance.CurrentStepID = first.ID
	instance.CurrentStepOrder = first.StepOrder
	instance.CurrentTierLevel = first.TierLevel
	instance.AwaitingRequestorAction = false
	instance.AwaitingCascadeAction = false
	instance.CascadePendingTier = 0

	if len(changes) > 0 {
		if instance.Metadata == nil {
			metadata, err := entity.NewMetadataForCategory(instance.Category)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}
			instance.Metadata = metadata
		}
		instance.Metadata.ApplyChanges(changes)
	}

	entry := &entity.StepHistoryEntry{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		StepID:     first.ID,
		StepOrder:  first.StepOrder,
		Action:     entity.ActionResubmitted,
		Actor:      actorID,
		Comments:   comments,
	}
	if err := e.history.Append(tx, entry); err != nil {
		return err
	}

	if err := e.instances.UpdateWithVersion(tx, instance); err != nil {
		return err
	}

	return e.enqueueTierNotification(tx, instance, first.TierLevel,
		fmt.Sprintf("%s request resubmitted, awaiting tier %d approval", instance.Category, first.TierLevel))
}

// authorizeRequestor verifies the actor is the original requestor.
func (e *Engine) authorizeRequestor(instance *entity.WorkflowInstance, actorID string) error {
	if instance.StartedBy != actorID {
		return fmt.Errorf("%w: actor %s is not the requestor of instance %s",
			domain.ErrAuthorization, actorID, instance.ID)
	}
	return nil
}
