package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/repository"
	"github.com/garyjia/workflow-engine/pkg/database"
	"github.com/garyjia/workflow-engine/pkg/utils"
)

// Policy holds the configurable limits of the engine. Zero means
// unlimited.
type Policy struct {
	MaxResubmits int
	MaxAppeals   int
}

// Engine drives workflow instances through their approval chain. Every
// top-level operation is a single transaction: read the instance with
// its version, validate preconditions against that snapshot, then commit
// the ledger append and the conditional instance update together. A
// failed version check surfaces as ErrStateConflict and leaves nothing
// behind.
type Engine struct {
	db          *database.DB
	templates   *repository.TemplateRepository
	instances   *repository.InstanceRepository
	history     *repository.HistoryRepository
	delegations *repository.DelegationRepository
	outbox      *repository.OutboxRepository
	policy      Policy
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine creates a new workflow engine
func NewEngine(
	db *database.DB,
	templates *repository.TemplateRepository,
	instances *repository.InstanceRepository,
	history *repository.HistoryRepository,
	delegations *repository.DelegationRepository,
	outbox *repository.OutboxRepository,
	policy Policy,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:          db,
		templates:   templates,
		instances:   instances,
		history:     history,
		delegations: delegations,
		outbox:      outbox,
		policy:      policy,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateInstance starts a new workflow instance: the template's step
// structure is snapshotted into the instance so later template edits
// cannot affect it, and tier 1 is notified.
func (e *Engine) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*TransitionResult, error) {
	if err := utils.ValidateTenant(req.TenantID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := utils.ValidateActor(req.StartedBy); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	template, err := e.templates.GetByID(ctx, req.TenantID, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.Active {
		return nil, fmt.Errorf("%w: template %s is inactive", domain.ErrValidation, template.ID)
	}
	first := template.FirstStep()
	if first == nil {
		return nil, fmt.Errorf("%w: template %s has no steps", domain.ErrValidation, template.ID)
	}

	metadata, err := entity.NewMetadataForCategory(template.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	metadata.ApplyChanges(req.Metadata)

	instance := &entity.WorkflowInstance{
		ID:               uuid.New().String(),
		TenantID:         req.TenantID,
		TemplateID:       template.ID,
		Category:         template.Category,
		TemplateSnapshot: template.Snapshot(),
		Status:           entity.StatusPending,
		StartedBy:        req.StartedBy,
		CurrentStepID:    first.ID,
		CurrentStepOrder: first.StepOrder,
		CurrentTierLevel: first.TierLevel,
		Metadata:         metadata,
	}

	err = e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := e.instances.Create(tx, instance); err != nil {
			return err
		}
		return e.enqueueTierNotification(tx, instance, first.TierLevel,
			fmt.Sprintf("%s request awaiting tier %d approval", instance.Category, first.TierLevel))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.String("instance_id", instance.ID),
		zap.String("tenant_id", instance.TenantID),
		zap.String("category", instance.Category))

	return e.result(instance), nil
}

// ApproveStep approves the instance's current step. The last tier's
// approval completes the instance; otherwise the next step's tier is
// notified.
func (e *Engine) ApproveStep(ctx context.Context, req ApproveStepRequest) (*TransitionResult, error) {
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

		step, err := e.requireCurrentStep(instance, req.StepID)
		if err != nil {
			return err
		}
		if err := e.authorizeApprover(tx, instance, step, req.ActorID); err != nil {
			return err
		}

		lastStep := instance.CurrentStepOrder >= instance.TemplateSnapshot.LastStepOrder()
		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{
			LastStep:        lastStep,
			AwaitingCascade: instance.AwaitingCascadeAction,
		})
		if err := machine.Fire(ctx, domain.TriggerApprove); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		entry := &entity.StepHistoryEntry{
			TenantID:   instance.TenantID,
			InstanceID: instance.ID,
			StepID:     step.ID,
			StepOrder:  step.StepOrder,
			Action:     entity.ActionApproved,
			Actor:      req.ActorID,
			Comments:   req.Comments,
		}
		if err := e.history.Append(tx, entry); err != nil {
			return err
		}

		if instance.Status == entity.StatusApproved {
			completed := e.now()
			instance.CompletedAt = &completed
			instance.CurrentStepID = ""
			instance.AwaitingRequestorAction = false
			instance.AwaitingCascadeAction = false
			instance.CascadePendingTier = 0
		} else {
			next := instance.TemplateSnapshot.StepByOrder(instance.CurrentStepOrder + 1)
			if next == nil {
				return fmt.Errorf("%w: template snapshot has no step after order %d",
					domain.ErrStateConflict, instance.CurrentStepOrder)
			}
			instance.CurrentStepID = next.ID
			instance.CurrentStepOrder = next.StepOrder
			instance.CurrentTierLevel = next.TierLevel
			// An approval from a cascaded position resumes the normal
			// chain and closes the cascade.
			instance.AwaitingCascadeAction = false
			instance.CascadePendingTier = 0
		}

		if err := e.instances.UpdateWithVersion(tx, instance); err != nil {
			return err
		}

		if instance.Status == entity.StatusApproved {
			return e.enqueueRequestorNotification(tx, instance,
				fmt.Sprintf("%s request fully approved", instance.Category))
		}
		return e.enqueueTierNotification(tx, instance, instance.CurrentTierLevel,
			fmt.Sprintf("%s request awaiting tier %d approval", instance.Category, instance.CurrentTierLevel))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Step approved",
		zap.String("instance_id", instance.ID),
		zap.String("status", instance.Status),
		zap.Int("step_order", instance.CurrentStepOrder))

	return e.result(instance), nil
}

// EscalateStep flags the instance's current step for administrative
// escalation. The step assignment is unchanged; the status records that
// the normal chain has been interrupted.
func (e *Engine) EscalateStep(ctx context.Context, req EscalateStepRequest) (*TransitionResult, error) {
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

		step, err := e.requireCurrentStep(instance, req.StepID)
		if err != nil {
			return err
		}

		machine := domain.NewInstanceMachine(domain.Status(instance.Status), domain.TransitionGuards{})
		if err := machine.Fire(ctx, domain.TriggerEscalate); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateConflict, err)
		}
		instance.Status = machine.Status().String()

		entry := &entity.StepHistoryEntry{
			TenantID:   instance.TenantID,
			InstanceID: instance.ID,
			StepID:     step.ID,
			StepOrder:  step.StepOrder,
			Action:     entity.ActionEscalated,
			Actor:      req.ActorID,
			Comments:   req.Reason,
		}
		if err := e.history.Append(tx, entry); err != nil {
			return err
		}

		if err := e.instances.UpdateWithVersion(tx, instance); err != nil {
			return err
		}

		return e.enqueueTierNotification(tx, instance, step.TierLevel,
			fmt.Sprintf("%s request escalated at tier %d", instance.Category, step.TierLevel))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Warn("Step escalated",
		zap.String("instance_id", instance.ID),
		zap.String("actor", req.ActorID))

	return e.result(instance), nil
}

// GetInstance retrieves an instance by id
func (e *Engine) GetInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error) {
	return e.instances.GetByID(ctx, tenantID, instanceID)
}

// GetHistory retrieves the instance's full ledger in order
func (e *Engine) GetHistory(ctx context.Context, tenantID, instanceID string) ([]*entity.StepHistoryEntry, error) {
	return e.history.ListByInstance(ctx, tenantID, instanceID)
}

// requireCurrentStep validates that stepID names the step the instance
// is actually waiting on.
func (e *Engine) requireCurrentStep(instance *entity.WorkflowInstance, stepID string) (*entity.WorkflowStep, error) {
	if instance.CurrentStepID == "" {
		return nil, fmt.Errorf("%w: instance %s has no current step (status %s)",
			domain.ErrStateConflict, instance.ID, instance.Status)
	}
	if instance.CurrentStepID != stepID {
		return nil, fmt.Errorf("%w: step %s is not the current step of instance %s",
			domain.ErrStateConflict, stepID, instance.ID)
	}
	step := instance.CurrentStep()
	if step == nil {
		return nil, fmt.Errorf("%w: step %s", domain.ErrNotFound, stepID)
	}
	return step, nil
}

func (e *Engine) enqueueTierNotification(tx *sql.Tx, instance *entity.WorkflowInstance, tier int, summary string) error {
	return e.outbox.Enqueue(tx, &entity.OutboxEntry{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		Category:   instance.Category,
		TargetTier: tier,
		Summary:    summary,
	})
}

func (e *Engine) enqueueRequestorNotification(tx *sql.Tx, instance *entity.WorkflowInstance, summary string) error {
	return e.outbox.Enqueue(tx, &entity.OutboxEntry{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		Category:   instance.Category,
		TargetUser: instance.StartedBy,
		Summary:    summary,
	})
}

func (e *Engine) result(instance *entity.WorkflowInstance) *TransitionResult {
	result := &TransitionResult{
		TenantID:            instance.TenantID,
		InstanceID:          instance.ID,
		Status:              instance.Status,
		CurrentStepID:       instance.CurrentStepID,
		CurrentStepOrder:    instance.CurrentStepOrder,
		Tier:                instance.CurrentTierLevel,
		ReturnedToRequestor: instance.AwaitingRequestorAction,
		ResubmitCount:       instance.ResubmitCount,
		AppealCount:         instance.AppealCount,
		Version:             instance.Version,
	}
	if instance.CascadePendingTier > 0 {
		tier := instance.CascadePendingTier
		result.TargetTier = &tier
	}
	return result
}

func validateActorAndTenant(tenantID, actorID string) error {
	if err := utils.ValidateTenant(tenantID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := utils.ValidateActor(actorID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
