package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// InstanceRepository handles workflow instance database operations.
// Mutations accept an optional *sql.Tx so the engine can commit the
// instance update and the ledger append atomically.
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, tenant_id, template_id, category, template_snapshot, status,
	started_by, current_step_id, current_step_order, current_tier_level,
	rejection_history, cascade_chain, resubmit_history, appeal_history,
	resubmit_count, appeal_count, awaiting_requestor_action,
	awaiting_cascade_action, cascade_pending_tier, metadata, version,
	completed_at, created_at, updated_at`

// Create inserts a new workflow instance with version 1
func (r *InstanceRepository) Create(tx *sql.Tx, instance *entity.WorkflowInstance) error {
	cols, err := marshalInstanceJSON(instance)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_instances (
			id, tenant_id, template_id, category, template_snapshot, status,
			started_by, current_step_id, current_step_order, current_tier_level,
			rejection_history, cascade_chain, resubmit_history, appeal_history,
			resubmit_count, appeal_count, awaiting_requestor_action,
			awaiting_cascade_action, cascade_pending_tier, metadata, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	args := []interface{}{
		instance.ID,
		instance.TenantID,
		instance.TemplateID,
		instance.Category,
		cols.snapshot,
		instance.Status,
		instance.StartedBy,
		nullString(instance.CurrentStepID),
		instance.CurrentStepOrder,
		instance.CurrentTierLevel,
		cols.rejectionHistory,
		cols.cascadeChain,
		cols.resubmitHistory,
		cols.appealHistory,
		instance.ResubmitCount,
		instance.AppealCount,
		instance.AwaitingRequestorAction,
		instance.AwaitingCascadeAction,
		instance.CascadePendingTier,
		cols.metadata,
	}

	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to create instance: %v", workflow.ErrPersistence, err)
	}

	instance.Version = 1
	return nil
}

// GetByID retrieves an instance by id within a tenant
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND id = ?`
	row := r.db.QueryRowContext(ctx, query, tenantID, id)
	return r.scanInstance(row, id)
}

// GetByIDTx retrieves an instance inside a transaction, so the engine's
// precondition checks and the conditional update see the same snapshot
func (r *InstanceRepository) GetByIDTx(tx *sql.Tx, tenantID, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND id = ?`
	row := tx.QueryRow(query, tenantID, id)
	return r.scanInstance(row, id)
}

// UpdateWithVersion performs the optimistic-concurrency conditional
// update: the write succeeds only if the stored version still equals the
// version read at the start of the transaction. On success the
// instance's version is incremented in place.
func (r *InstanceRepository) UpdateWithVersion(tx *sql.Tx, instance *entity.WorkflowInstance) error {
	cols, err := marshalInstanceJSON(instance)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_instances SET
			status = ?,
			current_step_id = ?,
			current_step_order = ?,
			current_tier_level = ?,
			rejection_history = ?,
			cascade_chain = ?,
			resubmit_history = ?,
			appeal_history = ?,
			resubmit_count = ?,
			appeal_count = ?,
			awaiting_requestor_action = ?,
			awaiting_cascade_action = ?,
			cascade_pending_tier = ?,
			metadata = ?,
			completed_at = ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND id = ? AND version = ?
	`

	var completedAt sql.NullTime
	if instance.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *instance.CompletedAt, Valid: true}
	}

	result, err := tx.Exec(query,
		instance.Status,
		nullString(instance.CurrentStepID),
		instance.CurrentStepOrder,
		instance.CurrentTierLevel,
		cols.rejectionHistory,
		cols.cascadeChain,
		cols.resubmitHistory,
		cols.appealHistory,
		instance.ResubmitCount,
		instance.AppealCount,
		instance.AwaitingRequestorAction,
		instance.AwaitingCascadeAction,
		instance.CascadePendingTier,
		cols.metadata,
		completedAt,
		instance.TenantID,
		instance.ID,
		instance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to update instance: %v", workflow.ErrPersistence, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read rows affected: %v", workflow.ErrPersistence, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: instance %s was modified concurrently (version %d)",
			workflow.ErrStateConflict, instance.ID, instance.Version)
	}

	instance.Version++
	return nil
}

// ListByStatuses retrieves a tenant's instances in any of the given statuses
func (r *InstanceRepository) ListByStatuses(ctx context.Context, tenantID string, statuses []string) ([]*entity.WorkflowInstance, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND status IN (?`
	args := []interface{}{tenantID, statuses[0]}
	for _, s := range statuses[1:] {
		query += ", ?"
		args = append(args, s)
	}
	query += `) ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list instances: %v", workflow.ErrPersistence, err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := r.scanInstance(rows, "")
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

type instanceJSONColumns struct {
	snapshot         string
	rejectionHistory string
	cascadeChain     string
	resubmitHistory  string
	appealHistory    string
	metadata         sql.NullString
}

func marshalInstanceJSON(instance *entity.WorkflowInstance) (*instanceJSONColumns, error) {
	var cols instanceJSONColumns

	snapshot, err := json.Marshal(instance.TemplateSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template snapshot: %w", err)
	}
	cols.snapshot = string(snapshot)

	marshal := func(v interface{}, name string) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		return string(data), nil
	}

	if cols.rejectionHistory, err = marshal(instance.RejectionHistory, "rejection history"); err != nil {
		return nil, err
	}
	if cols.cascadeChain, err = marshal(instance.CascadeChain, "cascade chain"); err != nil {
		return nil, err
	}
	if cols.resubmitHistory, err = marshal(instance.ResubmitHistory, "resubmit history"); err != nil {
		return nil, err
	}
	if cols.appealHistory, err = marshal(instance.AppealHistory, "appeal history"); err != nil {
		return nil, err
	}

	metadata, err := entity.MarshalMetadata(instance.Metadata)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		cols.metadata = sql.NullString{String: string(metadata), Valid: true}
	}

	return &cols, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InstanceRepository) scanInstance(row rowScanner, id string) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var snapshot, rejectionHistory, cascadeChain, resubmitHistory, appealHistory string
	var currentStepID, metadata sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.TemplateID,
		&instance.Category,
		&snapshot,
		&instance.Status,
		&instance.StartedBy,
		&currentStepID,
		&instance.CurrentStepOrder,
		&instance.CurrentTierLevel,
		&rejectionHistory,
		&cascadeChain,
		&resubmitHistory,
		&appealHistory,
		&instance.ResubmitCount,
		&instance.AppealCount,
		&instance.AwaitingRequestorAction,
		&instance.AwaitingCascadeAction,
		&instance.CascadePendingTier,
		&metadata,
		&instance.Version,
		&completedAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: instance %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to scan instance", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to scan instance: %v", workflow.ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(snapshot), &instance.TemplateSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(rejectionHistory), &instance.RejectionHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rejection history: %w", err)
	}
	if err := json.Unmarshal([]byte(cascadeChain), &instance.CascadeChain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cascade chain: %w", err)
	}
	if err := json.Unmarshal([]byte(resubmitHistory), &instance.ResubmitHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resubmit history: %w", err)
	}
	if err := json.Unmarshal([]byte(appealHistory), &instance.AppealHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal appeal history: %w", err)
	}

	if currentStepID.Valid {
		instance.CurrentStepID = currentStepID.String
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	if metadata.Valid {
		m, err := entity.UnmarshalMetadata(instance.Category, []byte(metadata.String))
		if err != nil {
			return nil, err
		}
		instance.Metadata = m
	}

	return &instance, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
