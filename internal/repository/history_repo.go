package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// HistoryRepository handles the append-only step history ledger. Rows
// are never updated or deleted.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a new ledger entry
func (r *HistoryRepository) Append(tx *sql.Tx, entry *entity.StepHistoryEntry) error {
	query := `
		INSERT INTO workflow_step_history (
			tenant_id, instance_id, step_id, step_order, action, actor, comments
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	args := []interface{}{
		entry.TenantID,
		entry.InstanceID,
		nullString(entry.StepID),
		entry.StepOrder,
		entry.Action,
		entry.Actor,
		entry.Comments,
	}

	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("instance_id", entry.InstanceID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("%w: failed to append history: %v", workflow.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", workflow.ErrPersistence, err)
	}

	entry.ID = id
	return nil
}

// ListByInstance retrieves all ledger entries for an instance in
// chronological order
func (r *HistoryRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*entity.StepHistoryEntry, error) {
	query := `
		SELECT id, tenant_id, instance_id, step_id, step_order, action, actor, comments, timestamp
		FROM workflow_step_history
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, instanceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list history: %v", workflow.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []*entity.StepHistoryEntry
	for rows.Next() {
		var entry entity.StepHistoryEntry
		var stepID sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.InstanceID,
			&stepID,
			&entry.StepOrder,
			&entry.Action,
			&entry.Actor,
			&entry.Comments,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		if stepID.Valid {
			entry.StepID = stepID.String
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// CountByInstanceAction returns how many ledger entries an instance has
// for a given action
func (r *HistoryRepository) CountByInstanceAction(ctx context.Context, tenantID, instanceID, action string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM workflow_step_history
		WHERE tenant_id = ? AND instance_id = ? AND action = ?
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, instanceID, action).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count history: %v", workflow.ErrPersistence, err)
	}
	return count, nil
}
