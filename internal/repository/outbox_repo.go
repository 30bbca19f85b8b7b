package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// OutboxRepository handles the notification outbox. Rows are enqueued
// inside the engine's transactions and drained by the dispatcher worker
// after commit.
type OutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB, logger *zap.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Enqueue inserts a pending outbox entry
func (r *OutboxRepository) Enqueue(tx *sql.Tx, entry *entity.OutboxEntry) error {
	query := `
		INSERT INTO notification_outbox (
			tenant_id, instance_id, category, target_tier, target_user, summary, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	args := []interface{}{
		entry.TenantID,
		entry.InstanceID,
		entry.Category,
		entry.TargetTier,
		nullString(entry.TargetUser),
		entry.Summary,
		entity.OutboxStatusPending,
	}

	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to enqueue notification",
			zap.String("instance_id", entry.InstanceID),
			zap.Error(err))
		return fmt.Errorf("%w: failed to enqueue notification: %v", workflow.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", workflow.ErrPersistence, err)
	}

	entry.ID = id
	entry.Status = entity.OutboxStatusPending
	return nil
}

// PendingBatch retrieves up to limit pending entries, oldest first
func (r *OutboxRepository) PendingBatch(ctx context.Context, limit int) ([]*entity.OutboxEntry, error) {
	query := `
		SELECT id, tenant_id, instance_id, category, target_tier, target_user,
			summary, status, attempts, created_at, sent_at
		FROM notification_outbox
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to query outbox", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to query outbox: %v", workflow.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []*entity.OutboxEntry
	for rows.Next() {
		var entry entity.OutboxEntry
		var targetUser sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.InstanceID,
			&entry.Category,
			&entry.TargetTier,
			&targetUser,
			&entry.Summary,
			&entry.Status,
			&entry.Attempts,
			&entry.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}

		if targetUser.Valid {
			entry.TargetUser = targetUser.String
		}
		if sentAt.Valid {
			entry.SentAt = &sentAt.Time
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// MarkSent marks an entry dispatched
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notification_outbox
		SET status = ?, attempts = attempts + 1, sent_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, entity.OutboxStatusSent, id); err != nil {
		return fmt.Errorf("%w: failed to mark outbox entry sent: %v", workflow.ErrPersistence, err)
	}
	return nil
}

// MarkFailed records a failed dispatch attempt. The entry stays pending
// until attempts reach maxAttempts, after which it is marked failed.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, maxAttempts int) error {
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, maxAttempts, entity.OutboxStatusFailed, id); err != nil {
		return fmt.Errorf("%w: failed to mark outbox entry failed: %v", workflow.ErrPersistence, err)
	}
	return nil
}
