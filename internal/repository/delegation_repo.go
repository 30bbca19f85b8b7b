package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// DelegationRepository handles delegation rule database operations.
// Lookups used inside the engine's write transactions must go through
// the Tx variant; querying the shared pool while a transaction holds a
// connection can exhaust the pool.
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) *DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new delegation rule
func (r *DelegationRepository) Create(ctx context.Context, rule *entity.DelegationRule) error {
	query := `
		INSERT INTO delegation_rules (
			id, tenant_id, from_user, to_user, start_date, end_date, active
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.TenantID,
		rule.FromUser,
		rule.ToUser,
		rule.StartDate.UTC(),
		rule.EndDate.UTC(),
		rule.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create delegation rule", zap.String("id", rule.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to create delegation rule: %v", workflow.ErrPersistence, err)
	}

	return nil
}

const activeRulesQuery = `
	SELECT id, tenant_id, from_user, to_user, start_date, end_date, active, created_at
	FROM delegation_rules
	WHERE tenant_id = ? AND from_user = ? AND active = 1
		AND start_date <= ? AND end_date >= ?
	ORDER BY created_at DESC, id DESC
`

// ActiveForUser retrieves the active rules delegating away from the
// given user whose window contains the given time, newest first.
func (r *DelegationRepository) ActiveForUser(ctx context.Context, tenantID, fromUser string, on time.Time) ([]*entity.DelegationRule, error) {
	rows, err := r.db.QueryContext(ctx, activeRulesQuery, tenantID, fromUser, on.UTC(), on.UTC())
	if err != nil {
		r.logger.Error("Failed to query delegation rules", zap.String("from_user", fromUser), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to query delegation rules: %v", workflow.ErrPersistence, err)
	}
	return scanDelegationRules(rows)
}

// ActiveForUserTx is ActiveForUser on the given transaction's
// connection, for lookups inside the engine's write transactions.
func (r *DelegationRepository) ActiveForUserTx(tx *sql.Tx, tenantID, fromUser string, on time.Time) ([]*entity.DelegationRule, error) {
	rows, err := tx.Query(activeRulesQuery, tenantID, fromUser, on.UTC(), on.UTC())
	if err != nil {
		r.logger.Error("Failed to query delegation rules", zap.String("from_user", fromUser), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to query delegation rules: %v", workflow.ErrPersistence, err)
	}
	return scanDelegationRules(rows)
}

func scanDelegationRules(rows *sql.Rows) ([]*entity.DelegationRule, error) {
	defer rows.Close()

	var rules []*entity.DelegationRule
	for rows.Next() {
		var rule entity.DelegationRule
		err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.FromUser,
			&rule.ToUser,
			&rule.StartDate,
			&rule.EndDate,
			&rule.Active,
			&rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation rule: %w", err)
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Deactivate marks a delegation rule inactive
func (r *DelegationRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	query := `UPDATE delegation_rules SET active = 0 WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		r.logger.Error("Failed to deactivate delegation rule", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: failed to deactivate delegation rule: %v", workflow.ErrPersistence, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read rows affected: %v", workflow.ErrPersistence, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: delegation rule %s", workflow.ErrNotFound, id)
	}

	return nil
}
