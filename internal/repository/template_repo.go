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

// TemplateRepository handles workflow template database operations
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new workflow template
func (r *TemplateRepository) Create(ctx context.Context, template *entity.WorkflowTemplate) error {
	steps, err := json.Marshal(template.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal template steps: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (id, tenant_id, name, category, steps, active)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		template.ID,
		template.TenantID,
		template.Name,
		template.Category,
		string(steps),
		template.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create template", zap.String("id", template.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to create template: %v", workflow.ErrPersistence, err)
	}

	return nil
}

// GetByID retrieves a template by id within a tenant
func (r *TemplateRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowTemplate, error) {
	query := `
		SELECT id, tenant_id, name, category, steps, active, created_at, updated_at
		FROM workflow_templates
		WHERE tenant_id = ? AND id = ?
	`

	var template entity.WorkflowTemplate
	var steps string

	err := r.db.QueryRowContext(ctx, query, tenantID, id).Scan(
		&template.ID,
		&template.TenantID,
		&template.Name,
		&template.Category,
		&steps,
		&template.Active,
		&template.CreatedAt,
		&template.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: template %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get template: %v", workflow.ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(steps), &template.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template steps: %w", err)
	}

	return &template, nil
}

// ListByCategory retrieves active templates for a category
func (r *TemplateRepository) ListByCategory(ctx context.Context, tenantID, category string) ([]*entity.WorkflowTemplate, error) {
	query := `
		SELECT id, tenant_id, name, category, steps, active, created_at, updated_at
		FROM workflow_templates
		WHERE tenant_id = ? AND category = ? AND active = 1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, category)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.String("category", category), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list templates: %v", workflow.ErrPersistence, err)
	}
	defer rows.Close()

	var templates []*entity.WorkflowTemplate
	for rows.Next() {
		var template entity.WorkflowTemplate
		var steps string

		err := rows.Scan(
			&template.ID,
			&template.TenantID,
			&template.Name,
			&template.Category,
			&steps,
			&template.Active,
			&template.CreatedAt,
			&template.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		if err := json.Unmarshal([]byte(steps), &template.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template steps: %w", err)
		}

		templates = append(templates, &template)
	}

	return templates, rows.Err()
}
