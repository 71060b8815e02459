package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/pkg/database"
	"go.uber.org/zap"
)

// CategoryRepository handles requisition category and approval step
// database operations. Step ordering is enforced in SQL; ties are
// rejected at write time by the (category_id, sequence_number) unique
// constraint, never resolved at read time.
type CategoryRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *database.DB, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a category with its approval steps in one transaction.
func (r *CategoryRepository) Create(category *entity.RequisitionCategory) error {
	if err := category.Validate(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO requisition_categories (
				code, name, description, execution_dept, requires_quotation, is_active
			) VALUES (?, ?, ?, ?, ?, ?)
		`,
			category.Code,
			category.Name,
			category.Description,
			category.ExecutionDept,
			category.RequiresQuotation,
			category.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		category.ID = id

		return r.insertSteps(tx, category)
	})

	if err != nil {
		r.logger.Error("Failed to create category", zap.String("code", category.Code), zap.Error(err))
		return err
	}

	r.logger.Info("Category created", zap.Int64("id", category.ID), zap.String("code", category.Code))
	return nil
}

// Update rewrites a category's attributes and, when steps are provided,
// replaces its step list. Callers are responsible for the in-flight
// requisition guard before replacing steps.
func (r *CategoryRepository) Update(category *entity.RequisitionCategory, replaceSteps bool) error {
	if err := category.Validate(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE requisition_categories
			SET name = ?, description = ?, execution_dept = ?, requires_quotation = ?,
				is_active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`,
			category.Name,
			category.Description,
			category.ExecutionDept,
			category.RequiresQuotation,
			category.IsActive,
			category.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: category %d", entity.ErrNotFound, category.ID)
		}

		if !replaceSteps {
			return nil
		}

		if _, err := tx.Exec(`DELETE FROM category_approval_steps WHERE category_id = ?`, category.ID); err != nil {
			return fmt.Errorf("failed to clear steps: %w", err)
		}

		return r.insertSteps(tx, category)
	})

	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			r.logger.Error("Failed to update category", zap.Int64("id", category.ID), zap.Error(err))
		}
		return err
	}

	r.logger.Info("Category updated", zap.Int64("id", category.ID), zap.String("code", category.Code))
	return nil
}

func (r *CategoryRepository) insertSteps(tx *sql.Tx, category *entity.RequisitionCategory) error {
	for i := range category.ApprovalSteps {
		step := &category.ApprovalSteps[i]
		step.CategoryID = category.ID

		result, err := tx.Exec(`
			INSERT INTO category_approval_steps (
				category_id, sequence_number, role_code, approval_type,
				min_amount, max_amount, is_mandatory, is_active
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			step.CategoryID,
			step.SequenceNumber,
			step.RoleCode,
			step.ApprovalType,
			step.MinAmount,
			step.MaxAmount,
			step.IsMandatory,
			step.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.SequenceNumber, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
	}
	return nil
}

// GetByID retrieves a category with its steps sorted by sequence number.
// Inactive categories are returned; the engine decides whether inactive
// is acceptable for the operation at hand.
func (r *CategoryRepository) GetByID(id int64) (*entity.RequisitionCategory, error) {
	var category entity.RequisitionCategory

	err := r.db.QueryRow(`
		SELECT id, code, name, description, execution_dept, requires_quotation,
			is_active, created_at, updated_at
		FROM requisition_categories
		WHERE id = ?
	`, id).Scan(
		&category.ID,
		&category.Code,
		&category.Name,
		&category.Description,
		&category.ExecutionDept,
		&category.RequiresQuotation,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: category %d", entity.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get category", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	steps, err := r.getSteps(id)
	if err != nil {
		return nil, err
	}
	category.ApprovalSteps = steps

	return &category, nil
}

// GetByCode retrieves a category by its unique code.
func (r *CategoryRepository) GetByCode(code string) (*entity.RequisitionCategory, error) {
	var id int64
	err := r.db.QueryRow(`SELECT id FROM requisition_categories WHERE code = ?`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: category %s", entity.ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by code: %w", err)
	}
	return r.GetByID(id)
}

func (r *CategoryRepository) getSteps(categoryID int64) ([]entity.CategoryApprovalStep, error) {
	rows, err := r.db.Query(`
		SELECT id, category_id, sequence_number, role_code, approval_type,
			min_amount, max_amount, is_mandatory, is_active, created_at, updated_at
		FROM category_approval_steps
		WHERE category_id = ?
		ORDER BY sequence_number ASC
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []entity.CategoryApprovalStep
	for rows.Next() {
		var step entity.CategoryApprovalStep
		err := rows.Scan(
			&step.ID,
			&step.CategoryID,
			&step.SequenceNumber,
			&step.RoleCode,
			&step.ApprovalType,
			&step.MinAmount,
			&step.MaxAmount,
			&step.IsMandatory,
			&step.IsActive,
			&step.CreatedAt,
			&step.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// List returns all categories with their steps, active first.
func (r *CategoryRepository) List(activeOnly bool) ([]*entity.RequisitionCategory, error) {
	query := `
		SELECT id FROM requisition_categories
		ORDER BY is_active DESC, code ASC
	`
	if activeOnly {
		query = `
			SELECT id FROM requisition_categories
			WHERE is_active = 1
			ORDER BY code ASC
		`
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	categories := make([]*entity.RequisitionCategory, 0, len(ids))
	for _, id := range ids {
		category, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	return categories, nil
}

// OpenRequisitionStats returns the number of open requisitions using the
// category and the furthest current-step pointer among them. Used to
// reject step-list edits that would strand an in-flight requisition.
func (r *CategoryRepository) OpenRequisitionStats(categoryID int64) (count int, maxCurrentStep int, err error) {
	err = r.db.QueryRow(`
		SELECT COUNT(*), COALESCE(MAX(current_step), 0)
		FROM requisitions
		WHERE category_id = ? AND status IN ('INITIATED', 'IN_APPROVAL')
	`, categoryID).Scan(&count, &maxCurrentStep)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get open requisition stats: %w", err)
	}
	return count, maxCurrentStep, nil
}
