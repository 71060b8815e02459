package engine

import (
	"context"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/pkg/utils"
	"go.uber.org/zap"
)

// CreateCategory validates and stores a new approval template.
func (e *Engine) CreateCategory(ctx context.Context, category *entity.RequisitionCategory) (*entity.RequisitionCategory, error) {
	for i := range category.ApprovalSteps {
		if err := utils.ValidateRoleCode(category.ApprovalSteps[i].RoleCode); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
	}

	if err := e.categories.Create(category); err != nil {
		return nil, err
	}

	e.logger.Info("Category created",
		zap.String("code", category.Code),
		zap.Int("steps", len(category.ApprovalSteps)))

	return e.categories.GetByID(category.ID)
}

// UpdateCategory rewrites a category. A step-list replacement that would
// strand an in-flight requisition's step pointer beyond the new chain is
// rejected. An open requisition still awaits a step, so its pointer must
// keep resolving to a position in the replacement chain.
func (e *Engine) UpdateCategory(ctx context.Context, category *entity.RequisitionCategory, replaceSteps bool) (*entity.RequisitionCategory, error) {
	if replaceSteps {
		for i := range category.ApprovalSteps {
			if err := utils.ValidateRoleCode(category.ApprovalSteps[i].RoleCode); err != nil {
				return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
			}
		}

		open, maxStep, err := e.categories.OpenRequisitionStats(category.ID)
		if err != nil {
			return nil, err
		}
		if open > 0 && maxStep > len(category.ApprovalSteps) {
			return nil, fmt.Errorf("%w: %d open requisitions have advanced past the proposed %d-step chain",
				entity.ErrValidation, open, len(category.ApprovalSteps))
		}
	} else {
		// Attribute-only edit: validation still needs the step list.
		existing, err := e.categories.GetByID(category.ID)
		if err != nil {
			return nil, err
		}
		category.ApprovalSteps = existing.ApprovalSteps
	}

	if err := e.categories.Update(category, replaceSteps); err != nil {
		return nil, err
	}

	return e.categories.GetByID(category.ID)
}

// GetCategory retrieves a category with its ordered steps
func (e *Engine) GetCategory(ctx context.Context, id int64) (*entity.RequisitionCategory, error) {
	return e.categories.GetByID(id)
}

// ListCategories retrieves categories with their ordered steps
func (e *Engine) ListCategories(ctx context.Context, activeOnly bool) ([]*entity.RequisitionCategory, error) {
	return e.categories.List(activeOnly)
}
