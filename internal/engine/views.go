package engine

import (
	"context"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/internal/repository"
	"github.com/atlasops/requisition-service/pkg/utils"
)

// Get retrieves a requisition by ID
func (e *Engine) Get(ctx context.Context, id int64) (*entity.Requisition, error) {
	return e.requisitions.GetByID(id)
}

// GetByNumber retrieves a requisition by its human-facing number
func (e *Engine) GetByNumber(ctx context.Context, requisitionNo string) (*entity.Requisition, error) {
	return e.requisitions.GetByNumber(requisitionNo)
}

// List retrieves requisitions matching the filter
func (e *Engine) List(ctx context.Context, filter repository.RequisitionFilter) ([]*entity.Requisition, error) {
	return e.requisitions.List(filter)
}

// History returns the full decision trail of a requisition, sorted by
// approval time ascending. Lock-free: observes only committed entries.
func (e *Engine) History(ctx context.Context, id int64) ([]*entity.RequisitionApprovalLog, error) {
	if _, err := e.requisitions.GetByID(id); err != nil {
		return nil, err
	}
	return e.logs.GetByRequisitionID(id)
}

// UpdateDetails rewrites the caller-editable fields of a requisition
// that has not yet been submitted.
func (e *Engine) UpdateDetails(ctx context.Context, id int64, amount *float64, description string, attachments []string) (*entity.Requisition, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", entity.ErrValidation)
	}
	if amount != nil {
		if err := utils.ValidateAmount(*amount); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
	}

	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if requisition.Status != entity.StatusInitiated {
		return nil, fmt.Errorf("%w: requisition %s is already %s",
			entity.ErrInvalidState, requisition.RequisitionNo, requisition.Status)
	}

	ok, err := e.requisitions.UpdateDetails(id, amount, utils.SanitizeString(description), attachments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: requisition %s was concurrently submitted",
			entity.ErrInvalidState, requisition.RequisitionNo)
	}

	return e.requisitions.GetByID(id)
}

// Workflow builds the read-model view of a requisition's chain: each
// step definition merged with its audit outcome. Steps behind the
// pointer with no log entry were skipped; the step under the pointer of
// an open requisition is CURRENT.
func (e *Engine) Workflow(ctx context.Context, id int64) (*entity.Workflow, error) {
	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	category, err := e.categories.GetByID(requisition.CategoryID)
	if err != nil {
		return nil, err
	}

	logs, err := e.logs.GetByRequisitionID(id)
	if err != nil {
		return nil, err
	}

	byStep := make(map[int]*entity.RequisitionApprovalLog, len(logs))
	for _, logEntry := range logs {
		if logEntry.Action == entity.LogActionCancelled {
			// Cancellation is requisition-level context, not a step outcome.
			continue
		}
		byStep[logEntry.StepNumber] = logEntry
	}

	view := &entity.Workflow{
		RequisitionID: requisition.ID,
		CategoryID:    category.ID,
		CategoryName:  category.Name,
		Status:        requisition.Status,
		CurrentStep:   requisition.CurrentStep,
		Steps:         make([]entity.WorkflowStep, 0, len(category.ApprovalSteps)),
	}

	for i := range category.ApprovalSteps {
		step := &category.ApprovalSteps[i]
		position := i + 1

		ws := entity.WorkflowStep{
			StepNumber:   position,
			RoleCode:     step.RoleCode,
			ApprovalType: step.ApprovalType,
			MinAmount:    step.MinAmount,
			MaxAmount:    step.MaxAmount,
			IsMandatory:  step.IsMandatory,
		}

		switch {
		case byStep[position] != nil:
			logEntry := byStep[position]
			ws.Status = stepStatusFromLog(logEntry.Action)
			ws.ApprovedBy = logEntry.ApprovedBy
			approvedAt := logEntry.ApprovedAt
			ws.ApprovedAt = &approvedAt
			ws.Comments = logEntry.Comments
		case position == requisition.CurrentStep && requisition.Status == entity.StatusInApproval:
			ws.Status = entity.StepStatusCurrent
		case position < requisition.CurrentStep:
			ws.Status = entity.StepStatusSkipped
		default:
			ws.Status = entity.StepStatusPending
		}

		view.Steps = append(view.Steps, ws)
	}

	return view, nil
}

func stepStatusFromLog(action string) string {
	switch action {
	case entity.LogActionApproved:
		return entity.StepStatusApproved
	case entity.LogActionRejected:
		return entity.StepStatusRejected
	case entity.LogActionInfoSent:
		return entity.StepStatusInfoSent
	default:
		return entity.StepStatusPending
	}
}
