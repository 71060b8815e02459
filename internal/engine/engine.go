// Package engine implements the requisition approval workflow engine:
// the sole authority for legal lifecycle transitions. It drives a
// requisition through its category's role-based, amount-conditional
// approval chain, appends the audit trail, and finalizes approved
// requisitions for downstream execution.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/internal/domain/workflow"
	"github.com/atlasops/requisition-service/internal/notification"
	"github.com/atlasops/requisition-service/internal/repository"
	"github.com/atlasops/requisition-service/pkg/database"
	"github.com/atlasops/requisition-service/pkg/utils"
	"go.uber.org/zap"
)

// Engine orchestrates the requisition approval workflow
type Engine struct {
	db           *database.DB
	categories   *repository.CategoryRepository
	requisitions *repository.RequisitionRepository
	logs         *repository.ApprovalLogRepository
	quotations   *repository.QuotationRepository
	notifier     notification.Notifier
	logger       *zap.Logger
}

// New creates a new workflow engine
func New(
	db *database.DB,
	categories *repository.CategoryRepository,
	requisitions *repository.RequisitionRepository,
	logs *repository.ApprovalLogRepository,
	quotations *repository.QuotationRepository,
	notifier notification.Notifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:           db,
		categories:   categories,
		requisitions: requisitions,
		logs:         logs,
		quotations:   quotations,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateRequest carries the caller-supplied fields for a new requisition.
type CreateRequest struct {
	CategoryID   int64
	BranchID     string
	DepartmentID string
	Amount       *float64
	Description  string
	Attachments  []string
	CreatedBy    string
}

// ActionRequest carries one actor decision against a workflow step.
// ActorRole and ActorID are supplied by the identity collaborator; the
// engine independently checks only role-to-step matching.
type ActionRequest struct {
	StepNumber int
	ActorRole  string
	ActorID    string
	Action     string
	Comments   string
	Metadata   map[string]any
}

// HandoffPayload is returned by Execute for the execution-department
// collaborator to consume. The engine does not track the external
// execution's own completion.
type HandoffPayload struct {
	Requisition       *entity.Requisition `json:"requisition"`
	SelectedQuotation *entity.Quotation   `json:"selected_quotation,omitempty"`
	ExecutedBy        string              `json:"executed_by"`
	ExecutionDept     string              `json:"execution_dept"`
}

// Create validates the request, snapshots the category's quotation
// requirement and execution department, and stores the requisition in
// status INITIATED with the step pointer at 1. A missing amount is
// legal: amount-gated conditional steps are then always skipped.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*entity.Requisition, error) {
	if req.BranchID == "" || req.DepartmentID == "" || req.CreatedBy == "" {
		return nil, fmt.Errorf("%w: branch, department and creator are required", entity.ErrValidation)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", entity.ErrValidation)
	}
	if req.Amount != nil {
		if err := utils.ValidateAmount(*req.Amount); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
	}

	category, err := e.activeCategory(req.CategoryID)
	if err != nil {
		return nil, err
	}

	requisition := &entity.Requisition{
		BranchID:          req.BranchID,
		CategoryID:        category.ID,
		DepartmentID:      req.DepartmentID,
		Amount:            req.Amount,
		Description:       utils.SanitizeString(req.Description),
		Status:            entity.StatusInitiated,
		CurrentStep:       1,
		RequiresQuotation: category.RequiresQuotation,
		ExecutionDept:     category.ExecutionDept,
		Attachments:       req.Attachments,
		CreatedBy:         req.CreatedBy,
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		return e.requisitions.Create(tx, requisition)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Requisition created",
		zap.Int64("id", requisition.ID),
		zap.String("requisition_no", requisition.RequisitionNo),
		zap.String("category", category.Code))

	return e.requisitions.GetByID(requisition.ID)
}

// Submit moves an INITIATED requisition into its approval chain,
// advancing through leading informational and auto-skippable conditional
// steps without waiting for actor input. A chain with no actor steps at
// all lands directly on APPROVED.
func (e *Engine) Submit(ctx context.Context, id int64) (*entity.Requisition, error) {
	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewLifecycle(workflow.State(requisition.Status))
	if !machine.CanFire(workflow.TriggerSubmit) {
		return nil, fmt.Errorf("%w: cannot submit requisition in status %s", entity.ErrInvalidState, requisition.Status)
	}

	steps, err := e.chain(requisition.CategoryID)
	if err != nil {
		return nil, err
	}

	adv := e.advance(requisition, steps, requisition.CurrentStep)

	newStatus := entity.StatusInApproval
	trigger := workflow.TriggerSubmit
	if adv.final {
		newStatus = entity.StatusApproved
		trigger = workflow.TriggerComplete
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidState, err)
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		for _, logEntry := range adv.infoLogs {
			if err := e.logs.Create(tx, logEntry); err != nil {
				return err
			}
		}
		return e.commitState(tx, requisition, newStatus, adv.nextStep)
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, func() error { return e.notifier.Submitted(ctx, updated) })
	e.afterAdvance(ctx, updated, steps, adv)

	e.logger.Info("Requisition submitted",
		zap.String("requisition_no", updated.RequisitionNo),
		zap.String("status", updated.Status),
		zap.Int("current_step", updated.CurrentStep))

	return updated, nil
}

// Act applies one actor decision to the requisition's current step.
// Guards run in order: lifecycle status, step pointer match (the
// idempotency boundary), role match, then action legality for the step
// type. A failed guard leaves state and audit trail untouched.
func (e *Engine) Act(ctx context.Context, id int64, req ActionRequest) (*entity.Requisition, error) {
	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	if requisition.Status != entity.StatusInApproval {
		return nil, fmt.Errorf("%w: requisition %s is %s, not awaiting approval",
			entity.ErrInvalidState, requisition.RequisitionNo, requisition.Status)
	}
	if req.StepNumber != requisition.CurrentStep {
		return nil, fmt.Errorf("%w: step %d is not the current step (%d)",
			entity.ErrInvalidState, req.StepNumber, requisition.CurrentStep)
	}

	steps, err := e.chain(requisition.CategoryID)
	if err != nil {
		return nil, err
	}
	if requisition.CurrentStep > len(steps) {
		return nil, fmt.Errorf("%w: step pointer %d beyond chain of %d steps",
			entity.ErrConfiguration, requisition.CurrentStep, len(steps))
	}
	step := &steps[requisition.CurrentStep-1]

	if req.ActorRole != step.RoleCode {
		return nil, fmt.Errorf("%w: step %d requires role %s",
			entity.ErrForbidden, requisition.CurrentStep, step.RoleCode)
	}

	if step.ApprovalType == entity.ApprovalTypeInfo {
		// Informational steps are acknowledged by the engine during
		// advancement and never hold the step pointer.
		return nil, fmt.Errorf("%w: step %d is informational", entity.ErrInvalidAction, requisition.CurrentStep)
	}

	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	switch req.Action {
	case entity.ActionReject:
		return e.reject(ctx, requisition, step, req, metadata)
	case entity.ActionApprove:
		return e.approve(ctx, requisition, steps, step, req, metadata)
	case entity.ActionSendInfo:
		return nil, fmt.Errorf("%w: SEND_INFO is not valid on %s steps", entity.ErrInvalidAction, step.ApprovalType)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", entity.ErrValidation, req.Action)
	}
}

func (e *Engine) reject(ctx context.Context, requisition *entity.Requisition, step *entity.CategoryApprovalStep, req ActionRequest, metadata string) (*entity.Requisition, error) {
	machine := workflow.NewLifecycle(workflow.State(requisition.Status))
	if err := machine.Fire(ctx, workflow.TriggerReject); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidState, err)
	}

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		logEntry := &entity.RequisitionApprovalLog{
			RequisitionID: requisition.ID,
			StepNumber:    requisition.CurrentStep,
			RoleCode:      step.RoleCode,
			Action:        entity.LogActionRejected,
			Comments:      req.Comments,
			ApprovedBy:    req.ActorID,
			ApprovedAt:    time.Now().UTC(),
			Metadata:      metadata,
		}
		if err := e.logs.Create(tx, logEntry); err != nil {
			return err
		}
		return e.commitState(tx, requisition, entity.StatusRejected, requisition.CurrentStep)
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.requisitions.GetByID(requisition.ID)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, func() error { return e.notifier.Decided(ctx, updated) })

	e.logger.Info("Requisition rejected",
		zap.String("requisition_no", updated.RequisitionNo),
		zap.Int("step", req.StepNumber),
		zap.String("rejected_by", req.ActorID))

	return updated, nil
}

func (e *Engine) approve(ctx context.Context, requisition *entity.Requisition, steps []entity.CategoryApprovalStep, step *entity.CategoryApprovalStep, req ActionRequest, metadata string) (*entity.Requisition, error) {
	adv := e.advance(requisition, steps, requisition.CurrentStep+1)

	newStatus := entity.StatusInApproval
	trigger := workflow.TriggerAdvance
	if adv.final {
		newStatus = entity.StatusApproved
		trigger = workflow.TriggerComplete
	}

	machine := workflow.NewLifecycle(workflow.State(requisition.Status))
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidState, err)
	}

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		logEntry := &entity.RequisitionApprovalLog{
			RequisitionID: requisition.ID,
			StepNumber:    requisition.CurrentStep,
			RoleCode:      step.RoleCode,
			Action:        entity.LogActionApproved,
			Comments:      req.Comments,
			ApprovedBy:    req.ActorID,
			ApprovedAt:    time.Now().UTC(),
			Metadata:      metadata,
		}
		if err := e.logs.Create(tx, logEntry); err != nil {
			return err
		}
		for _, infoLog := range adv.infoLogs {
			if err := e.logs.Create(tx, infoLog); err != nil {
				return err
			}
		}
		return e.commitState(tx, requisition, newStatus, adv.nextStep)
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.requisitions.GetByID(requisition.ID)
	if err != nil {
		return nil, err
	}

	e.afterAdvance(ctx, updated, steps, adv)

	e.logger.Info("Requisition step approved",
		zap.String("requisition_no", updated.RequisitionNo),
		zap.Int("step", req.StepNumber),
		zap.String("approved_by", req.ActorID),
		zap.String("status", updated.Status))

	return updated, nil
}

// Execute finalizes an APPROVED requisition and returns the handoff
// payload for the execution-department collaborator. On categories that
// require quotations, execution is refused until exactly one quotation
// is selected.
func (e *Engine) Execute(ctx context.Context, id int64, executorID, notes string) (*HandoffPayload, error) {
	if executorID == "" {
		return nil, fmt.Errorf("%w: executor is required", entity.ErrValidation)
	}

	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewLifecycle(workflow.State(requisition.Status))
	if !machine.CanFire(workflow.TriggerExecute) {
		return nil, fmt.Errorf("%w: cannot execute requisition in status %s", entity.ErrInvalidState, requisition.Status)
	}

	var selected *entity.Quotation
	if requisition.RequiresQuotation {
		selected, err = e.quotations.GetSelected(requisition.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: a selected quotation is required before execution", entity.ErrPreconditionFailed)
		}
	}

	executedAt := time.Now().UTC()
	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		ok, err := e.requisitions.MarkExecuted(tx, requisition.ID, executorID, utils.SanitizeString(notes), executedAt)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: requisition %s was concurrently modified", entity.ErrInvalidState, requisition.RequisitionNo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, func() error { return e.notifier.Executed(ctx, updated) })

	e.logger.Info("Requisition executed",
		zap.String("requisition_no", updated.RequisitionNo),
		zap.String("executed_by", executorID),
		zap.String("execution_dept", updated.ExecutionDept))

	return &HandoffPayload{
		Requisition:       updated,
		SelectedQuotation: selected,
		ExecutedBy:        executorID,
		ExecutionDept:     updated.ExecutionDept,
	}, nil
}

// Cancel withdraws an open requisition. Legal from INITIATED and
// IN_APPROVAL only; terminal thereafter.
func (e *Engine) Cancel(ctx context.Context, id int64, actorID, reason string) (*entity.Requisition, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", entity.ErrValidation)
	}

	requisition, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewLifecycle(workflow.State(requisition.Status))
	if err := machine.Fire(ctx, workflow.TriggerCancel); err != nil {
		return nil, fmt.Errorf("%w: cannot cancel requisition in status %s", entity.ErrInvalidState, requisition.Status)
	}

	steps, err := e.chain(requisition.CategoryID)
	if err != nil {
		return nil, err
	}

	roleCode := ""
	if requisition.CurrentStep >= 1 && requisition.CurrentStep <= len(steps) {
		roleCode = steps[requisition.CurrentStep-1].RoleCode
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		logEntry := &entity.RequisitionApprovalLog{
			RequisitionID: requisition.ID,
			StepNumber:    requisition.CurrentStep,
			RoleCode:      roleCode,
			Action:        entity.LogActionCancelled,
			Comments:      reason,
			ApprovedBy:    actorID,
			ApprovedAt:    time.Now().UTC(),
		}
		if err := e.logs.Create(tx, logEntry); err != nil {
			return err
		}
		return e.commitState(tx, requisition, entity.StatusCancelled, requisition.CurrentStep)
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.requisitions.GetByID(id)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, func() error { return e.notifier.Decided(ctx, updated) })

	e.logger.Info("Requisition cancelled",
		zap.String("requisition_no", updated.RequisitionNo),
		zap.String("cancelled_by", actorID))

	return updated, nil
}

// commitState performs the CAS update of the requisition row. The audit
// log entries are already inserted in the same transaction, preserving
// log-then-commit ordering: a crash between the two never yields a
// status change without its audit record.
func (e *Engine) commitState(tx *sql.Tx, requisition *entity.Requisition, newStatus string, newStep int) error {
	ok, err := e.requisitions.UpdateState(tx, requisition.ID, requisition.Status, requisition.CurrentStep, newStatus, newStep)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: requisition %s was concurrently modified", entity.ErrInvalidState, requisition.RequisitionNo)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, fn func() error) {
	// Notification failures never roll back a committed transition.
	if err := fn(); err != nil {
		e.logger.Warn("Notification delivery failed", zap.Error(err))
	}
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("invalid metadata: %v", err)
	}
	return string(encoded), nil
}
