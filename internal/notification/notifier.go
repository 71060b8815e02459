// Package notification defines the boundary to the external notification
// collaborator. Calls are fire-and-forget: a delivery failure is logged
// and never rolls back the workflow transition that triggered it.
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/internal/domain/event"
)

// Notifier is invoked whenever a step is entered awaiting an actor and
// whenever a requisition reaches a decision or is executed.
type Notifier interface {
	// Submitted fires when a requisition enters its approval chain
	Submitted(ctx context.Context, req *entity.Requisition) error

	// StepAwaiting fires when the workflow stops at a step requiring an actor
	StepAwaiting(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error

	// InfoStep fires when an informational step is passed through
	InfoStep(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error

	// Decided fires when a requisition reaches APPROVED, REJECTED or CANCELLED
	Decided(ctx context.Context, req *entity.Requisition) error

	// Executed fires when a requisition is handed to its execution department
	Executed(ctx context.Context, req *entity.Requisition) error
}

// LogNotifier emits lifecycle events into the service log. Delivery to
// users is owned by an external collaborator; this implementation is the
// default wiring when none is attached.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Submitted(ctx context.Context, req *entity.Requisition) error {
	ev := event.New(event.TypeRequisitionSubmitted, req.ID, req.RequisitionNo, map[string]interface{}{
		"category_id":   req.CategoryID,
		"department_id": req.DepartmentID,
	})
	if req.Amount != nil {
		ev = ev.WithPayload("amount", *req.Amount)
	}
	n.emit(ev)
	return nil
}

func (n *LogNotifier) StepAwaiting(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error {
	n.emit(event.New(event.TypeStepAwaiting, req.ID, req.RequisitionNo, map[string]interface{}{
		"step":      req.CurrentStep,
		"role_code": step.RoleCode,
	}))
	return nil
}

func (n *LogNotifier) InfoStep(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error {
	n.emit(event.New(event.TypeInfoSent, req.ID, req.RequisitionNo, map[string]interface{}{
		"role_code": step.RoleCode,
	}))
	return nil
}

func (n *LogNotifier) Decided(ctx context.Context, req *entity.Requisition) error {
	typ := event.TypeRequisitionApproved
	switch req.Status {
	case entity.StatusRejected:
		typ = event.TypeRequisitionRejected
	case entity.StatusCancelled:
		typ = event.TypeRequisitionCancelled
	}
	n.emit(event.New(typ, req.ID, req.RequisitionNo, map[string]interface{}{
		"status": req.Status,
	}))
	return nil
}

func (n *LogNotifier) Executed(ctx context.Context, req *entity.Requisition) error {
	n.emit(event.New(event.TypeRequisitionExecuted, req.ID, req.RequisitionNo, map[string]interface{}{
		"execution_dept": req.ExecutionDept,
		"executed_by":    req.ExecutedBy,
	}))
	return nil
}

func (n *LogNotifier) emit(e *event.Event) {
	n.logger.Info("Notification event",
		zap.String("event_id", e.ID),
		zap.String("type", e.Type.String()),
		zap.String("requisition_no", e.RequisitionNo),
		zap.Any("payload", e.Payload))
}
