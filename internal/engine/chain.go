package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasops/requisition-service/internal/domain/entity"
)

// activeCategory loads a category for requisition creation. Unknown and
// inactive categories both surface as NotFound.
func (e *Engine) activeCategory(categoryID int64) (*entity.RequisitionCategory, error) {
	category, err := e.categories.GetByID(categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, fmt.Errorf("%w: category %s is inactive", entity.ErrNotFound, category.Code)
	}
	return category, nil
}

// chain loads a category's ordered step list for an in-flight
// requisition. Duplicate sequence numbers should be impossible at write
// time but may occur from stale data; the engine fails closed with a
// configuration error rather than guessing an order.
func (e *Engine) chain(categoryID int64) ([]entity.CategoryApprovalStep, error) {
	category, err := e.categories.GetByID(categoryID)
	if err != nil {
		return nil, err
	}

	steps := category.ApprovalSteps
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: category %s has no approval steps", entity.ErrConfiguration, category.Code)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].SequenceNumber == steps[i-1].SequenceNumber {
			return nil, fmt.Errorf("%w: category %s has duplicate sequence number %d",
				entity.ErrConfiguration, category.Code, steps[i].SequenceNumber)
		}
	}

	return steps, nil
}

// advancement is the outcome of walking the chain from a given position:
// where the pointer lands, whether the chain is consumed, and the
// informational acknowledgements to append on the way.
type advancement struct {
	nextStep  int
	final     bool
	infoLogs  []*entity.RequisitionApprovalLog
	infoSteps []int
}

// advance walks the chain from position `from` (1-based), skipping
// inactive, non-mandatory and out-of-range conditional steps, and
// acknowledging informational steps with an INFO_SENT entry. It stops at
// the first step requiring an actor; when none remains the chain is
// consumed and the pointer lands at len(steps)+1.
func (e *Engine) advance(req *entity.Requisition, steps []entity.CategoryApprovalStep, from int) advancement {
	adv := advancement{}

	for i := from; i <= len(steps); i++ {
		step := &steps[i-1]

		if !step.IsActive || !step.IsMandatory {
			continue
		}

		switch step.ApprovalType {
		case entity.ApprovalTypeInfo:
			adv.infoLogs = append(adv.infoLogs, &entity.RequisitionApprovalLog{
				RequisitionID: req.ID,
				StepNumber:    i,
				RoleCode:      step.RoleCode,
				Action:        entity.LogActionInfoSent,
				ApprovedBy:    entity.SystemActor,
				ApprovedAt:    time.Now().UTC(),
			})
			adv.infoSteps = append(adv.infoSteps, i)

		case entity.ApprovalTypeApproval:
			adv.nextStep = i
			return adv

		case entity.ApprovalTypeConditional:
			if step.AmountInRange(req.Amount) {
				adv.nextStep = i
				return adv
			}
		}
	}

	adv.nextStep = len(steps) + 1
	adv.final = true
	return adv
}

// afterAdvance fires the notifications owed for a committed advancement:
// one per informational step passed, then either the awaiting-actor
// notification or the final decision.
func (e *Engine) afterAdvance(ctx context.Context, req *entity.Requisition, steps []entity.CategoryApprovalStep, adv advancement) {
	for _, i := range adv.infoSteps {
		step := &steps[i-1]
		e.notify(ctx, func() error { return e.notifier.InfoStep(ctx, req, step) })
	}

	if adv.final {
		e.notify(ctx, func() error { return e.notifier.Decided(ctx, req) })
		return
	}

	step := &steps[adv.nextStep-1]
	e.notify(ctx, func() error { return e.notifier.StepAwaiting(ctx, req, step) })
}
