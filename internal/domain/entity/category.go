package entity

import (
	"fmt"
	"time"
)

// RequisitionCategory defines a reusable approval template. A category
// exclusively owns its ordered approval steps; steps are never shared
// across categories.
type RequisitionCategory struct {
	ID                int64                  `json:"id"`
	Code              string                 `json:"code"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	ExecutionDept     string                 `json:"execution_dept"`
	RequiresQuotation bool                   `json:"requires_quotation"`
	IsActive          bool                   `json:"is_active"`
	ApprovalSteps     []CategoryApprovalStep `json:"approval_steps,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// CategoryApprovalStep is one stage of a category's approval chain.
// MinAmount/MaxAmount bounds are inclusive; a nil bound means unbounded
// on that side.
type CategoryApprovalStep struct {
	ID             int64     `json:"id"`
	CategoryID     int64     `json:"category_id"`
	SequenceNumber int       `json:"sequence_number"`
	RoleCode       string    `json:"role_code"`
	ApprovalType   string    `json:"approval_type"`
	MinAmount      *float64  `json:"min_amount,omitempty"`
	MaxAmount      *float64  `json:"max_amount,omitempty"`
	IsMandatory    bool      `json:"is_mandatory"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AmountInRange reports whether a requisition amount activates a
// CONDITIONAL step. A requisition with no amount never activates one.
func (s *CategoryApprovalStep) AmountInRange(amount *float64) bool {
	if amount == nil {
		return false
	}
	if s.MinAmount != nil && *amount < *s.MinAmount {
		return false
	}
	if s.MaxAmount != nil && *amount > *s.MaxAmount {
		return false
	}
	return true
}

// RequiresActor reports whether the step blocks progression waiting for
// an explicit approve/reject from a holder of its role. INFO steps never
// block; CONDITIONAL steps block only when the amount falls in range;
// inactive and non-mandatory steps never block.
func (s *CategoryApprovalStep) RequiresActor(amount *float64) bool {
	if !s.IsActive || !s.IsMandatory {
		return false
	}
	switch s.ApprovalType {
	case ApprovalTypeApproval:
		return true
	case ApprovalTypeConditional:
		return s.AmountInRange(amount)
	default:
		return false
	}
}

// Validate checks the category's configuration invariants: a recognized
// execution department, at least one active step when the category is
// active, strictly increasing unique sequence numbers, and at least one
// bound on every CONDITIONAL step.
func (c *RequisitionCategory) Validate() error {
	if c.Code == "" {
		return fmt.Errorf("category code is required")
	}
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if !IsValidExecutionDept(c.ExecutionDept) {
		return fmt.Errorf("invalid execution department: %s", c.ExecutionDept)
	}

	activeSteps := 0
	lastSeq := 0
	for i := range c.ApprovalSteps {
		step := &c.ApprovalSteps[i]
		if step.SequenceNumber <= 0 {
			return fmt.Errorf("step %d: sequence number must be positive", i+1)
		}
		if step.SequenceNumber <= lastSeq {
			return fmt.Errorf("step sequence numbers must be strictly increasing: %d after %d", step.SequenceNumber, lastSeq)
		}
		lastSeq = step.SequenceNumber
		if step.RoleCode == "" {
			return fmt.Errorf("step %d: role code is required", step.SequenceNumber)
		}
		if !IsValidApprovalType(step.ApprovalType) {
			return fmt.Errorf("step %d: invalid approval type: %s", step.SequenceNumber, step.ApprovalType)
		}
		if step.ApprovalType == ApprovalTypeConditional && step.MinAmount == nil && step.MaxAmount == nil {
			return fmt.Errorf("step %d: conditional step requires at least one amount bound", step.SequenceNumber)
		}
		if step.MinAmount != nil && step.MaxAmount != nil && *step.MinAmount > *step.MaxAmount {
			return fmt.Errorf("step %d: min amount exceeds max amount", step.SequenceNumber)
		}
		if step.IsActive {
			activeSteps++
		}
	}

	if c.IsActive && activeSteps == 0 {
		return fmt.Errorf("active category requires at least one active approval step")
	}

	return nil
}
