package entity

import "time"

// WorkflowStep is the read-model view of one chain step for a specific
// requisition: the step definition merged with what the audit trail and
// the current-step pointer say happened to it. Skipped steps appear here
// with status SKIPPED even though they leave no approval log entry.
type WorkflowStep struct {
	StepNumber   int        `json:"step_number"`
	RoleCode     string     `json:"role_code"`
	ApprovalType string     `json:"approval_type"`
	MinAmount    *float64   `json:"min_amount,omitempty"`
	MaxAmount    *float64   `json:"max_amount,omitempty"`
	IsMandatory  bool       `json:"is_mandatory"`
	Status       string     `json:"status"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Comments     string     `json:"comments,omitempty"`
}

// Workflow is the full decision-trail view of a requisition's chain.
type Workflow struct {
	RequisitionID int64          `json:"requisition_id"`
	CategoryID    int64          `json:"category_id"`
	CategoryName  string         `json:"category_name"`
	Status        string         `json:"status"`
	CurrentStep   int            `json:"current_step"`
	Steps         []WorkflowStep `json:"steps"`
}
