package entity

import "time"

// Requisition is the unit of work flowing through the approval engine.
// RequiresQuotation and ExecutionDept are snapshotted from the category at
// creation time so later category edits do not retroactively change an
// open requisition's requirement.
type Requisition struct {
	ID                int64      `json:"id"`
	RequisitionNo     string     `json:"requisition_no"`
	BranchID          string     `json:"branch_id"`
	CategoryID        int64      `json:"category_id"`
	DepartmentID      string     `json:"department_id"`
	Amount            *float64   `json:"amount,omitempty"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	CurrentStep       int        `json:"current_step"`
	RequiresQuotation bool       `json:"requires_quotation"`
	ExecutionDept     string     `json:"execution_dept"`
	ExecutedBy        string     `json:"executed_by,omitempty"`
	ExecutedAt        *time.Time `json:"executed_at,omitempty"`
	ExecutionNotes    string     `json:"execution_notes,omitempty"`
	Attachments       []string   `json:"attachments,omitempty"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsOpen reports whether the requisition still accepts quotations and
// pre-submission edits.
func (r *Requisition) IsOpen() bool {
	return r.Status == StatusInitiated || r.Status == StatusInApproval
}
