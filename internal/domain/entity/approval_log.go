package entity

import "time"

// RequisitionApprovalLog is an append-only audit record of one evaluated
// workflow step. Entries are immutable once written; exactly one entry
// exists per (requisition, step) pair that was actually evaluated.
// Skipped conditional steps produce no entry.
type RequisitionApprovalLog struct {
	ID            int64     `json:"id"`
	RequisitionID int64     `json:"requisition_id"`
	StepNumber    int       `json:"step_number"`
	RoleCode      string    `json:"role_code"`
	Action        string    `json:"action"`
	Comments      string    `json:"comments,omitempty"`
	ApprovedBy    string    `json:"approved_by"`
	ApprovedAt    time.Time `json:"approved_at"`
	Metadata      string    `json:"metadata,omitempty"`
}
