package entity

// Status constants for Requisition
const (
	StatusInitiated  = "INITIATED"
	StatusInApproval = "IN_APPROVAL"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusExecuted   = "EXECUTED"
	StatusCancelled  = "CANCELLED"
)

// Approval type constants for CategoryApprovalStep
const (
	ApprovalTypeInfo        = "INFO"
	ApprovalTypeApproval    = "APPROVAL"
	ApprovalTypeConditional = "CONDITIONAL"
)

// Execution department constants
const (
	ExecutionDeptAdmin       = "ADMIN"
	ExecutionDeptFinance     = "FINANCE"
	ExecutionDeptProcurement = "PROCUREMENT"
)

// Action constants for caller-submitted decisions
const (
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionSendInfo = "SEND_INFO"
)

// Log action constants for RequisitionApprovalLog
const (
	LogActionApproved  = "APPROVED"
	LogActionRejected  = "REJECTED"
	LogActionInfoSent  = "INFO_SENT"
	LogActionCancelled = "CANCELLED"
)

// Step display status constants for the workflow read model
const (
	StepStatusPending  = "PENDING"
	StepStatusCurrent  = "CURRENT"
	StepStatusApproved = "APPROVED"
	StepStatusRejected = "REJECTED"
	StepStatusInfoSent = "INFO_SENT"
	StepStatusSkipped  = "SKIPPED"
)

// SystemActor is recorded as the approver on log entries the engine writes
// itself, such as INFO_SENT acknowledgements during auto-advancement.
const SystemActor = "system"

// IsTerminalStatus returns true if no further workflow action is legal.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusRejected, StatusExecuted, StatusCancelled:
		return true
	}
	return false
}

// IsValidExecutionDept returns true for a recognized execution department.
func IsValidExecutionDept(dept string) bool {
	switch dept {
	case ExecutionDeptAdmin, ExecutionDeptFinance, ExecutionDeptProcurement:
		return true
	}
	return false
}

// IsValidApprovalType returns true for a recognized step approval type.
func IsValidApprovalType(t string) bool {
	switch t {
	case ApprovalTypeInfo, ApprovalTypeApproval, ApprovalTypeConditional:
		return true
	}
	return false
}
