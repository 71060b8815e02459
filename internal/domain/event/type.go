package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequisitionSubmitted Type = "requisition.submitted"
	TypeStepAwaiting         Type = "requisition.step_awaiting"
	TypeInfoSent             Type = "requisition.info_sent"
	TypeRequisitionApproved  Type = "requisition.approved"
	TypeRequisitionRejected  Type = "requisition.rejected"
	TypeRequisitionExecuted  Type = "requisition.executed"
	TypeRequisitionCancelled Type = "requisition.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequisitionSubmitted,
		TypeStepAwaiting,
		TypeInfoSent,
		TypeRequisitionApproved,
		TypeRequisitionRejected,
		TypeRequisitionExecuted,
		TypeRequisitionCancelled:
		return true
	default:
		return false
	}
}
