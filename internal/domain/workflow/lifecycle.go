package workflow

// NewLifecycle builds the requisition lifecycle machine positioned at the
// given state. Legal edges:
//
//	INITIATED   --SUBMIT-->   IN_APPROVAL
//	INITIATED   --COMPLETE--> APPROVED      (chain with no actor steps)
//	INITIATED   --CANCEL-->   CANCELLED
//	IN_APPROVAL --ADVANCE-->  IN_APPROVAL
//	IN_APPROVAL --COMPLETE--> APPROVED
//	IN_APPROVAL --REJECT-->   REJECTED
//	IN_APPROVAL --CANCEL-->   CANCELLED
//	APPROVED    --EXECUTE-->  EXECUTED
//
// REJECTED, EXECUTED and CANCELLED are terminal.
func NewLifecycle(current State) StateMachine {
	b := NewBuilder()

	b.Configure(StateInitiated).
		Permit(TriggerSubmit, StateInApproval).
		Permit(TriggerComplete, StateApproved).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateInApproval).
		Permit(TriggerAdvance, StateInApproval).
		Permit(TriggerComplete, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateApproved).
		Permit(TriggerExecute, StateExecuted)

	return b.Build(current)
}
