package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	// TriggerSubmit moves a freshly created requisition into its chain.
	TriggerSubmit Trigger = "SUBMIT"

	// TriggerAdvance consumes an approval while further steps remain.
	TriggerAdvance Trigger = "ADVANCE"

	// TriggerComplete consumes the final approval of the chain.
	TriggerComplete Trigger = "COMPLETE"

	// TriggerReject terminates the chain with a rejection.
	TriggerReject Trigger = "REJECT"

	// TriggerExecute hands an approved requisition to its execution department.
	TriggerExecute Trigger = "EXECUTE"

	// TriggerCancel withdraws an open requisition.
	TriggerCancel Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
