package workflow

// State represents a requisition status in the approval lifecycle
type State string

const (
	StateInitiated  State = "INITIATED"
	StateInApproval State = "IN_APPROVAL"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
	StateExecuted   State = "EXECUTED"
	StateCancelled  State = "CANCELLED"
)

var validStates = map[State]bool{
	StateInitiated:  true,
	StateInApproval: true,
	StateApproved:   true,
	StateRejected:   true,
	StateExecuted:   true,
	StateCancelled:  true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateExecuted:  true,
	StateCancelled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
