package entity

import "errors"

// Business-rule error taxonomy. Every violation is surfaced to the caller
// verbatim; a failed call leaves requisition state and audit trail
// completely unchanged.
var (
	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation error")

	// ErrConfiguration is returned for corrupt or ambiguous category step data
	ErrConfiguration = errors.New("configuration error")

	// ErrForbidden is returned when the actor's role does not match the step's role
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an action is illegal for the current status or step
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidAction is returned when the action verb is illegal for the step type
	ErrInvalidAction = errors.New("invalid action")

	// ErrPreconditionFailed is returned when execution prerequisites are unmet
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotFound is returned for an unknown requisition, category or quotation
	ErrNotFound = errors.New("not found")
)
