package domain

import "errors"

// Sentinel errors for the domain layer. Callers branch on these with
// errors.Is after unwrapping whatever context the lower layers added.
var (
	ErrNotFound   = errors.New("domain: not found")
	ErrConflict   = errors.New("domain: conflict")
	ErrValidation = errors.New("domain: validation failed")

	// Structural invariant violations. Never auto-corrected.
	ErrCycleDetected = errors.New("domain: cycle detected")
	ErrDepthExceeded = errors.New("domain: hierarchy depth exceeded")

	// Delete with children and cascade disabled.
	ErrHasChildren = errors.New("domain: task has subtasks")

	// Reorder batch validation.
	ErrDuplicateTaskID = errors.New("domain: duplicate task id in batch")
	ErrDuplicateOrder  = errors.New("domain: duplicate order in batch")
	ErrNotASibling     = errors.New("domain: task is not a child of the given parent")
)
