package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates a requested status transition is not in the
// unit's transition table. This is a defect or race-condition signal, never
// a user-facing retry case.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound indicates the requested entity does not exist in the store.
var ErrNotFound = errors.New("entity not found")

// TransitionError carries the details of a rejected status transition.
type TransitionError struct {
	Entity string // "submission" | "rubric" | "task" | "stage"
	ID     string
	From   string
	To     string
}

// Error returns the formatted transition failure.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: illegal transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// Unwrap makes TransitionError match errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
