package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates an ordinal or ID argument outside valid bounds.
	ErrOutOfRange = errors.New("out of range")
	// ErrNotFound indicates that a referenced task or column does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotAssignee indicates that the caller is not the task's current assignee.
	ErrNotAssignee = errors.New("not the task assignee")
	// ErrTerminalColumn indicates a mutation or advance attempted on the terminal column.
	ErrTerminalColumn = errors.New("terminal column is read-only")
	// ErrColumnAtCapacity indicates that an insertion would exceed a finite column limit.
	ErrColumnAtCapacity = errors.New("column at capacity")
	// ErrLimitBelowCurrentCount indicates a limit lower than the column's current occupancy.
	ErrLimitBelowCurrentCount = errors.New("limit below current task count")
	// ErrNotEmpty indicates an attempt to reorder a column that holds tasks.
	ErrNotEmpty = errors.New("column not empty")
	// ErrMinimumColumnsViolated indicates a removal that would leave fewer than MinColumns columns.
	ErrMinimumColumnsViolated = errors.New("board must keep at least two columns")
	// ErrInvalidField indicates a field failing its format, length or date constraints.
	ErrInvalidField = errors.New("invalid field")
	// ErrInvalidName indicates an empty column name.
	ErrInvalidName = errors.New("invalid column name")
	// ErrPersistenceConflict indicates that the durable row already exists.
	ErrPersistenceConflict = errors.New("row already exists")
	// ErrPersistenceUnavailable indicates that the durable store failed.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// FieldError reports which field failed validation and why.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// RangeError reports an argument outside [Min, Max].
type RangeError struct {
	What  string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range: must be between %d and %d (inclusive)", e.What, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }
