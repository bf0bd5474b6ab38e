package board

import (
	"errors"
	"fmt"
)

// Domain errors for the board engine.
var (
	// ErrUnknownField indicates a grouping field the board cannot group by.
	ErrUnknownField = errors.New("unknown grouping field")

	// ErrRecordNotFound indicates the record is not on the board.
	ErrRecordNotFound = errors.New("record not found on board")

	// ErrUnknownColumn indicates a drop target that is not a column of the
	// current grouping.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNoParentMatch indicates the record's parent entity has no value with
	// the target column's name.
	ErrNoParentMatch = errors.New("no matching value for the record's parent")

	// ErrDragNotActive indicates a gesture event arrived while no drag was
	// in progress.
	ErrDragNotActive = errors.New("no drag in progress")

	// ErrDragInProgress indicates a drag was started while another is active.
	ErrDragInProgress = errors.New("a drag is already in progress")

	// ErrPersistence indicates storage rejected a move.
	ErrPersistence = errors.New("persisting move failed")

	// ErrReconcileStalled indicates authoritative data never confirmed a move.
	ErrReconcileStalled = errors.New("move was not confirmed by authoritative data")
)

// InvalidDropError explains why a drop was rejected.
type InvalidDropError struct {
	RecordID  string
	ColumnKey string
	Reason    error
}

func (e *InvalidDropError) Error() string {
	return fmt.Sprintf("cannot drop record %s on column %q: %v", e.RecordID, e.ColumnKey, e.Reason)
}

// Is allows errors.Is to match the underlying reason.
func (e *InvalidDropError) Is(target error) bool {
	return target == e.Reason
}

func (e *InvalidDropError) Unwrap() error {
	return e.Reason
}

// PersistenceError reports a failed gateway write.
type PersistenceError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("update %s of record %s: %v", e.Field, e.RecordID, e.Err)
}

// Is allows errors.Is to work with PersistenceError.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DropOutcome classifies the result of a drop.
type DropOutcome int

const (
	OutcomeApplied DropOutcome = iota + 1
	OutcomeNoop
	OutcomeInvalid
	OutcomeCancelled
)

func (o DropOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoop:
		return "noop"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
