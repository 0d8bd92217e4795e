package pipeline

import (
	"errors"
	"fmt"
)

// Validatable is implemented by pipeline stages that hold a table which can
// be checked for structural correctness. A nil error is the only success
// signal.
type Validatable interface {
	Validate() error
}

var (
	// ErrNotReady is returned when a stage's table is read before the stage
	// has produced it.
	ErrNotReady            = errors.New("table is not initialized")
	ErrPreprocessorInvalid = errors.New("preprocessor validation failed")
	ErrOddEventCount       = errors.New("event count is odd")
)

// ValidationError reports the first row of the event table that breaks the
// start/end alternation.
type ValidationError struct {
	Index  int // position in the repaired table
	Row    int // source data row, 0 if unknown
	BikeID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("alternation broken at index %d (bike %s, source row %d): %s", e.Index, e.BikeID, e.Row, e.Reason)
}

// StructuralMismatchError reports that pairing did not halve the event table.
type StructuralMismatchError struct {
	Trips  int
	Events int
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("transformed table has %d trips, expected half of %d events", e.Trips, e.Events)
}

// table is either uninitialized (the zero value) or ready with rows.
type table[T any] struct {
	rows  []T
	ready bool
}

func readyTable[T any](rows []T) table[T] {
	return table[T]{rows: rows, ready: true}
}

func (t table[T]) get() ([]T, error) {
	if !t.ready {
		return nil, ErrNotReady
	}
	return t.rows, nil
}
