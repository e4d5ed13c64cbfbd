package graph

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by every backing store.
var (
	// ErrStructural marks a missing or malformed node, relationship or
	// property. It indicates a graph construction defect and is never retried.
	ErrStructural = errors.New("structural graph error")
	// ErrInvalidDuration marks a negative or out of range cost.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrTransactionClosed is returned for any operation on a closed transaction.
	ErrTransactionClosed = errors.New("transaction closed")
	// ErrReadOnly is returned when a read transaction attempts a mutation.
	ErrReadOnly = errors.New("transaction is read only")
	// ErrTimeout is returned when the backing store times out a transaction.
	ErrTimeout = errors.New("transaction timed out")
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")
)

// MaxCost bounds any single relationship cost.
const MaxCost = 48 * time.Hour

// StructuralError describes which entity and property were found malformed.
type StructuralError struct {
	Entity   string
	Property string
	Reason   string
	Wrapped  error
}

func (e *StructuralError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("structural: %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("structural: %s.%s: %s", e.Entity, e.Property, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	if e.Wrapped != nil {
		return e.Wrapped
	}
	return ErrStructural
}

// Is makes every StructuralError match ErrStructural.
func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// NewStructuralError creates a StructuralError.
func NewStructuralError(entity, property, reason string) *StructuralError {
	return &StructuralError{Entity: entity, Property: property, Reason: reason}
}

// DurationError reports an out of range cost.
type DurationError struct {
	Entity string
	Value  time.Duration
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInvalidDuration, e.Entity, e.Value)
}

func (e *DurationError) Unwrap() error { return ErrInvalidDuration }

// CheckCost returns a DurationError when d is negative or above MaxCost.
func CheckCost(entity string, d time.Duration) error {
	if d < 0 || d > MaxCost {
		return &DurationError{Entity: entity, Value: d}
	}
	return nil
}
