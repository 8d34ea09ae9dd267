package order

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when removing an ID the ledger does not hold.
var ErrItemNotFound = errors.New("item not found")

// ValidationError reports bad user input for a line item.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IndexError reports a positional removal outside the ledger.
type IndexError struct {
	Index  int
	Length int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Length)
}
