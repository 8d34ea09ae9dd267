package dispatch

import (
	"errors"
	"fmt"

	"github.com/jetsetgo/kot-print-server/internal/order"
)

var (
	// ErrEmptyLedger is returned when there is nothing to dispatch
	ErrEmptyLedger = errors.New("no items to print in KOT")

	// ErrUnknownPrinter marks a group addressed to a printer the bridge
	// did not report at the last directory refresh
	ErrUnknownPrinter = errors.New("printer not in directory")
)

// UnassignedGroupError reports items that have no printer
type UnassignedGroupError struct {
	Items []order.LineItem
}

func (e *UnassignedGroupError) Error() string {
	if len(e.Items) == 1 {
		return "1 item is not assigned to any printer"
	}
	return fmt.Sprintf("%d items are not assigned to any printer", len(e.Items))
}

// PrintJobError reports a failed submission to one printer
type PrintJobError struct {
	PrinterID string
	Err       error
}

func (e *PrintJobError) Error() string {
	return fmt.Sprintf("print on %s: %v", e.PrinterID, e.Err)
}

func (e *PrintJobError) Unwrap() error {
	return e.Err
}
