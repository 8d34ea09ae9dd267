package order

import (
	"strconv"
	"strings"
)

// Unassigned keys the group of items that have no printer.
const Unassigned = "Unassigned"

// LineItem is one pending entry of a kitchen order
type LineItem struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	PrinterID string `json:"printer_id"`
}

// Assigned reports whether the item is routed to a printer.
func (i LineItem) Assigned() bool {
	return i.PrinterID != "" && i.PrinterID != Unassigned
}

// Validate checks the fields of a line item before it is accepted.
// A missing printer is only an error when requirePrinter is set.
func Validate(name string, quantity int, printerID string, requirePrinter bool) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if requirePrinter && strings.TrimSpace(printerID) == "" {
		return &ValidationError{Field: "printer", Reason: "a printer must be assigned"}
	}
	return nil
}

// ParseQuantity parses a quantity typed by a user.
func ParseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return n, nil
}
