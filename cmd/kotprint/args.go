package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/jetsetgo/kot-print-server/internal/ticket"
)

// itemArg is a command line item of the form name:qty[:printer]
type itemArg struct {
	Name      string
	Quantity  int
	PrinterID string
}

func parseItemArg(s string) (itemArg, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return itemArg{}, fmt.Errorf("item %q: want name:qty[:printer]", s)
	}

	qty, err := order.ParseQuantity(parts[1])
	if err != nil {
		return itemArg{}, fmt.Errorf("item %q: %w", s, err)
	}

	it := itemArg{Name: strings.TrimSpace(parts[0]), Quantity: qty}
	if len(parts) == 3 {
		it.PrinterID = strings.TrimSpace(parts[2])
	}
	return it, nil
}

// parseReceiptLine parses label=amount
func parseReceiptLine(s string) (ticket.ReceiptLine, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return ticket.ReceiptLine{}, fmt.Errorf("receipt line %q: want label=amount", s)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return ticket.ReceiptLine{}, fmt.Errorf("receipt line %q: %w", s, err)
	}
	return ticket.ReceiptLine{Label: strings.TrimSpace(s[:i]), Amount: amount}, nil
}

// parseTicketLine parses name:qty[:amount]
func parseTicketLine(s string) (ticket.Line, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ticket.Line{}, fmt.Errorf("line %q: want name:qty[:amount]", s)
	}

	qty, err := order.ParseQuantity(parts[1])
	if err != nil {
		return ticket.Line{}, fmt.Errorf("line %q: %w", s, err)
	}

	line := ticket.Line{Label: strings.TrimSpace(parts[0]), Quantity: qty}
	if len(parts) == 3 {
		line.Amount, err = decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return ticket.Line{}, fmt.Errorf("line %q: %w", s, err)
		}
	}
	return line, nil
}
