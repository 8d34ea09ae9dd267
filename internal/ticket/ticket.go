// Package ticket builds the text printed on kitchen order tickets and
// receipts. Output is plain text assembled line by line; the printer does
// any formatting it supports.
package ticket

import (
	"fmt"
	"strings"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/shopspring/decimal"
)

// CutSequence is ESC d 3: feed three lines, then the cutter fires
const CutSequence = "\x1bd\x03"

// Default ticket framing
const (
	DefaultKOTHeader = "\n----- Kitchen Order Ticket -----\n"
	DefaultKOTFooter = "-------------------------------\n\n"
)

// Frame is the fixed text printed around KOT items
type Frame struct {
	Header string
	Footer string
}

func (f Frame) header() string {
	if f.Header == "" {
		return DefaultKOTHeader
	}
	return f.Header
}

func (f Frame) footer() string {
	if f.Footer == "" {
		return DefaultKOTFooter
	}
	return f.Footer
}

// ItemLine renders an item as "name xquantity"
func ItemLine(item order.LineItem) string {
	return fmt.Sprintf("%s x%d", item.Name, item.Quantity)
}

// KOT builds the payload of one kitchen ticket
func KOT(items []order.LineItem, frame Frame) []bridge.Segment {
	segments := []bridge.Segment{
		bridge.Plain(frame.header()),
		bridge.Plain("Order Details:\n"),
	}
	for _, item := range items {
		segments = append(segments, bridge.Plain(" - "+ItemLine(item)+"\n"))
	}
	return append(segments, bridge.Plain(frame.footer()))
}

// ReceiptLine is one priced entry of a receipt
type ReceiptLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Receipt is an ad-hoc customer receipt
type Receipt struct {
	Lines []ReceiptLine `json:"lines"`
}

// Total sums the receipt lines
func (r Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Money formats an amount as $x.xx
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Segments builds the receipt payload
func (r Receipt) Segments() []bridge.Segment {
	segments := []bridge.Segment{bridge.Plain("\n----- Receipt -----\n")}
	for _, l := range r.Lines {
		segments = append(segments, bridge.Plain(l.Label+"\t"+Money(l.Amount)+"\n"))
	}
	return append(segments,
		bridge.Plain("-------------------\n"),
		bridge.Plain("Total\t"+Money(r.Total())+"\n"),
		bridge.Plain("-------------------\n\n"),
	)
}

// Line is one row of a text ticket. A zero amount is not printed.
type Line struct {
	Label    string
	Quantity int
	Amount   decimal.Decimal
}

// Document is the input of the ticket text generator
type Document struct {
	Store string
	Title string
	Lines []Line
}

// LinesFromItems converts ledger items to unpriced ticket lines
func LinesFromItems(items []order.LineItem) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{Label: item.Name, Quantity: item.Quantity}
	}
	return lines
}

// Text renders a plain-text ticket ending with CutSequence
func Text(doc Document) string {
	title := doc.Title
	if title == "" {
		title = "Kitchen Order Ticket"
	}

	var sb strings.Builder
	sb.WriteString(doc.Store + "\n\n")
	sb.WriteString(title + "\n\n")

	total := decimal.Zero
	priced := false
	for _, l := range doc.Lines {
		fmt.Fprintf(&sb, "%s x%d", l.Label, l.Quantity)
		if !l.Amount.IsZero() {
			priced = true
			total = total.Add(l.Amount)
			sb.WriteString("\t" + Money(l.Amount))
		}
		sb.WriteString("\n")
	}

	if priced {
		sb.WriteString("\nTotal\t" + Money(total) + "\n")
	}

	sb.WriteString(CutSequence)
	return sb.String()
}
