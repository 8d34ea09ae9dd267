package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetgo/kot-print-server/internal/config"
	"github.com/jetsetgo/kot-print-server/internal/dispatch"
	"github.com/jetsetgo/kot-print-server/internal/order"
)

func TestParseItemArg(t *testing.T) {
	tests := []struct {
		in      string
		want    itemArg
		wantErr bool
	}{
		{in: "Soup:2:P1", want: itemArg{Name: "Soup", Quantity: 2, PrinterID: "P1"}},
		{in: "Salad:1", want: itemArg{Name: "Salad", Quantity: 1}},
		{in: "Soup", wantErr: true},
		{in: "Soup:0:P1", wantErr: true},
		{in: "Soup:two:P1", wantErr: true},
		{in: "a:1:b:c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseItemArg(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReceiptLine(t *testing.T) {
	line, err := parseReceiptLine("Item 1=10.50")
	require.NoError(t, err)
	assert.Equal(t, "Item 1", line.Label)
	assert.Equal(t, "10.5", line.Amount.String())

	_, err = parseReceiptLine("=10")
	assert.Error(t, err)
	_, err = parseReceiptLine("Item=ten")
	assert.Error(t, err)
}

func TestParseTicketLine(t *testing.T) {
	line, err := parseTicketLine("Item 1:2:20")
	require.NoError(t, err)
	assert.Equal(t, "Item 1", line.Label)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "20", line.Amount.String())

	line, err = parseTicketLine("Soup:1")
	require.NoError(t, err)
	assert.True(t, line.Amount.IsZero())
}

func TestRenderResult(t *testing.T) {
	res := dispatch.Result{
		Outcomes: []dispatch.Outcome{
			{PrinterID: "P1", Items: make([]order.LineItem, 2)},
			{PrinterID: "P2", Items: make([]order.LineItem, 1), Err: errors.New("paper out")},
		},
		Skipped: []order.Group{{PrinterID: order.Unassigned, Items: make([]order.LineItem, 1)}},
		Notices: []dispatch.Notice{{Level: dispatch.LevelInfo, Message: "KOT printing finished: 1 printed, 1 failed."}},
	}

	var out bytes.Buffer
	renderResult(&out, res)

	assert.Equal(t,
		"PRINTER     ITEMS  RESULT\n"+
			"P1          2      printed\n"+
			"P2          1      paper out\n"+
			"Unassigned  1      skipped\n"+
			"[info] KOT printing finished: 1 printed, 1 failed.\n",
		out.String())
}

func TestTicketCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Ticket.StoreName = "Corner Diner"
	require.NoError(t, cfg.Save(path))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "--log-level", "error", "ticket", "Item 1:2:20", "Item 2:1:15"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t,
		"Corner Diner\n\nKitchen Order Ticket\n\nItem 1 x2\t$20.00\nItem 2 x1\t$15.00\n\nTotal\t$35.00\n\x1bd\x03",
		out.String())
}
