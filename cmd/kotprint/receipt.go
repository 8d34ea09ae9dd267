package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/ticket"
)

var receiptCmd = &cobra.Command{
	Use:     "receipt label=amount...",
	Short:   "Print a receipt",
	Example: `  kotprint receipt --printer front "Item 1=10.00" "Item 2=15.00"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var receipt ticket.Receipt
		for _, arg := range args {
			line, err := parseReceiptLine(arg)
			if err != nil {
				return err
			}
			receipt.Lines = append(receipt.Lines, line)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.bridge.Connect(cmd.Context()); err != nil {
			return fmt.Errorf("connect bridge: %w", err)
		}

		printerID, _ := cmd.Flags().GetString("printer")
		jobID, err := a.dispatcher().PrintReceipt(cmd.Context(), printerID, receipt)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Receipt for %s sent to %s (job %s)\n",
			ticket.Money(receipt.Total()), printerID, jobID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(receiptCmd)
	receiptCmd.Flags().StringP("printer", "P", "", "Printer to print on")
}
