package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/ticket"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket name:qty[:amount]...",
	Short: "Render a plain-text kitchen order ticket",
	Long: `Writes a plain-text ticket for the given lines to stdout, ending with the
ESC d 3 feed-and-cut sequence. With --printer the text is sent to that
printer instead.`,
	Example: `  kotprint ticket --store "Corner Diner" "Item 1:2:20.00" "Item 2:1:15.00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		doc := ticket.Document{Store: a.cfg.Ticket.StoreName}
		if store, _ := cmd.Flags().GetString("store"); store != "" {
			doc.Store = store
		}
		doc.Title, _ = cmd.Flags().GetString("title")

		for _, arg := range args {
			line, err := parseTicketLine(arg)
			if err != nil {
				return err
			}
			doc.Lines = append(doc.Lines, line)
		}
		text := ticket.Text(doc)

		printerID, _ := cmd.Flags().GetString("printer")
		if printerID == "" {
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		}

		if err := a.bridge.Connect(cmd.Context()); err != nil {
			return fmt.Errorf("connect bridge: %w", err)
		}
		jobID, err := a.dispatcher().PrintText(cmd.Context(), printerID, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ticket sent to %s (job %s)\n", printerID, jobID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ticketCmd)
	ticketCmd.Flags().String("store", "", "Store name (overrides ticket.store_name)")
	ticketCmd.Flags().String("title", "", "Ticket title (default \"Kitchen Order Ticket\")")
	ticketCmd.Flags().StringP("printer", "P", "", "Send the ticket to this printer")
}
