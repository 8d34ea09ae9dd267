package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/dispatch"
	"github.com/jetsetgo/kot-print-server/internal/order"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch name:qty[:printer]...",
	Short: "Print kitchen order tickets for the given items",
	Long: `Builds an order from the arguments, groups it by printer and prints one
kitchen order ticket per printer. Items without a printer are reported and
skipped, or abort the dispatch when dispatch.unassigned_policy is "abort".`,
	Example: `  kotprint dispatch Soup:2:kitchen Bread:1:bakery Cake:1:kitchen`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger := order.New(order.WithUnassigned())
		for _, arg := range args {
			it, err := parseItemArg(arg)
			if err != nil {
				return err
			}
			if _, err := ledger.Append(it.Name, it.Quantity, it.PrinterID); err != nil {
				return fmt.Errorf("item %q: %w", arg, err)
			}
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.bridge.Connect(ctx); err != nil {
			return fmt.Errorf("connect bridge: %w", err)
		}

		dir := bridge.NewDirectory(a.log)
		dir.Refresh(ctx, a.bridge)

		res, err := a.dispatcher().Dispatch(ctx, ledger, dir)
		renderResult(cmd.OutOrStdout(), res)
		if err != nil {
			return err
		}
		if n := len(res.Failed()); n > 0 {
			return fmt.Errorf("%d of %d jobs failed", n, len(res.Outcomes))
		}
		return nil
	},
}

func renderResult(out io.Writer, res dispatch.Result) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRINTER\tITEMS\tRESULT")
	for _, o := range res.Outcomes {
		status := "printed"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", o.PrinterID, len(o.Items), status)
	}
	for _, g := range res.Skipped {
		fmt.Fprintf(w, "%s\t%d\t%s\n", g.PrinterID, len(g.Items), "skipped")
	}
	w.Flush()

	for _, n := range res.Notices {
		fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
	}
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
