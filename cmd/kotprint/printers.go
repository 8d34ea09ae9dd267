package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/printer"
)

var printersCmd = &cobra.Command{
	Use:   "printers",
	Short: "List the printers reported by the bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.bridge.Connect(ctx); err != nil {
			return fmt.Errorf("connect bridge: %w", err)
		}

		ids, err := bridge.NewDirectory(a.log).Refresh(ctx, a.bridge)
		if err != nil {
			return err
		}

		statuses := a.printers.Statuses()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS")
		for _, id := range ids {
			status, ok := statuses[id]
			if !ok {
				status = "remote"
			}
			fmt.Fprintf(w, "%s\t%s\n", id, status)
		}
		return w.Flush()
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the configured subnets for raw print ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d := a.cfg.Discovery
		if subnets, _ := cmd.Flags().GetStringSlice("subnet"); len(subnets) > 0 {
			d.Subnets = subnets
		}

		found, err := a.printers.Discover(cmd.Context(), printer.DiscoverOptions{
			Subnets: d.Subnets,
			Port:    d.Port,
			Timeout: d.Timeout,
			Workers: d.Workers,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tADDRESS\tPORT")
		for _, p := range found {
			fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Address, p.Port)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(printersCmd)
	printersCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringSlice("subnet", nil, "Subnet prefix to scan, e.g. 192.168.1. (repeatable)")
}
