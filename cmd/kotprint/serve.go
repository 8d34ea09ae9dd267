package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/api"
	"github.com/jetsetgo/kot-print-server/internal/order"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP print server",
	Long: `Starts the print server: order ledger API, KOT dispatch, receipt printing,
the bridge REST and websocket endpoints and the web UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			a.cfg.Server.Port = port
		}

		ctx := cmd.Context()
		a.log.Info("Print server starting",
			"config", a.cfg.ConfigPath,
			"bridge", a.cfg.Bridge.Mode,
			"printers", len(a.cfg.Printers),
		)

		if err := a.bridge.Connect(ctx); err != nil {
			a.log.Error("Bridge connection error", "mode", a.cfg.Bridge.Mode, "error", err)
		}

		var ledgerOpts []order.Option
		if allow, _ := cmd.Flags().GetBool("allow-unassigned"); allow {
			ledgerOpts = append(ledgerOpts, order.WithUnassigned())
		}

		srv := api.NewServer(a.cfg, api.Options{
			Ledger:     order.New(ledgerOpts...),
			Bridge:     a.bridge,
			Printers:   a.printers,
			Dispatcher: a.dispatcher(),
			Jobs:       a.jobs,
			Logs:       a.logs,
			Metrics:    a.metrics,
			Logger:     a.log,
		})

		// Failures are logged by the directory and leave it empty
		srv.RefreshPrinters(ctx)

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.Start()
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost:%d\n", a.cfg.Server.Port)

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			a.log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().Bool("allow-unassigned", false, "Accept items without a printer; they are reported at dispatch")
}
