package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/config"
	"github.com/jetsetgo/kot-print-server/internal/dispatch"
	"github.com/jetsetgo/kot-print-server/internal/jobs"
	"github.com/jetsetgo/kot-print-server/internal/logging"
	"github.com/jetsetgo/kot-print-server/internal/metrics"
	"github.com/jetsetgo/kot-print-server/internal/printer"
)

// app holds everything a command needs, built from the configuration
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	logs     *logging.Buffer
	metrics  *metrics.Metrics
	printers *printer.Manager
	bridge   bridge.Bridge
	jobs     jobs.Store

	closers []func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
		cfg.ConfigPath = "config.yaml"
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logs:    logging.NewBuffer(cfg.Log.BufferCapacity),
		metrics: metrics.New(),
	}
	a.log = logging.New(logging.ParseLevel(cfg.Log.Level), a.logs)
	slog.SetDefault(a.log)

	a.printers, err = printer.FromConfig(cfg.Printers)
	if err != nil {
		return nil, err
	}

	switch cfg.Bridge.Mode {
	case config.BridgeWebSocket:
		a.bridge = bridge.NewWSClient(cfg.Bridge.Endpoint, bridge.WSOptions{
			APIKey:            cfg.Bridge.APIKey,
			RequestTimeout:    cfg.Bridge.RequestTimeout,
			ReconnectDelay:    cfg.Bridge.ReconnectDelay,
			MaxReconnectDelay: cfg.Bridge.MaxReconnectDelay,
			PingInterval:      cfg.Bridge.PingInterval,
			Logger:            a.log,
		})
		a.closers = append(a.closers, a.printers.Close)
	case config.BridgeHTTP:
		a.bridge = bridge.NewHTTPClient(cfg.Bridge.Endpoint, cfg.Bridge.APIKey, cfg.Bridge.RequestTimeout)
		a.closers = append(a.closers, a.printers.Close)
	default:
		a.bridge = bridge.NewLocal(a.printers)
	}
	a.closers = append(a.closers, a.bridge.Close)

	a.jobs = a.jobStore(cmd.Context())
	return a, nil
}

// jobStore returns the Redis store when one is configured and reachable
func (a *app) jobStore(ctx context.Context) jobs.Store {
	if a.cfg.Jobs.RedisURL == "" {
		return jobs.NewMemoryStore(a.cfg.Jobs.Capacity)
	}

	store, err := jobs.NewRedisStore(a.cfg.Jobs.RedisURL,
		jobs.WithPrefix(a.cfg.Jobs.Prefix),
		jobs.WithCapacity(a.cfg.Jobs.Capacity),
	)
	if err == nil {
		err = store.Ping(ctx)
		if err != nil {
			store.Close()
		}
	}
	if err != nil {
		a.log.Warn("Redis job store unavailable, keeping history in memory", "error", err)
		return jobs.NewMemoryStore(a.cfg.Jobs.Capacity)
	}

	a.closers = append(a.closers, store.Close)
	a.log.Info("Job history stored in Redis", "prefix", a.cfg.Jobs.Prefix)
	return store
}

func (a *app) dispatcher(opts ...dispatch.Option) *dispatch.Dispatcher {
	base := []dispatch.Option{
		dispatch.WithClearPolicy(dispatch.ClearPolicy(a.cfg.Dispatch.ClearPolicy)),
		dispatch.WithUnassignedPolicy(dispatch.UnassignedPolicy(a.cfg.Dispatch.UnassignedPolicy)),
		dispatch.WithHeader(a.cfg.Ticket.Header),
		dispatch.WithFooter(a.cfg.Ticket.Footer),
		dispatch.WithJobStore(a.jobs),
		dispatch.WithMetrics(a.metrics),
		dispatch.WithLogger(a.log),
	}
	return dispatch.New(a.bridge, append(base, opts...)...)
}

// Close releases the bridge, printers and job store
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
