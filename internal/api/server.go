package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/config"
	"github.com/jetsetgo/kot-print-server/internal/dispatch"
	"github.com/jetsetgo/kot-print-server/internal/jobs"
	"github.com/jetsetgo/kot-print-server/internal/logging"
	"github.com/jetsetgo/kot-print-server/internal/metrics"
	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/jetsetgo/kot-print-server/internal/printer"
)

// Options carries the collaborators of a Server. Nil fields get defaults
// built from the configuration.
type Options struct {
	Ledger     *order.Ledger
	Bridge     bridge.Bridge
	Printers   *printer.Manager
	Directory  *bridge.Directory
	Dispatcher *dispatch.Dispatcher
	Jobs       jobs.Store
	Logs       *logging.Buffer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// statusReporter is implemented by remote bridges
type statusReporter interface {
	Status() bridge.ConnectionStatus
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	ledger     *order.Ledger
	bridge     bridge.Bridge
	printers   *printer.Manager
	directory  *bridge.Directory
	dispatcher *dispatch.Dispatcher
	jobs       jobs.Store
	logs       *logging.Buffer
	metrics    *metrics.Metrics
	ws         *bridge.Server
	log        *slog.Logger

	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, opts Options) *Server {
	s := &Server{
		config:     cfg,
		ledger:     opts.Ledger,
		bridge:     opts.Bridge,
		printers:   opts.Printers,
		directory:  opts.Directory,
		dispatcher: opts.Dispatcher,
		jobs:       opts.Jobs,
		logs:       opts.Logs,
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}

	if s.log == nil {
		s.log = slog.Default()
	}
	if s.printers == nil {
		s.printers = printer.NewManager()
	}
	if s.bridge == nil {
		s.bridge = bridge.NewLocal(s.printers)
	}
	if s.ledger == nil {
		s.ledger = order.New()
	}
	if s.directory == nil {
		s.directory = bridge.NewDirectory(s.log)
	}
	if s.jobs == nil {
		s.jobs = jobs.NewMemoryStore(cfg.Jobs.Capacity)
	}
	if s.logs == nil {
		s.logs = logging.NewBuffer(cfg.Log.BufferCapacity)
	}
	if s.dispatcher == nil {
		s.dispatcher = dispatch.New(s.bridge,
			dispatch.WithClearPolicy(dispatch.ClearPolicy(cfg.Dispatch.ClearPolicy)),
			dispatch.WithUnassignedPolicy(dispatch.UnassignedPolicy(cfg.Dispatch.UnassignedPolicy)),
			dispatch.WithHeader(cfg.Ticket.Header),
			dispatch.WithFooter(cfg.Ticket.Footer),
			dispatch.WithJobStore(s.jobs),
			dispatch.WithMetrics(s.metrics),
			dispatch.WithLogger(s.log),
		)
	}

	s.ws = bridge.NewServer(s.bridge, s.log)
	s.ledger.Subscribe(s.ledgerChanged)
	s.metrics.SetLedgerItems(s.ledger.Len())

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	// Health check
	r.Get("/health", s.handleHealth)

	// Printers
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/printers", s.handleListPrinters)
	r.Post("/api/printers/refresh", s.handleRefreshPrinters)
	r.Post("/api/printers/discover", s.handleDiscoverPrinters)
	r.Post("/api/printers/{id}/test", s.handleTestPrint)

	// Order ledger
	r.Route("/api/order", func(r chi.Router) {
		r.Get("/items", s.handleListItems)
		r.Post("/items", s.handleAddItem)
		r.Delete("/items", s.handleClearItems)
		r.Delete("/items/{id}", s.handleRemoveItem)
		r.Delete("/positions/{index}", s.handleRemovePosition)
		r.Post("/dispatch", s.handleDispatch)
	})

	r.Post("/api/receipt", s.handleReceipt)
	r.Get("/api/jobs", s.handleJobs)
	r.Get("/api/logs", s.handleLogs)
	r.Delete("/api/logs", s.handleClearLogs)
	r.Get("/kot.txt", s.handleTicketText)

	// Bridge endpoints used by other print servers
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/api/print", s.handlePrint)
		r.Handle("/ws", s.ws)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Web UI
	r.Get("/", s.handleUI)

	s.router = r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Ledger returns the order ledger served by s
func (s *Server) Ledger() *order.Ledger {
	return s.ledger
}

// RefreshPrinters reloads the printer directory from the bridge
func (s *Server) RefreshPrinters(ctx context.Context) ([]string, error) {
	ids, err := s.directory.Refresh(ctx, s.bridge)
	s.metrics.SetPrinters(s.directory.Len())
	return ids, err
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("HTTP server listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ledgerChanged pushes the ledger to websocket sessions
func (s *Server) ledgerChanged(items []order.LineItem) {
	s.metrics.SetLedgerItems(len(items))

	data, err := json.Marshal(items)
	if err != nil {
		s.log.Error("Failed to encode ledger", "error", err)
		return
	}
	s.ws.Broadcast(bridge.Response{Type: bridge.TypeLedger, Items: data})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// requireAPIKey checks the X-API-Key header, or the api_key query parameter
// for browsers opening a websocket
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.config.Server.APIKey
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-API-Key")
		if got == "" {
			got = r.URL.Query().Get("api_key")
		}
		if got != want {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "invalid API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		verr *order.ValidationError
		ierr *order.IndexError
		uerr *dispatch.UnassignedGroupError
		perr *dispatch.PrintJobError
		derr *bridge.DirectoryRefreshError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &perr), errors.As(err, &derr), errors.Is(err, bridge.ErrNotConnected):
		return http.StatusBadGateway
	case errors.As(err, &ierr), errors.Is(err, order.ErrItemNotFound), errors.Is(err, printer.ErrPrinterNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrEmptyLedger), errors.As(err, &uerr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
