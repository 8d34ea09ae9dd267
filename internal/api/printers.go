package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/jobs"
	"github.com/jetsetgo/kot-print-server/internal/printer"
)

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns server status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "running",
		"bridge_mode":    s.config.Bridge.Mode,
		"printers_count": len(s.printers.IDs()),
		"directory_size": s.directory.Len(),
		"ledger_items":   s.ledger.Len(),
		"ws_sessions":    s.ws.Sessions(),
	}
	if sr, ok := s.bridge.(statusReporter); ok {
		resp["bridge"] = sr.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

type printerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	CodePage    string `json:"code_page,omitempty"`
	Status      string `json:"status"`
	InDirectory bool   `json:"in_directory"`
}

// handleListPrinters returns local printers with their status, followed by
// directory entries that only the remote bridge knows about
func (s *Server) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	statuses := s.printers.Statuses()
	seen := make(map[string]bool)

	printers := make([]printerView, 0)
	for _, info := range s.printers.List() {
		seen[info.ID] = true
		printers = append(printers, printerView{
			ID:          info.ID,
			Name:        info.Name,
			Type:        info.Type,
			CodePage:    info.CodePage,
			Status:      statuses[info.ID],
			InDirectory: s.directory.Contains(info.ID),
		})
	}
	for _, id := range s.directory.IDs() {
		if seen[id] {
			continue
		}
		printers = append(printers, printerView{
			ID:          id,
			Name:        id,
			Type:        "remote",
			Status:      "unknown",
			InDirectory: true,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"printers":  printers,
		"directory": s.directory.IDs(),
	})
}

// handleRefreshPrinters reloads the printer directory from the bridge
func (s *Server) handleRefreshPrinters(w http.ResponseWriter, r *http.Request) {
	ids, err := s.RefreshPrinters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directory": ids,
	})
}

// handleDiscoverPrinters scans for available printers
func (s *Server) handleDiscoverPrinters(w http.ResponseWriter, r *http.Request) {
	d := s.config.Discovery
	discovered, err := s.printers.Discover(r.Context(), printer.DiscoverOptions{
		Subnets: d.Subnets,
		Port:    d.Port,
		Timeout: d.Timeout,
		Workers: d.Workers,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discovered": discovered,
	})
}

// handleTestPrint sends a test page to a local printer
func (s *Server) handleTestPrint(w http.ResponseWriter, r *http.Request) {
	printerID := chi.URLParam(r, "id")

	job := jobs.NewRecord(printerID, jobs.KindTest, 0)
	if err := s.jobs.Add(r.Context(), job); err != nil {
		s.log.Warn("Failed to record job", "job_id", job.ID, "error", err)
	}

	start := time.Now()
	err := s.printers.TestPrint(printerID)
	s.metrics.ObserveJob(printerID, jobs.KindTest, err, time.Since(start))

	if err != nil {
		s.log.Error("Test print failed", "printer", printerID, "error", err)
		s.updateJob(r.Context(), job.ID, jobs.StatusFailed, err.Error())
		writeError(w, err)
		return
	}

	s.log.Info("Test print sent", "printer", printerID)
	s.updateJob(r.Context(), job.ID, jobs.StatusCompleted, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job_id":  job.ID,
		"message": "Test print sent successfully",
	})
}

func (s *Server) updateJob(ctx context.Context, id, status, errMsg string) {
	if err := s.jobs.UpdateStatus(ctx, id, status, errMsg); err != nil {
		s.log.Warn("Failed to update job", "job_id", id, "error", err)
	}
}

// handlePrint accepts a job from a remote bridge client. Segments are
// encoded by the printer; data bytes are sent as-is after them.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req bridge.PrintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, bridge.PrintResponse{Error: "Invalid request body"})
		return
	}

	segments := req.Segments
	if len(req.Data) > 0 {
		segments = append(segments, bridge.Binary(req.Data))
	}

	jobID, err := s.dispatcher.PrintRaw(r.Context(), req.PrinterID, req.Copies, segments)
	if err != nil {
		writeJSON(w, statusFor(err), bridge.PrintResponse{JobID: jobID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, bridge.PrintResponse{Success: true, JobID: jobID})
}

// handleJobs returns the job history, newest first
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.jobs.Entries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": entries,
	})
}

// handleLogs returns buffered log lines; ?level=warn,error filters them
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if q := r.URL.Query().Get("level"); q != "" {
		levels = strings.Split(q, ",")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": s.logs.Entries(levels),
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	w.WriteHeader(http.StatusNoContent)
}
