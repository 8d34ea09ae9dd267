package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/jetsetgo/kot-print-server/internal/ticket"
)

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// AddItemRequest is the body of POST /api/order/items. Quantity may be a
// number or the text typed into a form field.
type AddItemRequest struct {
	Name      string      `json:"name"`
	Quantity  json.Number `json:"quantity"`
	PrinterID string      `json:"printer_id"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.ledger.Snapshot(),
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &order.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	qty, err := order.ParseQuantity(req.Quantity.String())
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := s.ledger.Append(req.Name, qty, req.PrinterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	s.ledger.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, &order.ValidationError{Field: "id", Reason: "must be a positive integer"})
		return
	}

	item, err := s.ledger.Remove(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemovePosition(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, &order.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}

	item, err := s.ledger.RemoveAt(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDispatch prints the ledger as kitchen tickets. Notices travel in the
// body for every outcome so the front end can show them.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), s.ledger, s.directory)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   err.Error(),
			"result":  res,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": len(res.Failed()) == 0 && len(res.Skipped) == 0,
		"result":  res,
	})
}

// ReceiptRequest is the body of POST /api/receipt
type ReceiptRequest struct {
	PrinterID string               `json:"printer_id"`
	Lines     []ticket.ReceiptLine `json:"lines"`
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &order.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	receipt := ticket.Receipt{Lines: req.Lines}
	jobID, err := s.dispatcher.PrintReceipt(r.Context(), req.PrinterID, receipt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job_id":  jobID,
		"total":   ticket.Money(receipt.Total()),
	})
}

// handleTicketText renders the current ledger as a plain-text ticket.
// ?printer= limits it to one printer's items.
func (s *Server) handleTicketText(w http.ResponseWriter, r *http.Request) {
	items := s.ledger.Snapshot()
	if p := strings.TrimSpace(r.URL.Query().Get("printer")); p != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.PrinterID == p {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	text := ticket.Text(ticket.Document{
		Store: s.config.Ticket.StoreName,
		Lines: ticket.LinesFromItems(items),
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}
