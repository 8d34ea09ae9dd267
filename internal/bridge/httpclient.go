package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PrintRequest is the body of POST /api/print. Segments are encoded by the
// receiving server; Data is raw bytes sent to the printer as-is.
type PrintRequest struct {
	PrinterID string    `json:"printer_id"`
	Copies    int       `json:"copies,omitempty"`
	Segments  []Segment `json:"segments,omitempty"`
	Data      []byte    `json:"data,omitempty"`
}

// PrintResponse is the reply to POST /api/print
type PrintResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type printerListing struct {
	Printers []struct {
		ID string `json:"id"`
	} `json:"printers"`
}

// HTTPClient is a bridge reached through another print server's REST API
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client

	mu        sync.Mutex
	connected bool
	lastError error
	lastSeen  time.Time
}

// NewHTTPClient creates a REST bridge client for the server at endpoint
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Status returns the current connection status
func (h *HTTPClient) Status() ConnectionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if h.lastError != nil {
		errStr = h.lastError.Error()
	}
	return ConnectionStatus{
		Connected: h.connected,
		LastError: errStr,
		LastSeen:  h.lastSeen,
	}
}

// Connect checks the remote server's health endpoint
func (h *HTTPClient) Connect(ctx context.Context) error {
	return h.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Printers lists the remote server's printers
func (h *HTTPClient) Printers(ctx context.Context) ([]string, error) {
	var listing printerListing
	if err := h.do(ctx, http.MethodGet, "/api/printers", nil, &listing); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(listing.Printers))
	for _, p := range listing.Printers {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// NewConfig creates a single-copy job config
func (h *HTTPClient) NewConfig(printerID string) Config {
	return Config{Printer: printerID, Copies: 1}
}

// Print submits a job and reports the remote outcome
func (h *HTTPClient) Print(ctx context.Context, cfg Config, data []Segment) error {
	req := PrintRequest{
		PrinterID: cfg.Printer,
		Copies:    cfg.Copies,
		Segments:  data,
	}

	var resp PrintResponse
	if err := h.do(ctx, http.MethodPost, "/api/print", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteError{Message: resp.Error}
	}
	return nil
}

// Close is a no-op; the client holds no session
func (h *HTTPClient) Close() error {
	return nil
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.endpoint+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.setError(err)
		return err
	}
	defer resp.Body.Close()

	// A 502 still carries a print outcome in the body
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadGateway {
		data, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
		h.setError(err)
		return err
	}

	// Successfully reached the server
	h.mu.Lock()
	h.connected = true
	h.lastError = nil
	h.lastSeen = time.Now()
	h.mu.Unlock()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (h *HTTPClient) setError(err error) {
	h.mu.Lock()
	h.connected = false
	h.lastError = err
	h.mu.Unlock()
}
