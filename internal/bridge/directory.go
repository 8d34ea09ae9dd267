package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// DirectoryRefreshError reports a failed printer listing
type DirectoryRefreshError struct {
	Err error
}

func (e *DirectoryRefreshError) Error() string {
	return fmt.Sprintf("refresh printer directory: %v", e.Err)
}

func (e *DirectoryRefreshError) Unwrap() error {
	return e.Err
}

// Directory is the set of printer IDs last reported by a bridge
type Directory struct {
	mu  sync.RWMutex
	ids []string
	log *slog.Logger
}

// NewDirectory creates an empty directory
func NewDirectory(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{log: logger}
}

// Refresh asks the bridge for its printers once. On failure the directory
// is left empty and the error is logged; there is no retry.
func (d *Directory) Refresh(ctx context.Context, b Bridge) ([]string, error) {
	ids, err := b.Printers(ctx)
	if err != nil {
		d.mu.Lock()
		d.ids = nil
		d.mu.Unlock()

		d.log.Error("Error fetching printers", "error", err)
		return nil, &DirectoryRefreshError{Err: err}
	}

	ids = slices.Clone(ids)
	d.mu.Lock()
	d.ids = ids
	d.mu.Unlock()

	d.log.Info("Printer directory refreshed", "printers", len(ids))
	return slices.Clone(ids), nil
}

// IDs returns the known printer IDs
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.ids)
}

// Contains reports whether id is a known printer
func (d *Directory) Contains(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.ids, id)
}

// Len returns the number of known printers
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}
