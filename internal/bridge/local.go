package bridge

import (
	"context"
	"fmt"

	"github.com/jetsetgo/kot-print-server/internal/printer"
)

// Local is a bridge backed by printers owned by this process
type Local struct {
	mgr *printer.Manager
}

// NewLocal wraps a printer manager
func NewLocal(mgr *printer.Manager) *Local {
	return &Local{mgr: mgr}
}

// Connect is a no-op for in-process printers
func (l *Local) Connect(ctx context.Context) error {
	return nil
}

// Printers lists the configured printer IDs
func (l *Local) Printers(ctx context.Context) ([]string, error) {
	return l.mgr.IDs(), nil
}

// NewConfig creates a single-copy job config
func (l *Local) NewConfig(printerID string) Config {
	return Config{Printer: printerID, Copies: 1}
}

// Print encodes plain segments to the printer's code page, passes base64
// segments through untouched, and sends the whole payload as one job.
func (l *Local) Print(ctx context.Context, cfg Config, data []Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload []byte
	for i, s := range data {
		var chunk []byte
		var err error
		if s.Format == FormatPlain || s.Format == "" {
			chunk, err = l.mgr.Encode(cfg.Printer, s.Data)
		} else {
			chunk, err = s.Bytes()
		}
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		payload = append(payload, chunk...)
	}

	for n := 0; n < copies(cfg); n++ {
		if err := l.mgr.Print(cfg.Printer, payload); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the printers
func (l *Local) Close() error {
	return l.mgr.Close()
}
