// Package jobs keeps a bounded history of print jobs.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusPrinting  = "printing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job kinds
const (
	KindKOT     = "kot"
	KindReceipt = "receipt"
	KindText    = "text"
	KindRaw     = "raw"
	KindTest    = "test"
)

// Record represents a print job
type Record struct {
	ID          string     `json:"id"`
	PrinterID   string     `json:"printer_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Items       int        `json:"items,omitempty"`
	DataSize    int        `json:"data_size"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewRecord starts a printing record with a fresh ID
func NewRecord(printerID, kind string, dataSize int) Record {
	return Record{
		ID:        uuid.NewString(),
		PrinterID: printerID,
		Kind:      kind,
		Status:    StatusPrinting,
		DataSize:  dataSize,
		CreatedAt: time.Now(),
	}
}

// Store keeps job records, newest first
type Store interface {
	Add(ctx context.Context, job Record) error
	UpdateStatus(ctx context.Context, jobID, status, errMsg string) error
	Entries(ctx context.Context) ([]Record, error)
}

func finish(job *Record, status, errMsg string) {
	job.Status = status
	if errMsg != "" {
		job.Error = errMsg
	}
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
}
