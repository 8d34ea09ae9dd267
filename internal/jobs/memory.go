package jobs

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe ring buffer for job records
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Record
	cap     int
}

// NewMemoryStore creates a new job buffer with the given capacity
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 50
	}
	return &MemoryStore{
		entries: make([]Record, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a job record to the buffer
func (m *MemoryStore) Add(ctx context.Context, job Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.cap {
		copy(m.entries, m.entries[1:])
		m.entries[len(m.entries)-1] = job
	} else {
		m.entries = append(m.entries, job)
	}
	return nil
}

// Entries returns all job records (newest first)
func (m *MemoryStore) Entries(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Record, len(m.entries))
	for i, j := 0, len(m.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = m.entries[j]
	}
	return result, nil
}

// UpdateStatus updates the status of a job by ID. Unknown IDs are ignored.
func (m *MemoryStore) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ID == jobID {
			finish(&m.entries[i], status, errMsg)
			return nil
		}
	}
	return nil
}
