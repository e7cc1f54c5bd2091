package sync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Trigger labels for run records.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

// RunRecord is one completed reconciliation run kept for monitoring.
type RunRecord struct {
	ID         uuid.UUID    `json:"id"`
	Trigger    string       `json:"trigger"`
	Options    Options      `json:"options"`
	Outcome    *SyncOutcome `json:"outcome,omitempty"`
	Error      string       `json:"error,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// NewRunRecord builds a record for a finished run. outcome may be nil when
// the run failed before producing one.
func NewRunRecord(trigger string, opts Options, outcome *SyncOutcome, err error) *RunRecord {
	record := &RunRecord{
		ID:         uuid.New(),
		Trigger:    trigger,
		Options:    opts,
		Outcome:    outcome,
		RecordedAt: time.Now(),
	}
	if err != nil {
		record.Error = err.Error()
	}
	return record
}

// RunHistory keeps the most recent run records in memory, newest first.
// It is bounded and safe for concurrent use.
type RunHistory struct {
	mu      sync.RWMutex
	records []*RunRecord
	max     int
}

// NewRunHistory creates a history holding at most max records.
func NewRunHistory(max int) *RunHistory {
	if max <= 0 {
		max = 50
	}
	return &RunHistory{
		records: make([]*RunRecord, 0, max),
		max:     max,
	}
}

// Add records a run, evicting the oldest entry when full.
func (h *RunHistory) Add(record *RunRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append([]*RunRecord{record}, h.records...)
	if len(h.records) > h.max {
		h.records = h.records[:h.max]
	}
}

// Recent returns up to limit records, newest first.
func (h *RunHistory) Recent(limit int) []*RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}
	result := make([]*RunRecord, limit)
	copy(result, h.records[:limit])
	return result
}
