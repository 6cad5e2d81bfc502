// Package history tracks per-display delivery outcomes. The store is
// written only by the orchestrator's job loop and read concurrently by the
// status API and the dashboard source, so reads and writes are guarded by
// a single RWMutex.
package history

import (
	"sync"
	"time"

	"github.com/paperframe/paperframe/pkg/models"
)

// Store holds an UpdateRecord per display name.
type Store struct {
	mu      sync.RWMutex
	records map[string]*models.UpdateRecord
	now     func() time.Time
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*models.UpdateRecord),
		now:     time.Now,
	}
}

// Register creates an empty record for a display. Registering an already
// known display is a no-op so existing counters survive.
func (s *Store) Register(display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[display]; !ok {
		s.records[display] = &models.UpdateRecord{}
	}
}

// RecordSuccess records a successful delivery attempt.
func (s *Store) RecordSuccess(display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(display)
	now := s.now()
	rec.LastAttempt = &now
	rec.LastSuccess = &now
	rec.SuccessCount++
}

// RecordError records a failed delivery attempt with its message.
func (s *Store) RecordError(display, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(display)
	now := s.now()
	rec.LastAttempt = &now
	rec.LastError = &now
	rec.LastErrorMessage = message
	rec.ErrorCount++
}

// Snapshot returns a copy of one display's record.
func (s *Store) Snapshot(display string) (models.UpdateRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[display]
	if !ok {
		return models.UpdateRecord{}, false
	}
	return *rec, true
}

// SnapshotAll returns copies of every record keyed by display name.
func (s *Store) SnapshotAll() map[string]models.UpdateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.UpdateRecord, len(s.records))
	for name, rec := range s.records {
		out[name] = *rec
	}
	return out
}

// record returns the record for a display, creating it on first use.
// Callers must hold the write lock.
func (s *Store) record(display string) *models.UpdateRecord {
	rec, ok := s.records[display]
	if !ok {
		rec = &models.UpdateRecord{}
		s.records[display] = rec
	}
	return rec
}
