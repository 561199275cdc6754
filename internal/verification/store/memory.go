// Package store persists verification records. Stores are append-only.
package store

import (
	"context"
	"sync"

	"docsign/internal/verification/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

// InMemory keeps records in insertion order.
type InMemory struct {
	mu      sync.RWMutex
	records []models.Record
	ids     map[id.VerificationID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{ids: make(map[id.VerificationID]struct{})}
}

func (s *InMemory) Append(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	s.ids[rec.ID] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

// ListByDocument returns the document's records newest first with the total count.
func (s *InMemory) ListByDocument(_ context.Context, docID id.DocumentID, limit, offset int) ([]models.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].DocumentID == docID {
			matched = append(matched, s.records[i])
		}
	}
	total := len(matched)
	if offset >= total {
		return []models.Record{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// Count reports the number of stored records.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns a copy of every record in insertion order.
func (s *InMemory) All() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}
