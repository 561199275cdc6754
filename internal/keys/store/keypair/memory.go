package keypair

import (
	"context"
	"slices"
	"sync"

	"docsign/internal/keys/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

type entry struct {
	kp  models.KeyPair
	seq uint64
}

// InMemory is a thread-safe key pair store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	pairs map[id.KeyPairID]*entry
	seq   uint64
}

func NewInMemory() *InMemory {
	return &InMemory{pairs: make(map[id.KeyPairID]*entry)}
}

// Create stores kp; with deactivatePrior every other active pair of the
// organization is deactivated under the same lock.
func (s *InMemory) Create(_ context.Context, kp *models.KeyPair, deactivatePrior bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pairs[kp.ID]; exists {
		return sentinel.ErrConflict
	}
	if deactivatePrior {
		for _, e := range s.pairs {
			if e.kp.OrganizationID == kp.OrganizationID {
				e.kp.IsActive = false
			}
		}
	}
	s.seq++
	s.pairs[kp.ID] = &entry{kp: *kp, seq: s.seq}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, keyPairID id.KeyPairID) (*models.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pairs[keyPairID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	kp := e.kp
	return &kp, nil
}

// ListByOrganization returns pairs newest first.
func (s *InMemory) ListByOrganization(_ context.Context, orgID id.OrganizationID) ([]*models.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(orgID, false), nil
}

// FindCurrent returns the newest active pair.
func (s *InMemory) FindCurrent(_ context.Context, orgID id.OrganizationID) (*models.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := s.sortedLocked(orgID, true)
	if len(active) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return active[0], nil
}

func (s *InMemory) sortedLocked(orgID id.OrganizationID, activeOnly bool) []*models.KeyPair {
	matches := make([]*entry, 0)
	for _, e := range s.pairs {
		if e.kp.OrganizationID != orgID || (activeOnly && !e.kp.IsActive) {
			continue
		}
		matches = append(matches, e)
	}
	slices.SortFunc(matches, func(a, b *entry) int {
		if c := b.kp.CreatedAt.Compare(a.kp.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq) - int(a.seq)
	})
	out := make([]*models.KeyPair, len(matches))
	for i, e := range matches {
		kp := e.kp
		out[i] = &kp
	}
	return out
}
