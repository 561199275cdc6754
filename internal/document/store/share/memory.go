// Package share stores document share links.
package share

import (
	"context"
	"sync"
	"time"

	"docsign/internal/document/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

// InMemory is a thread-safe share link store for tests and local runs.
type InMemory struct {
	mu      sync.Mutex
	links   map[id.ShareLinkID]models.ShareLink
	byToken map[string]id.ShareLinkID
}

func NewInMemory() *InMemory {
	return &InMemory{
		links:   make(map[id.ShareLinkID]models.ShareLink),
		byToken: make(map[string]id.ShareLinkID),
	}
}

func (s *InMemory) Create(_ context.Context, link *models.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[link.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byToken[link.TokenHash]; exists {
		return sentinel.ErrConflict
	}
	s.links[link.ID] = *link
	s.byToken[link.TokenHash] = link.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, shareID id.ShareLinkID) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[shareID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}

func (s *InMemory) Delete(_ context.Context, shareID id.ShareLinkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[shareID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byToken, link.TokenHash)
	delete(s.links, shareID)
	return nil
}

// Redeem marks the link used and returns it. Expired links and one-time links
// that were already used are reported as not found.
func (s *InMemory) Redeem(_ context.Context, tokenHash string, now time.Time) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shareID, ok := s.byToken[tokenHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	link := s.links[shareID]
	if !link.UsableAt(now) {
		return nil, sentinel.ErrNotFound
	}
	link.UsedAt = &now
	s.links[shareID] = link
	return &link, nil
}
