// Package template stores organization document templates.
package template

import (
	"context"
	"slices"
	"strings"
	"sync"

	"docsign/internal/document/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

// InMemory is a thread-safe template store. Names are unique per
// organization, ignoring case.
type InMemory struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]models.Template
}

func NewInMemory() *InMemory {
	return &InMemory{templates: make(map[id.TemplateID]models.Template)}
}

func (s *InMemory) Create(_ context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, other := range s.templates {
		if other.OrganizationID == t.OrganizationID && strings.EqualFold(other.Name, t.Name) {
			return sentinel.ErrConflict
		}
	}
	s.templates[t.ID] = *t
	return nil
}

func (s *InMemory) FindByID(_ context.Context, templateID id.TemplateID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

// ListByOrganization returns the organization's templates ordered by name.
func (s *InMemory) ListByOrganization(_ context.Context, orgID id.OrganizationID) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Template, 0)
	for _, t := range s.templates {
		if t.OrganizationID == orgID {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *models.Template) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}
