package certificate

import (
	"context"
	"sync"

	"docsign/internal/keys/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

// InMemory is a thread-safe certificate store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	certs map[id.CertificateID]models.Certificate
}

func NewInMemory() *InMemory {
	return &InMemory{certs: make(map[id.CertificateID]models.Certificate)}
}

func (s *InMemory) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[cert.ID]; exists {
		return sentinel.ErrConflict
	}
	s.certs[cert.ID] = *cert
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &cert, nil
}

// Execute runs fn on a copy of the certificate under the write lock and
// persists the copy only when fn succeeds.
func (s *InMemory) Execute(_ context.Context, certID id.CertificateID, fn func(*models.Certificate) error) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := fn(&cert); err != nil {
		return nil, err
	}
	s.certs[certID] = cert
	out := cert
	return &out, nil
}
