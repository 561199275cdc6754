// Package store persists documents.
package store

import (
	"context"
	"slices"
	"sync"

	"docsign/internal/document/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

// InMemory is a thread-safe document store. Execute holds the write lock for
// the whole callback, so read-modify-write sequences on one store are
// serialized.
type InMemory struct {
	mu     sync.RWMutex
	docs   map[id.DocumentID]*models.Document
	byHash map[string]id.DocumentID
}

func NewInMemory() *InMemory {
	return &InMemory{
		docs:   make(map[id.DocumentID]*models.Document),
		byHash: make(map[string]id.DocumentID),
	}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byHash[doc.FileHash]; exists {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = doc.Clone()
	s.byHash[doc.FileHash] = doc.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *InMemory) FindByHash(_ context.Context, fileHash string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.byHash[fileHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.docs[docID].Clone(), nil
}

// FindByIDs returns the documents that exist; missing ids are skipped.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0, len(ids))
	for _, docID := range ids {
		if doc, ok := s.docs[docID]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// List returns one page of matching documents, newest first, and the total
// number of matches.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]*models.Document, 0)
	for _, doc := range s.docs {
		if filter.Matches(doc) {
			matches = append(matches, doc)
		}
	}
	slices.SortFunc(matches, func(a, b *models.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := len(matches)
	start := min(filter.Offset(), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	out := make([]*models.Document, 0, end-start)
	for _, doc := range matches[start:end] {
		out = append(out, doc.Clone())
	}
	return out, total, nil
}

// Execute applies fn to a copy of the document and stores the copy only when
// fn succeeds. The file hash is restored before persisting; it never changes
// after creation.
func (s *InMemory) Execute(ctx context.Context, docID id.DocumentID, fn func(context.Context, *models.Document) error) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := fn(ctx, working); err != nil {
		return nil, err
	}
	working.FileHash = current.FileHash
	s.docs[docID] = working
	return working.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byHash, doc.FileHash)
	delete(s.docs, docID)
	return nil
}

// OverwriteHash replaces a stored digest without touching the signature.
// It exists for tamper simulations in tests.
func (s *InMemory) OverwriteHash(docID id.DocumentID, fileHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[docID]; ok {
		delete(s.byHash, doc.FileHash)
		doc.FileHash = fileHash
		s.byHash[fileHash] = docID
	}
}
