package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docsign/internal/document/hasher"
	"docsign/internal/document/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

type DocumentStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	org   id.OrganizationID
	now   time.Time
}

func TestDocumentStoreSuite(t *testing.T) {
	suite.Run(t, new(DocumentStoreSuite))
}

func (s *DocumentStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.org = id.OrganizationID(uuid.New())
	s.now = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
}

func (s *DocumentStoreSuite) newDoc(content string, offset time.Duration) *models.Document {
	return &models.Document{
		ID:             id.NewDocumentID(),
		Title:          "Doc " + content,
		FileURL:        content + ".txt",
		FileHash:       hasher.Sum([]byte(content)),
		IssuerID:       id.UserID(uuid.New()),
		OrganizationID: s.org,
		Metadata:       map[string]any{"k": "v"},
		CreatedAt:      s.now.Add(offset),
		UpdatedAt:      s.now.Add(offset),
	}
}

func (s *DocumentStoreSuite) TestCreateAndLookups() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc.Title, found.Title)
	})

	s.Run("by hash", func() {
		found, err := s.store.FindByHash(s.ctx, hasher.Sum([]byte("hello")))
		s.Require().NoError(err)
		s.Equal(doc.ID, found.ID)
	})

	s.Run("duplicate hash conflicts", func() {
		dup := s.newDoc("hello", time.Second)
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewDocumentID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned documents are copies", func() {
		found, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		found.Metadata["k"] = "changed"
		again, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal("v", again.Metadata["k"])
	})

	s.Run("find by ids skips missing", func() {
		docs, err := s.store.FindByIDs(s.ctx, []id.DocumentID{doc.ID, id.NewDocumentID()})
		s.Require().NoError(err)
		s.Len(docs, 1)
	})
}

func (s *DocumentStoreSuite) TestExecute() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))

	s.Run("callback error discards changes", func() {
		_, err := s.store.Execute(s.ctx, doc.ID, func(_ context.Context, d *models.Document) error {
			d.Title = "changed"
			return errors.New("abort")
		})
		s.Error(err)
		found, _ := s.store.FindByID(s.ctx, doc.ID)
		s.Equal(doc.Title, found.Title)
	})

	s.Run("callback receives the caller's context", func() {
		type key struct{}
		ctx := context.WithValue(s.ctx, key{}, "caller")
		_, err := s.store.Execute(ctx, doc.ID, func(inner context.Context, _ *models.Document) error {
			s.Equal("caller", inner.Value(key{}))
			return nil
		})
		s.Require().NoError(err)
	})

	s.Run("hash cannot be rewritten", func() {
		updated, err := s.store.Execute(s.ctx, doc.ID, func(_ context.Context, d *models.Document) error {
			d.FileHash = hasher.Sum([]byte("other"))
			d.ApplySignature("sig", id.NewCertificateID(), s.now)
			return nil
		})
		s.Require().NoError(err)
		s.Equal(doc.FileHash, updated.FileHash)
		s.Equal("sig", updated.Signature)
		s.NotNil(updated.SignedAt)
	})
}

func (s *DocumentStoreSuite) TestListFiltersAndPagination() {
	other := id.OrganizationID(uuid.New())
	owner := id.UserID(uuid.New())
	for i, c := range []string{"alpha", "beta", "gamma"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newDoc(c, time.Duration(i)*time.Minute)))
	}
	foreign := s.newDoc("foreign", time.Hour)
	foreign.OrganizationID = other
	foreign.OwnerID = owner
	s.Require().NoError(s.store.Create(s.ctx, foreign))

	s.Run("newest first with total", func() {
		docs, total, err := s.store.List(s.ctx, models.ListFilter{OrganizationID: s.org, Page: 1, Limit: 2})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(docs, 2)
		s.Equal("Doc gamma", docs[0].Title)
	})

	s.Run("second page", func() {
		docs, _, err := s.store.List(s.ctx, models.ListFilter{OrganizationID: s.org, Page: 2, Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(docs, 1)
		s.Equal("Doc alpha", docs[0].Title)
	})

	s.Run("search", func() {
		docs, total, err := s.store.List(s.ctx, models.ListFilter{Search: "BET", Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("Doc beta", docs[0].Title)
	})

	s.Run("visibility by organization or ownership", func() {
		_, total, err := s.store.List(s.ctx, models.ListFilter{VisibleOrganizationID: s.org, Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(3, total)

		_, total, err = s.store.List(s.ctx, models.ListFilter{VisibleOrganizationID: s.org, VisibleUserID: owner, Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(4, total)
	})

	s.Run("revoked filter", func() {
		revoked := true
		_, total, err := s.store.List(s.ctx, models.ListFilter{IsRevoked: &revoked, Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Zero(total)
	})
}

func (s *DocumentStoreSuite) TestDelete() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))
	s.Require().NoError(s.store.Delete(s.ctx, doc.ID))
	s.ErrorIs(s.store.Delete(s.ctx, doc.ID), sentinel.ErrNotFound)

	_, err := s.store.FindByHash(s.ctx, doc.FileHash)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Create(s.ctx, s.newDoc("hello", 0)), "hash is free again after delete")
}
