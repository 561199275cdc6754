//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docsign/internal/verification/models"
	"docsign/internal/verification/store"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verifications"))
}

func (s *PostgresStoreSuite) TestAppendAndListByDocument() {
	ctx := context.Background()
	docID := id.NewDocumentID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	valid := models.Record{
		ID:           id.NewVerificationID(),
		DocumentID:   docID,
		Method:       models.MethodQR,
		Status:       models.StatusValid,
		IsSuccessful: true,
		VerifierIP:   "203.0.113.9",
		VerifierInfo: models.VerifierInfo{UserAgent: "curl/8.0", Browser: "curl", Bot: false},
		CreatedAt:    base,
	}
	revoked := models.Record{
		ID:         id.NewVerificationID(),
		DocumentID: docID,
		Method:     models.MethodHash,
		Status:     models.StatusRevoked,
		FailReason: "document has been revoked",
		CreatedAt:  base.Add(time.Minute),
	}
	notFound := models.Record{
		ID:         id.NewVerificationID(),
		Method:     models.MethodID,
		Status:     models.StatusNotFound,
		FailReason: "document not found",
		CreatedAt:  base,
	}
	for _, rec := range []models.Record{valid, revoked, notFound} {
		s.Require().NoError(s.store.Append(ctx, rec))
	}
	s.ErrorIs(s.store.Append(ctx, valid), sentinel.ErrConflict, "records are never overwritten")

	recs, total, err := s.store.ListByDocument(ctx, docID, 10, 0)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(recs, 2)
	s.Equal(revoked.ID, recs[0].ID, "newest first")
	s.Equal("document has been revoked", recs[0].FailReason)
	s.Equal("curl/8.0", recs[1].VerifierInfo.UserAgent)
	s.Equal("curl", recs[1].VerifierInfo.Browser)
	s.Equal("203.0.113.9", recs[1].VerifierIP)

	recs, _, err = s.store.ListByDocument(ctx, docID, 1, 1)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(valid.ID, recs[0].ID)
}
