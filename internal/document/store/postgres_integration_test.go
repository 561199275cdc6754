//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"docsign/internal/document/hasher"
	"docsign/internal/document/models"
	"docsign/internal/document/store"
	keymodels "docsign/internal/keys/models"
	"docsign/internal/keys/store/certificate"
	"docsign/internal/keys/store/keypair"
	"docsign/internal/signing"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	org      id.OrganizationID
	now      time.Time
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
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "documents", "certificates", "key_pairs"))
	s.org = id.OrganizationID(uuid.New())
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newDoc(content string, offset time.Duration) *models.Document {
	return &models.Document{
		ID:             id.NewDocumentID(),
		Title:          "Doc " + content,
		FileURL:        content + ".txt",
		FileType:       "text/plain",
		FileSize:       int64(len(content)),
		FileHash:       hasher.Sum([]byte(content)),
		QRCode:         "data:image/png;base64,AA==",
		IssuerID:       id.UserID(uuid.New()),
		OrganizationID: s.org,
		Metadata:       map[string]any{"k": "v"},
		CreatedAt:      s.now.Add(offset),
		UpdatedAt:      s.now.Add(offset),
	}
}

// certificate inserts the key pair and certificate a signature refers to.
func (s *PostgresStoreSuite) certificate() id.CertificateID {
	kp := &keymodels.KeyPair{
		ID: id.NewKeyPairID(), OrganizationID: s.org, Name: "k", Algorithm: signing.Algorithm,
		KeySize: 2048, PublicKey: "pub", PrivateKey: "priv", IsActive: true, CreatedAt: s.now,
	}
	s.Require().NoError(keypair.NewPostgres(s.postgres.DB).Create(s.ctx, kp, true))
	cert := &keymodels.Certificate{
		ID: id.NewCertificateID(), OrganizationID: s.org, KeyPairID: kp.ID, PublicKey: "pub", PrivateKey: "priv",
		ValidFrom: s.now, ValidUntil: s.now.AddDate(1, 0, 0), CreatedAt: s.now,
	}
	s.Require().NoError(certificate.NewPostgres(s.postgres.DB).Create(s.ctx, cert))
	return cert.ID
}

func (s *PostgresStoreSuite) TestCreateAndLookups() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))

	found, err := s.store.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Title, found.Title)
	s.Equal("v", found.Metadata["k"])
	s.False(found.IsSigned())
	s.True(found.OwnerID.IsNil())

	byHash, err := s.store.FindByHash(s.ctx, doc.FileHash)
	s.Require().NoError(err)
	s.Equal(doc.ID, byHash.ID)

	_, err = s.store.FindByHash(s.ctx, hasher.Sum([]byte("missing")))
	s.ErrorIs(err, sentinel.ErrNotFound)

	docs, err := s.store.FindByIDs(s.ctx, []id.DocumentID{doc.ID, id.NewDocumentID()})
	s.Require().NoError(err)
	s.Len(docs, 1)
}

// TestConcurrentDuplicateHash verifies the digest uniqueness constraint
// admits exactly one of many racing creations.
func (s *PostgresStoreSuite) TestConcurrentDuplicateHash() {
	const goroutines = 20
	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, s.newDoc("same content", 0))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestExecuteSignsAndRevokes() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))
	certID := s.certificate()

	_, err := s.store.Execute(s.ctx, doc.ID, func(_ context.Context, d *models.Document) error {
		d.Title = "discarded"
		return errors.New("abort")
	})
	s.Error(err)

	signed, err := s.store.Execute(s.ctx, doc.ID, func(_ context.Context, d *models.Document) error {
		d.FileHash = hasher.Sum([]byte("rewritten"))
		d.ApplySignature("c2ln", certID, s.now)
		return nil
	})
	s.Require().NoError(err)
	s.Equal("c2ln", signed.Signature)

	found, err := s.store.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Title, found.Title)
	s.Equal(doc.FileHash, found.FileHash, "the digest is never rewritten")
	s.Equal(certID, found.CertificateID)
	s.Require().NotNil(found.SignedAt)

	_, err = s.store.Execute(s.ctx, doc.ID, func(_ context.Context, d *models.Document) error {
		at := s.now.Add(time.Hour)
		d.IsRevoked = true
		d.RevokedAt = &at
		d.RevokedReason = "superseded"
		return nil
	})
	s.Require().NoError(err)
	found, err = s.store.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.True(found.IsRevoked)
	s.Equal("superseded", found.RevokedReason)

	_, err = s.store.Execute(s.ctx, id.NewDocumentID(), func(context.Context, *models.Document) error { return nil })
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestExecuteReadsThroughLockedConnection runs more concurrent locked
// sign-style callbacks than the pool has connections. Each callback reads the
// certificate with the context it is handed, which must reuse the row lock's
// connection rather than wait for a free one.
func (s *PostgresStoreSuite) TestExecuteReadsThroughLockedConnection() {
	db, err := sql.Open("pgx", s.postgres.DSN)
	s.Require().NoError(err)
	defer db.Close()
	db.SetMaxOpenConns(2)

	docs := store.NewPostgres(db)
	certs := certificate.NewPostgres(db)
	certID := s.certificate()

	const signers = 6
	ids := make([]id.DocumentID, signers)
	for i := range ids {
		doc := s.newDoc(fmt.Sprintf("pooled %d", i), 0)
		s.Require().NoError(docs.Create(s.ctx, doc))
		ids[i] = doc.ID
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, docID := range ids {
		g.Go(func() error {
			_, err := docs.Execute(gctx, docID, func(ctx context.Context, d *models.Document) error {
				cert, err := certs.FindByID(ctx, certID)
				if err != nil {
					return err
				}
				d.ApplySignature("c2ln", cert.ID, s.now)
				return nil
			})
			return err
		})
	}
	s.Require().NoError(g.Wait())

	for _, docID := range ids {
		found, err := docs.FindByID(s.ctx, docID)
		s.Require().NoError(err)
		s.Equal(certID, found.CertificateID)
	}
}

func (s *PostgresStoreSuite) TestListFiltersAndPagination() {
	owner := id.UserID(uuid.New())
	for i, c := range []string{"alpha", "beta", "gamma"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newDoc(c, time.Duration(i)*time.Minute)))
	}
	foreign := s.newDoc("foreign 100%", time.Hour)
	foreign.OrganizationID = id.OrganizationID(uuid.New())
	foreign.OwnerID = owner
	s.Require().NoError(s.store.Create(s.ctx, foreign))

	docs, total, err := s.store.List(s.ctx, models.ListFilter{OrganizationID: s.org, Page: 2, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(docs, 1)
	s.Equal("Doc alpha", docs[0].Title)

	_, total, err = s.store.List(s.ctx, models.ListFilter{Search: "BET", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)

	_, total, err = s.store.List(s.ctx, models.ListFilter{Search: "100%", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total, "LIKE wildcards in the search term match literally")

	_, total, err = s.store.List(s.ctx, models.ListFilter{VisibleOrganizationID: s.org, VisibleUserID: owner, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(4, total)
}

func (s *PostgresStoreSuite) TestDelete() {
	doc := s.newDoc("hello", 0)
	s.Require().NoError(s.store.Create(s.ctx, doc))
	s.Require().NoError(s.store.Delete(s.ctx, doc.ID))
	s.ErrorIs(s.store.Delete(s.ctx, doc.ID), sentinel.ErrNotFound)
	s.NoError(s.store.Create(s.ctx, s.newDoc("hello", 0)), "hash is free again after delete")
}
