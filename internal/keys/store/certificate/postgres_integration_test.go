//go:build integration

package certificate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docsign/internal/keys/models"
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
	keyPairs *keypair.PostgresStore
	store    *certificate.PostgresStore
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
	s.keyPairs = keypair.NewPostgres(s.postgres.DB)
	s.store = certificate.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "documents", "certificates", "key_pairs"))
}

func (s *PostgresStoreSuite) newCert() *models.Certificate {
	ctx := context.Background()
	org := id.OrganizationID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)
	kp := &models.KeyPair{
		ID:             id.NewKeyPairID(),
		OrganizationID: org,
		Name:           "org key",
		Algorithm:      signing.Algorithm,
		KeySize:        2048,
		PublicKey:      "public",
		PrivateKey:     "sealed",
		IsActive:       true,
		CreatedAt:      now,
	}
	s.Require().NoError(s.keyPairs.Create(ctx, kp, true))
	return &models.Certificate{
		ID:             id.NewCertificateID(),
		OrganizationID: org,
		KeyPairID:      kp.ID,
		PublicKey:      kp.PublicKey,
		PrivateKey:     kp.PrivateKey,
		ValidFrom:      now,
		ValidUntil:     now.AddDate(1, 0, 0),
		CreatedAt:      now,
	}
}

func (s *PostgresStoreSuite) TestCreateFind() {
	ctx := context.Background()
	cert := s.newCert()
	s.Require().NoError(s.store.Create(ctx, cert))
	s.ErrorIs(s.store.Create(ctx, cert), sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.KeyPairID, found.KeyPairID)
	s.True(cert.ValidUntil.Equal(found.ValidUntil))
	s.False(found.IsRevoked)
	s.Nil(found.RevokedAt)

	_, err = s.store.FindByID(ctx, id.NewCertificateID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecuteRevokes() {
	ctx := context.Background()
	cert := s.newCert()
	s.Require().NoError(s.store.Create(ctx, cert))

	s.Run("failed callback rolls back", func() {
		boom := errors.New("boom")
		_, err := s.store.Execute(ctx, cert.ID, func(c *models.Certificate) error {
			c.IsRevoked = true
			return boom
		})
		s.ErrorIs(err, boom)
		found, err := s.store.FindByID(ctx, cert.ID)
		s.Require().NoError(err)
		s.False(found.IsRevoked)
	})

	s.Run("revocation persists", func() {
		at := time.Now().UTC().Truncate(time.Microsecond)
		_, err := s.store.Execute(ctx, cert.ID, func(c *models.Certificate) error {
			c.IsRevoked = true
			c.RevokedAt = &at
			c.RevokedReason = "key compromise"
			return nil
		})
		s.Require().NoError(err)
		found, err := s.store.FindByID(ctx, cert.ID)
		s.Require().NoError(err)
		s.True(found.IsRevoked)
		s.Equal("key compromise", found.RevokedReason)
		s.Require().NotNil(found.RevokedAt)
		s.True(at.Equal(*found.RevokedAt))
	})

	s.Run("missing certificate", func() {
		_, err := s.store.Execute(ctx, id.NewCertificateID(), func(*models.Certificate) error { return nil })
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
