//go:build integration

package keypair_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docsign/internal/keys/models"
	"docsign/internal/keys/store/keypair"
	"docsign/internal/signing"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *keypair.PostgresStore
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
	s.store = keypair.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "documents", "certificates", "key_pairs"))
	s.Require().NoError(s.store.ApplyPolicy(ctx, models.PolicySingleActive))
}

func newKeyPair(orgID id.OrganizationID, createdAt time.Time) *models.KeyPair {
	return &models.KeyPair{
		ID:             id.NewKeyPairID(),
		OrganizationID: orgID,
		Name:           "org key",
		Algorithm:      signing.Algorithm,
		KeySize:        2048,
		PublicKey:      "public",
		PrivateKey:     "sealed",
		IsActive:       true,
		CreatedAt:      createdAt,
	}
}

func (s *PostgresStoreSuite) TestRotationDeactivatesPriorPairs() {
	ctx := context.Background()
	org := id.OrganizationID(uuid.New())
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := newKeyPair(org, base)
	second := newKeyPair(org, base.Add(time.Minute))
	s.Require().NoError(s.store.Create(ctx, first, true))
	s.Require().NoError(s.store.Create(ctx, second, true))

	current, err := s.store.FindCurrent(ctx, org)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)

	old, err := s.store.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.False(old.IsActive)

	all, err := s.store.ListByOrganization(ctx, org)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(second.ID, all[0].ID, "newest first")
}

func (s *PostgresStoreSuite) TestSingleActiveIndexRejectsSecondActivePair() {
	ctx := context.Background()
	org := id.OrganizationID(uuid.New())
	s.Require().NoError(s.store.Create(ctx, newKeyPair(org, time.Now()), false))
	s.ErrorIs(s.store.Create(ctx, newKeyPair(org, time.Now()), false), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestMultiKeyPolicyAllowsSeveralActivePairs() {
	ctx := context.Background()
	s.Require().NoError(s.store.ApplyPolicy(ctx, models.PolicyMultiKey))
	org := id.OrganizationID(uuid.New())
	s.Require().NoError(s.store.Create(ctx, newKeyPair(org, time.Now()), false))
	s.Require().NoError(s.store.Create(ctx, newKeyPair(org, time.Now().Add(time.Second)), false))

	all, err := s.store.ListByOrganization(ctx, org)
	s.Require().NoError(err)
	for _, kp := range all {
		s.True(kp.IsActive)
	}
}

// TestConcurrentRotationLeavesOneActivePair verifies the advisory lock
// serializes rotations for one organization.
func (s *PostgresStoreSuite) TestConcurrentRotationLeavesOneActivePair() {
	ctx := context.Background()
	org := id.OrganizationID(uuid.New())
	const goroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Create(ctx, newKeyPair(org, time.Now().Add(time.Duration(i)*time.Millisecond)), true)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	all, err := s.store.ListByOrganization(ctx, org)
	s.Require().NoError(err)
	s.Len(all, goroutines)
	active := 0
	for _, kp := range all {
		if kp.IsActive {
			active++
		}
	}
	s.Equal(1, active)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.NewKeyPairID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindCurrent(ctx, id.OrganizationID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
