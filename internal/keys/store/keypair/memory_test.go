package keypair

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docsign/internal/keys/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

type KeyPairStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	org   id.OrganizationID
	now   time.Time
}

func TestKeyPairStoreSuite(t *testing.T) {
	suite.Run(t, new(KeyPairStoreSuite))
}

func (s *KeyPairStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.org = id.OrganizationID(uuid.New())
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *KeyPairStoreSuite) newPair(offset time.Duration) *models.KeyPair {
	return &models.KeyPair{
		ID:             id.NewKeyPairID(),
		OrganizationID: s.org,
		Name:           models.DefaultKeyPairName,
		Algorithm:      "RSA",
		KeySize:        2048,
		PublicKey:      "pub",
		PrivateKey:     "priv",
		IsActive:       true,
		CreatedAt:      s.now.Add(offset),
	}
}

func (s *KeyPairStoreSuite) TestSingleActiveDeactivatesPrior() {
	first := s.newPair(0)
	second := s.newPair(time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, first, true))
	s.Require().NoError(s.store.Create(s.ctx, second, true))

	list, err := s.store.ListByOrganization(s.ctx, s.org)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.True(list[0].IsActive)
	s.False(list[1].IsActive)

	current, err := s.store.FindCurrent(s.ctx, s.org)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)
}

func (s *KeyPairStoreSuite) TestMultiKeyKeepsPriorsActive() {
	first := s.newPair(0)
	second := s.newPair(time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, first, false))
	s.Require().NoError(s.store.Create(s.ctx, second, false))

	list, err := s.store.ListByOrganization(s.ctx, s.org)
	s.Require().NoError(err)
	for _, kp := range list {
		s.True(kp.IsActive)
	}

	current, err := s.store.FindCurrent(s.ctx, s.org)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID, "newest active pair is current")
}

func (s *KeyPairStoreSuite) TestLookups() {
	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewKeyPairID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("no current pair", func() {
		_, err := s.store.FindCurrent(s.ctx, s.org)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned pair is a copy", func() {
		kp := s.newPair(0)
		s.Require().NoError(s.store.Create(s.ctx, kp, true))
		found, err := s.store.FindByID(s.ctx, kp.ID)
		s.Require().NoError(err)
		found.IsActive = false

		again, err := s.store.FindByID(s.ctx, kp.ID)
		s.Require().NoError(err)
		s.True(again.IsActive)
	})

	s.Run("duplicate id conflicts", func() {
		kp := s.newPair(0)
		s.Require().NoError(s.store.Create(s.ctx, kp, false))
		s.ErrorIs(s.store.Create(s.ctx, kp, false), sentinel.ErrConflict)
	})
}
