package share

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/document/hasher"
	"docsign/internal/document/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLink(token string, oneTime bool, expiresAt *time.Time) *models.ShareLink {
	return &models.ShareLink{
		ID:         id.NewShareLinkID(),
		DocumentID: id.NewDocumentID(),
		CreatedBy:  id.UserID(uuid.New()),
		TokenHash:  hasher.Sum([]byte(token)),
		ExpiresAt:  expiresAt,
		IsOneTime:  oneTime,
		CreatedAt:  now,
	}
}

func TestInMemoryRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("reusable link opens repeatedly", func(t *testing.T) {
		s := NewInMemory()
		link := newLink("reusable", false, nil)
		require.NoError(t, s.Create(ctx, link))

		for range 3 {
			got, err := s.Redeem(ctx, link.TokenHash, now)
			require.NoError(t, err)
			assert.Equal(t, link.DocumentID, got.DocumentID)
		}
	})

	t.Run("one-time link opens once", func(t *testing.T) {
		s := NewInMemory()
		link := newLink("once", true, nil)
		require.NoError(t, s.Create(ctx, link))

		got, err := s.Redeem(ctx, link.TokenHash, now)
		require.NoError(t, err)
		require.NotNil(t, got.UsedAt)
		assert.Equal(t, now, *got.UsedAt)

		_, err = s.Redeem(ctx, link.TokenHash, now.Add(time.Second))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired link", func(t *testing.T) {
		s := NewInMemory()
		expires := now.Add(time.Hour)
		link := newLink("expiring", false, &expires)
		require.NoError(t, s.Create(ctx, link))

		_, err := s.Redeem(ctx, link.TokenHash, now)
		require.NoError(t, err)
		_, err = s.Redeem(ctx, link.TokenHash, expires)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := NewInMemory().Redeem(ctx, hasher.Sum([]byte("nope")), now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	link := newLink("token", false, nil)
	require.NoError(t, s.Create(ctx, link))

	t.Run("token reuse conflicts", func(t *testing.T) {
		err := s.Create(ctx, newLink("token", false, nil))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("find", func(t *testing.T) {
		got, err := s.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, link.TokenHash, got.TokenHash)
	})

	t.Run("delete revokes the token", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, link.ID))
		_, err := s.FindByID(ctx, link.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.Redeem(ctx, link.TokenHash, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, link.ID), sentinel.ErrNotFound)
	})
}
