package share

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docsign/internal/document/models"
	"docsign/internal/platform/postgres"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists share links in PostgreSQL. Links are removed with
// their document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const shareColumns = `id, document_id, created_by, token_hash, expires_at, is_one_time, used_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, link *models.ShareLink) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO document_shares (`+shareColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(link.ID), uuid.UUID(link.DocumentID), uuid.UUID(link.CreatedBy), link.TokenHash,
		link.ExpiresAt, link.IsOneTime, link.UsedAt, link.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, shareID id.ShareLinkID) (*models.ShareLink, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM document_shares WHERE id = $1`, uuid.UUID(shareID))
	link, err := scanShare(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find share link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) Delete(ctx context.Context, shareID id.ShareLinkID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM document_shares WHERE id = $1`, uuid.UUID(shareID))
	if err != nil {
		return fmt.Errorf("delete share link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete share link: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Redeem stamps used_at in one conditional UPDATE, so two concurrent
// redemptions of a one-time link cannot both succeed.
func (s *PostgresStore) Redeem(ctx context.Context, tokenHash string, now time.Time) (*models.ShareLink, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE document_shares SET used_at = $2
		WHERE token_hash = $1
			AND (expires_at IS NULL OR expires_at > $2)
			AND (NOT is_one_time OR used_at IS NULL)
		RETURNING `+shareColumns, tokenHash, now)
	link, err := scanShare(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redeem share link: %w", err)
	}
	return link, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.ShareLink, error) {
	var link models.ShareLink
	var shareID, docID, createdBy uuid.UUID
	var expiresAt, usedAt sql.NullTime
	if err := row.Scan(&shareID, &docID, &createdBy, &link.TokenHash, &expiresAt,
		&link.IsOneTime, &usedAt, &link.CreatedAt); err != nil {
		return nil, err
	}
	link.ID = id.ShareLinkID(shareID)
	link.DocumentID = id.DocumentID(docID)
	link.CreatedBy = id.UserID(createdBy)
	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	if usedAt.Valid {
		t := usedAt.Time
		link.UsedAt = &t
	}
	return &link, nil
}
