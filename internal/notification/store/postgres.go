package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docsign/internal/notification/models"
	"docsign/internal/platform/postgres"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists notifications in the notifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notificationColumns = `id, user_id, document_id, title, message, type, is_read, read_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(n.ID), uuid.UUID(n.UserID), nullUUID(uuid.UUID(n.DocumentID)), n.Title, n.Message,
		string(n.Type), n.IsRead, n.ReadAt, n.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Notification, int, error) {
	where := `user_id = $1`
	if filter.UnreadOnly {
		where += ` AND is_read = false`
	}
	conn := txcontext.Conn(ctx, s.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where,
		uuid.UUID(filter.UserID)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + where +
		` ORDER BY created_at DESC, id OFFSET $2`
	args := []any{uuid.UUID(filter.UserID), filter.Offset}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, total, nil
}

// MarkRead keeps the first read_at when the row is already read.
func (s *PostgresStore) MarkRead(ctx context.Context, notifID id.NotificationID, userID id.UserID, now time.Time) (*models.Notification, error) {
	n, err := scanNotification(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE notifications
		SET is_read = true, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		uuid.UUID(notifID), uuid.UUID(userID), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n             models.Notification
		notifID, user uuid.UUID
		docID         uuid.NullUUID
		typ           string
		readAt        sql.NullTime
	)
	if err := row.Scan(&notifID, &user, &docID, &n.Title, &n.Message, &typ, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = id.NotificationID(notifID)
	n.UserID = id.UserID(user)
	if docID.Valid {
		n.DocumentID = id.DocumentID(docID.UUID)
	}
	n.Type = models.Type(typ)
	if readAt.Valid {
		at := readAt.Time
		n.ReadAt = &at
	}
	return &n, nil
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
