package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"docsign/internal/platform/postgres"
	"docsign/internal/verification/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists verification records in PostgreSQL. The table has
// no UPDATE or DELETE path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec models.Record) error {
	info, err := json.Marshal(rec.VerifierInfo)
	if err != nil {
		return fmt.Errorf("marshal verifier info: %w", err)
	}
	var docID uuid.NullUUID
	if !rec.DocumentID.IsNil() {
		docID = uuid.NullUUID{UUID: uuid.UUID(rec.DocumentID), Valid: true}
	}
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verifications (id, document_id, method, status, is_successful, fail_reason,
			verifier_ip, verifier_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(rec.ID), docID, string(rec.Method), string(rec.Status), rec.IsSuccessful,
		sql.NullString{String: rec.FailReason, Valid: rec.FailReason != ""},
		rec.VerifierIP, info, rec.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]models.Record, int, error) {
	conn := txcontext.Conn(ctx, s.db)
	var total int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifications WHERE document_id = $1`, uuid.UUID(docID)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count verifications: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, document_id, method, status, is_successful, fail_reason, verifier_ip, verifier_info, created_at
		FROM verifications
		WHERE document_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, uuid.UUID(docID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan verification: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate verifications: %w", err)
	}
	return records, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		rec        models.Record
		recID      uuid.UUID
		docID      uuid.NullUUID
		method     string
		status     string
		failReason sql.NullString
		info       []byte
	)
	if err := row.Scan(&recID, &docID, &method, &status, &rec.IsSuccessful, &failReason,
		&rec.VerifierIP, &info, &rec.CreatedAt); err != nil {
		return models.Record{}, err
	}
	rec.ID = id.VerificationID(recID)
	if docID.Valid {
		rec.DocumentID = id.DocumentID(docID.UUID)
	}
	rec.Method = models.Method(method)
	rec.Status = models.Status(status)
	rec.FailReason = failReason.String
	if len(info) > 0 {
		if err := json.Unmarshal(info, &rec.VerifierInfo); err != nil {
			return models.Record{}, fmt.Errorf("decode verifier info: %w", err)
		}
	}
	return rec, nil
}
