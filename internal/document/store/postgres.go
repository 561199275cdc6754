package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docsign/internal/document/models"
	"docsign/internal/platform/postgres"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists documents in PostgreSQL. file_hash carries a unique
// constraint; Execute serializes writers with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
	tx *txcontext.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: txcontext.NewSQLRunner(db)}
}

const documentColumns = `id, title, description, file_url, file_type, file_size, file_hash, qr_code,
	signature, certificate_id, signed_at, is_revoked, revoked_at, revoked_reason, expires_at,
	issuer_id, owner_id, organization_id, template_id, metadata, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, uuid.UUID(doc.ID), doc.Title, doc.Description, doc.FileURL, doc.FileType, doc.FileSize, doc.FileHash, doc.QRCode,
		nullString(doc.Signature), nullUUID(uuid.UUID(doc.CertificateID)), doc.SignedAt,
		doc.IsRevoked, doc.RevokedAt, nullString(doc.RevokedReason), doc.ExpiresAt,
		uuid.UUID(doc.IssuerID), nullUUID(uuid.UUID(doc.OwnerID)), uuid.UUID(doc.OrganizationID),
		nullString(doc.TemplateID), metadata, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return s.findOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, uuid.UUID(docID))
}

func (s *PostgresStore) FindByHash(ctx context.Context, fileHash string) (*models.Document, error) {
	return s.findOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_hash = $1`, fileHash)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Document, error) {
	doc, err := scanDocument(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// FindByIDs returns the documents that exist; missing ids are skipped.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, docID := range ids {
		raw[i] = docID.String()
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return collectDocuments(rows)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Document, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.OwnerID.IsNil() {
		where = append(where, "owner_id = "+arg(uuid.UUID(filter.OwnerID)))
	}
	if !filter.IssuerID.IsNil() {
		where = append(where, "issuer_id = "+arg(uuid.UUID(filter.IssuerID)))
	}
	if !filter.OrganizationID.IsNil() {
		where = append(where, "organization_id = "+arg(uuid.UUID(filter.OrganizationID)))
	}
	if filter.IsRevoked != nil {
		where = append(where, "is_revoked = "+arg(*filter.IsRevoked))
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(filter.Search) + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	switch {
	case !filter.VisibleOrganizationID.IsNil() && !filter.VisibleUserID.IsNil():
		where = append(where, "(organization_id = "+arg(uuid.UUID(filter.VisibleOrganizationID))+
			" OR owner_id = "+arg(uuid.UUID(filter.VisibleUserID))+")")
	case !filter.VisibleOrganizationID.IsNil():
		where = append(where, "organization_id = "+arg(uuid.UUID(filter.VisibleOrganizationID)))
	case !filter.VisibleUserID.IsNil():
		where = append(where, "owner_id = "+arg(uuid.UUID(filter.VisibleUserID)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	conn := txcontext.Conn(ctx, s.db)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + clause + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset())
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Execute locks the row, applies fn and writes back every mutable column.
// file_hash is not part of the update. fn gets the transaction's context;
// reads made with it reuse the locked connection.
func (s *PostgresStore) Execute(ctx context.Context, docID id.DocumentID, fn func(context.Context, *models.Document) error) (*models.Document, error) {
	var out *models.Document
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := txcontext.Conn(ctx, s.db)
		doc, err := scanDocument(conn.QueryRowContext(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, uuid.UUID(docID)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock document: %w", err)
		}
		fileHash := doc.FileHash
		if err := fn(ctx, doc); err != nil {
			return err
		}
		doc.FileHash = fileHash

		metadata, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `
			UPDATE documents SET
				title = $2, description = $3, signature = $4, certificate_id = $5, signed_at = $6,
				is_revoked = $7, revoked_at = $8, revoked_reason = $9, expires_at = $10,
				template_id = $11, metadata = $12, updated_at = $13
			WHERE id = $1
		`, uuid.UUID(doc.ID), doc.Title, doc.Description,
			nullString(doc.Signature), nullUUID(uuid.UUID(doc.CertificateID)), doc.SignedAt,
			doc.IsRevoked, doc.RevokedAt, nullString(doc.RevokedReason), doc.ExpiresAt,
			nullString(doc.TemplateID), metadata, doc.UpdatedAt); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, docID id.DocumentID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, uuid.UUID(docID))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc                            models.Document
		docID, issuerID, orgID         uuid.UUID
		certID, ownerID                uuid.NullUUID
		signature, reason, templateID  sql.NullString
		signedAt, revokedAt, expiresAt sql.NullTime
		metadata                       []byte
	)
	if err := row.Scan(&docID, &doc.Title, &doc.Description, &doc.FileURL, &doc.FileType, &doc.FileSize,
		&doc.FileHash, &doc.QRCode, &signature, &certID, &signedAt, &doc.IsRevoked, &revokedAt, &reason,
		&expiresAt, &issuerID, &ownerID, &orgID, &templateID, &metadata, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.ID = id.DocumentID(docID)
	doc.IssuerID = id.UserID(issuerID)
	doc.OrganizationID = id.OrganizationID(orgID)
	if certID.Valid {
		doc.CertificateID = id.CertificateID(certID.UUID)
	}
	if ownerID.Valid {
		doc.OwnerID = id.UserID(ownerID.UUID)
	}
	doc.Signature = signature.String
	doc.RevokedReason = reason.String
	doc.TemplateID = templateID.String
	doc.SignedAt = timePtr(signedAt)
	doc.RevokedAt = timePtr(revokedAt)
	doc.ExpiresAt = timePtr(expiresAt)
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal document metadata: %w", err)
	}
	return b, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
