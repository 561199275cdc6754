package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docsign/internal/keys/models"
	"docsign/internal/platform/postgres"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists certificates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *txcontext.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: txcontext.NewSQLRunner(db)}
}

const certificateColumns = `id, organization_id, key_pair_id, public_key, private_key, valid_from, valid_until,
	is_revoked, revoked_at, revoked_reason, created_at`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.UUID(cert.ID), uuid.UUID(cert.OrganizationID), uuid.UUID(cert.KeyPairID),
		cert.PublicKey, cert.PrivateKey, cert.ValidFrom, cert.ValidUntil,
		cert.IsRevoked, cert.RevokedAt, nullString(cert.RevokedReason), cert.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, uuid.UUID(certID))
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return cert, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// revocation fields back in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, certID id.CertificateID, fn func(*models.Certificate) error) (*models.Certificate, error) {
	var out *models.Certificate
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := txcontext.Conn(ctx, s.db)
		row := conn.QueryRowContext(ctx,
			`SELECT `+certificateColumns+` FROM certificates WHERE id = $1 FOR UPDATE`, uuid.UUID(certID))
		cert, err := scanCertificate(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock certificate: %w", err)
		}
		if err := fn(cert); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `
			UPDATE certificates SET is_revoked = $2, revoked_at = $3, revoked_reason = $4
			WHERE id = $1
		`, uuid.UUID(cert.ID), cert.IsRevoked, cert.RevokedAt, nullString(cert.RevokedReason)); err != nil {
			return fmt.Errorf("update certificate: %w", err)
		}
		out = cert
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var cert models.Certificate
	var certID, orgID, keyPairID uuid.UUID
	var revokedAt sql.NullTime
	var revokedReason sql.NullString
	if err := row.Scan(&certID, &orgID, &keyPairID, &cert.PublicKey, &cert.PrivateKey,
		&cert.ValidFrom, &cert.ValidUntil, &cert.IsRevoked, &revokedAt, &revokedReason, &cert.CreatedAt); err != nil {
		return nil, err
	}
	cert.ID = id.CertificateID(certID)
	cert.OrganizationID = id.OrganizationID(orgID)
	cert.KeyPairID = id.KeyPairID(keyPairID)
	if revokedAt.Valid {
		t := revokedAt.Time
		cert.RevokedAt = &t
	}
	cert.RevokedReason = revokedReason.String
	return &cert, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
