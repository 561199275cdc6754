package keypair

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

const singleActiveIndex = "key_pairs_one_active_per_org"

// PostgresStore persists key pairs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *txcontext.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: txcontext.NewSQLRunner(db)}
}

// ApplyPolicy installs the partial unique index that backs single_active, or
// drops it under multi_key.
func (s *PostgresStore) ApplyPolicy(ctx context.Context, policy models.KeyPolicy) error {
	query := `DROP INDEX IF EXISTS ` + singleActiveIndex
	if policy == models.PolicySingleActive {
		query = `CREATE UNIQUE INDEX IF NOT EXISTS ` + singleActiveIndex +
			` ON key_pairs (organization_id) WHERE is_active`
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("apply key policy %s: %w", policy, err)
	}
	return nil
}

// Create inserts kp. Creations for one organization are serialized with a
// transaction-scoped advisory lock so deactivation sees every committed pair.
func (s *PostgresStore) Create(ctx context.Context, kp *models.KeyPair, deactivatePrior bool) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := txcontext.Conn(ctx, s.db)
		if _, err := conn.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, kp.OrganizationID.String()); err != nil {
			return fmt.Errorf("lock organization keys: %w", err)
		}
		if deactivatePrior {
			if _, err := conn.ExecContext(ctx,
				`UPDATE key_pairs SET is_active = FALSE WHERE organization_id = $1 AND is_active`,
				uuid.UUID(kp.OrganizationID)); err != nil {
				return fmt.Errorf("deactivate prior key pairs: %w", err)
			}
		}
		_, err := conn.ExecContext(ctx, `
			INSERT INTO key_pairs (id, organization_id, name, algorithm, key_size, public_key, private_key, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.UUID(kp.ID), uuid.UUID(kp.OrganizationID), kp.Name, kp.Algorithm, kp.KeySize,
			kp.PublicKey, kp.PrivateKey, kp.IsActive, kp.CreatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert key pair: %w", err)
		}
		return nil
	})
}

const keyPairColumns = `id, organization_id, name, algorithm, key_size, public_key, private_key, is_active, created_at`

func (s *PostgresStore) FindByID(ctx context.Context, keyPairID id.KeyPairID) (*models.KeyPair, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+keyPairColumns+` FROM key_pairs WHERE id = $1`, uuid.UUID(keyPairID))
	kp, err := scanKeyPair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find key pair: %w", err)
	}
	return kp, nil
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.KeyPair, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+keyPairColumns+` FROM key_pairs WHERE organization_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list key pairs: %w", err)
	}
	defer rows.Close()

	var out []*models.KeyPair
	for rows.Next() {
		kp, err := scanKeyPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key pair: %w", err)
		}
		out = append(out, kp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key pairs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindCurrent(ctx context.Context, orgID id.OrganizationID) (*models.KeyPair, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+keyPairColumns+` FROM key_pairs WHERE organization_id = $1 AND is_active
		 ORDER BY created_at DESC LIMIT 1`, uuid.UUID(orgID))
	kp, err := scanKeyPair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find current key pair: %w", err)
	}
	return kp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyPair(row rowScanner) (*models.KeyPair, error) {
	var kp models.KeyPair
	var keyID, orgID uuid.UUID
	if err := row.Scan(&keyID, &orgID, &kp.Name, &kp.Algorithm, &kp.KeySize,
		&kp.PublicKey, &kp.PrivateKey, &kp.IsActive, &kp.CreatedAt); err != nil {
		return nil, err
	}
	kp.ID = id.KeyPairID(keyID)
	kp.OrganizationID = id.OrganizationID(orgID)
	return &kp, nil
}
