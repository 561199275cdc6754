package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docsign/internal/document/models"
	"docsign/internal/platform/postgres"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
	txcontext "docsign/pkg/platform/tx"
)

// PostgresStore persists templates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const templateColumns = `id, organization_id, name, description, start_date, created_by, created_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Template) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO document_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(t.ID), uuid.UUID(t.OrganizationID), t.Name, t.Description,
		t.StartDate, uuid.UUID(t.CreatedBy), t.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM document_templates WHERE id = $1`, uuid.UUID(templateID))
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Template, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+templateColumns+` FROM document_templates WHERE organization_id = $1 ORDER BY lower(name)`,
		uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var t models.Template
	var templateID, orgID, createdBy uuid.UUID
	if err := row.Scan(&templateID, &orgID, &t.Name, &t.Description, &t.StartDate, &createdBy, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TemplateID(templateID)
	t.OrganizationID = id.OrganizationID(orgID)
	t.CreatedBy = id.UserID(createdBy)
	return &t, nil
}
