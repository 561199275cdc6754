package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "docsign/pkg/domain"
	audit "docsign/pkg/platform/audit"
	txcontext "docsign/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table and writes every
// event to the outbox in the same transaction. The outbox relay publishes
// outbox rows to Kafka for downstream consumers.
type Store struct {
	db *sql.DB
	tx *txcontext.SQLRunner
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db, tx: txcontext.NewSQLRunner(db)}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID             string         `json:"id"`
	Category       string         `json:"category"`
	Timestamp      string         `json:"timestamp"`
	Action         string         `json:"action"`
	UserID         string         `json:"user_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	DocumentID     string         `json:"document_id,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	IP             string         `json:"ip,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}

// Append writes the event row and its outbox entry atomically.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == (id.AuditEventID{}) {
		event.ID = id.NewAuditEventID()
	}
	category := audit.AuditEvent(event.Action).Category()

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	payload := outboxPayload{
		ID:        event.ID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Details:   event.Details,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		RequestID: event.RequestID,
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}
	if !event.OrganizationID.IsNil() {
		payload.OrganizationID = event.OrganizationID.String()
	}
	if !event.DocumentID.IsNil() {
		payload.DocumentID = event.DocumentID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType, aggregateID := "audit", event.ID.String()
	if !event.DocumentID.IsNil() {
		aggregateType, aggregateID = "document", event.DocumentID.String()
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := txcontext.Conn(ctx, s.db)
		_, err := conn.ExecContext(ctx, `
			INSERT INTO audit_events (
				id, category, timestamp, action, user_id, organization_id,
				document_id, details, ip_address, user_agent, request_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			uuid.UUID(event.ID),
			string(category),
			event.Timestamp,
			event.Action,
			nullableUUID(uuid.UUID(event.UserID)),
			nullableUUID(uuid.UUID(event.OrganizationID)),
			nullableUUID(uuid.UUID(event.DocumentID)),
			details,
			event.IP,
			event.UserAgent,
			event.RequestID,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.New(),
			aggregateType,
			aggregateID,
			event.Action,
			payloadBytes,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

// List returns matching events, most recent first, and the total match count.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.UserID.IsNil() {
		add("user_id = $%d", uuid.UUID(filter.UserID))
	}
	if !filter.DocumentID.IsNil() {
		add("document_id = $%d", uuid.UUID(filter.DocumentID))
	}
	if !filter.OrganizationID.IsNil() {
		add("organization_id = $%d", uuid.UUID(filter.OrganizationID))
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.From != nil {
		add("timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("timestamp <= $%d", *filter.To)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `
		SELECT id, category, timestamp, action, user_id, organization_id,
			   document_id, details, ip_address, user_agent, request_id
		FROM audit_events ` + clause + `
		ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			eventID    uuid.UUID
			category   string
			userID     *uuid.UUID
			orgID      *uuid.UUID
			documentID *uuid.UUID
			details    []byte
		)
		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&event.Action,
			&userID,
			&orgID,
			&documentID,
			&details,
			&event.IP,
			&event.UserAgent,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = id.AuditEventID(eventID)
		event.Category = audit.EventCategory(category)
		if userID != nil {
			event.UserID = id.UserID(*userID)
		}
		if orgID != nil {
			event.OrganizationID = id.OrganizationID(*orgID)
		}
		if documentID != nil {
			event.DocumentID = id.DocumentID(*documentID)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// -----------------------------------------------------------------------------
// Outbox access for the relay worker
// -----------------------------------------------------------------------------

// FetchUnpublished returns up to limit unpublished entries in creation order.
// Rows are locked with SKIP LOCKED so concurrent relays never double-publish
// within the surrounding transaction.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps published_at on the given entries.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, u := range ids {
		raw[i] = u.String()
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// RunInTx exposes the store's transaction runner to the relay.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, fn)
}
