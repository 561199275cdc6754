// Package service answers audit log queries and exports them as CSV.
package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	docmodels "docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
)

// DefaultExportLimit caps the rows written by a single export.
const DefaultExportLimit = 10000

type Reader interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error)
}

type Publisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Query selects audit events. Zero-valued fields are ignored.
type Query struct {
	UserID         id.UserID
	DocumentID     id.DocumentID
	OrganizationID id.OrganizationID
	Action         string
	From           *time.Time
	To             *time.Time
	Page           int
	Limit          int
}

func (q Query) validate() error {
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return dErrors.New(dErrors.CodeValidation, "endDate must not be before startDate")
	}
	return nil
}

// Service reads the audit log. System admins see every event; organization
// admins see the events of their own organization only.
type Service struct {
	reader      Reader
	publisher   Publisher
	logger      *slog.Logger
	exportLimit int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher records every export as an AUDIT_EXPORTED event.
func WithAuditPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithExportLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.exportLimit = n
		}
	}
}

func New(reader Reader, opts ...Option) (*Service, error) {
	if reader == nil {
		return nil, errors.New("audit reader is required")
	}
	s := &Service{reader: reader, logger: slog.Default(), exportLimit: DefaultExportLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) List(ctx context.Context, p authz.Principal, q Query) (docmodels.Page[audit.Event], error) {
	filter, err := s.scope(p, q)
	if err != nil {
		return docmodels.Page[audit.Event]{}, err
	}
	return s.page(ctx, filter, q.Page, q.Limit)
}

// UserActivity lists the events a user caused. Users may read their own
// activity; admins may read anyone's within their scope.
func (s *Service) UserActivity(ctx context.Context, p authz.Principal, userID id.UserID, page, limit int) (docmodels.Page[audit.Event], error) {
	if err := p.RequireAuthenticated(); err != nil {
		return docmodels.Page[audit.Event]{}, err
	}
	filter := audit.Filter{UserID: userID}
	if p.UserID != userID {
		scoped, err := s.scope(p, Query{UserID: userID})
		if err != nil {
			return docmodels.Page[audit.Event]{}, err
		}
		filter = scoped
	}
	return s.page(ctx, filter, page, limit)
}

// ExportCSV writes every matching event, newest first, up to the export
// limit. It returns the number of rows written.
func (s *Service) ExportCSV(ctx context.Context, p authz.Principal, q Query, w io.Writer) (int, error) {
	filter, err := s.scope(p, q)
	if err != nil {
		return 0, err
	}
	filter.Limit = s.exportLimit
	events, _, err := s.reader.List(ctx, filter)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit events")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Timestamp", "Category", "Action", "UserID", "OrganizationID", "DocumentID", "Details", "IPAddress", "UserAgent", "RequestID"}); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeIO, "failed to write export")
	}
	for _, e := range events {
		row, err := csvRow(e)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit event")
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeIO, "failed to write export")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeIO, "failed to write export")
	}

	s.logger.InfoContext(ctx, string(audit.EventAuditExported),
		"event", string(audit.EventAuditExported),
		"log_type", "audit",
		"user_id", p.UserID.String(),
		"rows", len(events),
	)
	if s.publisher != nil {
		if err := s.publisher.Emit(ctx, audit.Event{
			Action:         string(audit.EventAuditExported),
			UserID:         p.UserID,
			OrganizationID: filter.OrganizationID,
			Details:        map[string]any{"rows": len(events), "action_filter": q.Action},
		}); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "event", string(audit.EventAuditExported), "error", err)
		}
	}
	return len(events), nil
}

// scope turns q into a store filter restricted to what p may read.
func (s *Service) scope(p authz.Principal, q Query) (audit.Filter, error) {
	if err := p.RequireAny(authz.RoleSystemAdmin, authz.RoleOrganizationAdmin); err != nil {
		return audit.Filter{}, err
	}
	if err := q.validate(); err != nil {
		return audit.Filter{}, err
	}
	filter := audit.Filter{
		UserID:         q.UserID,
		DocumentID:     q.DocumentID,
		OrganizationID: q.OrganizationID,
		Action:         q.Action,
		From:           q.From,
		To:             q.To,
	}
	if p.IsSystemAdmin() {
		return filter, nil
	}
	if !filter.OrganizationID.IsNil() && filter.OrganizationID != p.OrganizationID {
		return audit.Filter{}, dErrors.New(dErrors.CodeForbidden, "cannot read audit logs of another organization")
	}
	filter.OrganizationID = p.OrganizationID
	return filter, nil
}

func (s *Service) page(ctx context.Context, filter audit.Filter, page, limit int) (docmodels.Page[audit.Event], error) {
	paging := docmodels.ListFilter{Page: page, Limit: limit}
	paging.Normalize()
	filter.Limit = paging.Limit
	filter.Offset = paging.Offset()
	events, total, err := s.reader.List(ctx, filter)
	if err != nil {
		return docmodels.Page[audit.Event]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return docmodels.NewPage(events, total, paging.Page, paging.Limit), nil
}

func csvRow(e audit.Event) ([]string, error) {
	v := e.View()
	details := ""
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal details: %w", err)
		}
		details = string(raw)
	}
	return []string{
		v.ID,
		v.Timestamp.UTC().Format(time.RFC3339Nano),
		string(v.Category),
		v.Action,
		v.UserID,
		v.OrganizationID,
		v.DocumentID,
		details,
		v.IP,
		v.UserAgent,
		v.RequestID,
	}, nil
}

// ExportFilename names an export taken at t.
func ExportFilename(t time.Time) string {
	return "audit_logs_" + strconv.FormatInt(t.UTC().Unix(), 10) + ".csv"
}
