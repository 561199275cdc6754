package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docsign/internal/audit/service/mocks"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/audit/store/memory"
	"docsign/pkg/testutil"
)

type AuditServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	store     *memory.InMemoryStore
	svc       *Service
	ctx       context.Context
	orgA      id.OrganizationID
	orgB      id.OrganizationID
	issuer    id.UserID
	doc       id.DocumentID
	base      time.Time
}

func TestAuditServiceSuite(t *testing.T) {
	suite.Run(t, new(AuditServiceSuite))
}

func (s *AuditServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.store = memory.NewInMemoryStore()
	s.ctx = context.Background()
	s.orgA = id.OrganizationID(uuid.New())
	s.orgB = id.OrganizationID(uuid.New())
	s.issuer = id.UserID(uuid.New())
	s.doc = id.NewDocumentID()
	s.base = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	seed := []audit.Event{
		{Action: string(audit.EventDocumentCreated), UserID: s.issuer, OrganizationID: s.orgA, DocumentID: s.doc, Timestamp: s.base},
		{Action: string(audit.EventDocumentSigned), UserID: s.issuer, OrganizationID: s.orgA, DocumentID: s.doc, Timestamp: s.base.Add(time.Hour),
			Details: map[string]any{"certificate_id": "c-1"}},
		{Action: string(audit.EventDocumentVerifiedSuccess), OrganizationID: s.orgA, DocumentID: s.doc, Timestamp: s.base.Add(2 * time.Hour), IP: "203.0.113.1"},
		{Action: string(audit.EventDocumentCreated), UserID: id.UserID(uuid.New()), OrganizationID: s.orgB, Timestamp: s.base.Add(3 * time.Hour)},
	}
	for _, e := range seed {
		e.ID = id.NewAuditEventID()
		e.Category = audit.AuditEvent(e.Action).Category()
		s.Require().NoError(s.store.Append(s.ctx, e))
	}

	svc, err := New(s.store, WithAuditPublisher(s.publisher), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *AuditServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *AuditServiceSuite) TestNew() {
	_, err := New(nil)
	s.ErrorContains(err, "audit reader is required")
}

func (s *AuditServiceSuite) TestListScoping() {
	s.Run("system admin sees every organization", func() {
		page, err := s.svc.List(s.ctx, testutil.NewPrincipal(id.OrganizationID{}, authz.RoleSystemAdmin), Query{})
		s.Require().NoError(err)
		s.Equal(4, page.Total)
		s.Equal(string(audit.EventDocumentCreated), page.Items[0].Action, "newest first")
	})

	s.Run("organization admin is confined to their organization", func() {
		admin := testutil.NewPrincipal(s.orgA, authz.RoleOrganizationAdmin)
		page, err := s.svc.List(s.ctx, admin, Query{})
		s.Require().NoError(err)
		s.Equal(3, page.Total)
		for _, e := range page.Items {
			s.Equal(s.orgA, e.OrganizationID)
		}

		_, err = s.svc.List(s.ctx, admin, Query{OrganizationID: s.orgB})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("issuers cannot read the audit log", func() {
		_, err := s.svc.List(s.ctx, testutil.NewPrincipal(s.orgA, authz.RoleIssuer), Query{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("anonymous callers are rejected", func() {
		_, err := s.svc.List(s.ctx, authz.Principal{}, Query{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *AuditServiceSuite) TestListFilters() {
	admin := testutil.NewPrincipal(id.OrganizationID{}, authz.RoleSystemAdmin)
	from := s.base.Add(30 * time.Minute)
	to := s.base.Add(2 * time.Hour)

	tests := []struct {
		name  string
		query Query
		total int
	}{
		{"by action", Query{Action: string(audit.EventDocumentCreated)}, 2},
		{"by document", Query{DocumentID: s.doc}, 3},
		{"by user", Query{UserID: s.issuer}, 2},
		{"by inclusive date range", Query{From: &from, To: &to}, 2},
		{"paged", Query{Page: 2, Limit: 3}, 4},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			page, err := s.svc.List(s.ctx, admin, tt.query)
			s.Require().NoError(err)
			s.Equal(tt.total, page.Total)
		})
	}

	_, err := s.svc.List(s.ctx, admin, Query{From: &to, To: &from})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AuditServiceSuite) TestUserActivity() {
	self := authz.Principal{UserID: s.issuer, OrganizationID: s.orgA, Roles: []authz.Role{authz.RoleIssuer}}
	page, err := s.svc.UserActivity(s.ctx, self, s.issuer, 1, 20)
	s.Require().NoError(err)
	s.Equal(2, page.Total)

	_, err = s.svc.UserActivity(s.ctx, testutil.NewPrincipal(s.orgA, authz.RoleIssuer), s.issuer, 1, 20)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	page, err = s.svc.UserActivity(s.ctx, testutil.NewPrincipal(s.orgB, authz.RoleOrganizationAdmin), s.issuer, 1, 20)
	s.Require().NoError(err)
	s.Zero(page.Total, "admins of another organization see none of the user's events")
}

func (s *AuditServiceSuite) TestExportCSV() {
	admin := testutil.NewPrincipal(s.orgA, authz.RoleOrganizationAdmin)
	var emitted audit.Event
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		emitted = e
		return nil
	})

	var buf bytes.Buffer
	n, err := s.svc.ExportCSV(s.ctx, admin, Query{DocumentID: s.doc}, &buf)
	s.Require().NoError(err)
	s.Equal(3, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 4)
	s.Equal("ID", rows[0][0])
	s.Equal(string(audit.EventDocumentVerifiedSuccess), rows[1][3])
	s.Equal("203.0.113.1", rows[1][8])
	s.Equal(`{"certificate_id":"c-1"}`, rows[2][7])

	s.Equal(string(audit.EventAuditExported), emitted.Action)
	s.Equal(admin.UserID, emitted.UserID)
	s.Equal(s.orgA, emitted.OrganizationID)
	s.Equal(3, emitted.Details["rows"])
}

func (s *AuditServiceSuite) TestExportLimit() {
	svc, err := New(s.store, WithExportLimit(2))
	s.Require().NoError(err)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(s.ctx, testutil.NewPrincipal(id.OrganizationID{}, authz.RoleSystemAdmin), Query{}, &buf)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func TestExportSurfacesReaderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockReader(ctrl)
	reader.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, 0, errors.New("connection reset"))

	svc, err := New(reader)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = svc.ExportCSV(context.Background(), testutil.NewPrincipal(id.OrganizationID{}, authz.RoleSystemAdmin), Query{}, &buf)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Zero(t, buf.Len())
}
