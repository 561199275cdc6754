// Package service implements document registration, signing and lifecycle
// operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"docsign/internal/document/content"
	"docsign/internal/document/hasher"
	"docsign/internal/document/metrics"
	"docsign/internal/document/models"
	"docsign/internal/document/qrcode"
	"docsign/internal/document/store/share"
	"docsign/internal/document/store/template"
	keymodels "docsign/internal/keys/models"
	notifmodels "docsign/internal/notification/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Document, int, error)
	// Execute runs fn under the document row lock. fn receives the context
	// bound to the lock's transaction and must use it for any further reads.
	Execute(ctx context.Context, docID id.DocumentID, fn func(context.Context, *models.Document) error) (*models.Document, error)
	Delete(ctx context.Context, docID id.DocumentID) error
}

// ShareStore persists share links. Redeem returns sentinel.ErrNotFound for
// unknown, expired and used-up links.
type ShareStore interface {
	Create(ctx context.Context, link *models.ShareLink) error
	FindByID(ctx context.Context, shareID id.ShareLinkID) (*models.ShareLink, error)
	Delete(ctx context.Context, shareID id.ShareLinkID) error
	Redeem(ctx context.Context, tokenHash string, now time.Time) (*models.ShareLink, error)
}

type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Template, error)
}

// CertificateProvider hands out certificates together with their unsealed
// private keys.
type CertificateProvider interface {
	SigningCertificate(ctx context.Context, certID id.CertificateID) (*keymodels.Certificate, string, error)
}

type QRRenderer interface {
	DataURL(docID id.DocumentID) (string, error)
}

// Notifier delivers notifications asynchronously; it never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, event notifmodels.Event)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type AuditReader interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error)
}

const (
	defaultBatchConcurrency = 8
)

// Service orchestrates the document lifecycle.
type Service struct {
	documents        DocumentStore
	certificates     CertificateProvider
	shares           ShareStore
	templates        TemplateStore
	shareBaseURL     string
	source           content.Source
	qr               QRRenderer
	notifier         Notifier
	history          AuditReader
	logger           *slog.Logger
	auditPublisher   AuditPublisher
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	batchConcurrency int
	maxBatchSize     int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithAuditReader(reader AuditReader) Option {
	return func(s *Service) {
		s.history = reader
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithQRRenderer(r QRRenderer) Option {
	return func(s *Service) {
		if r != nil {
			s.qr = r
		}
	}
}

func WithShareStore(store ShareStore) Option {
	return func(s *Service) {
		if store != nil {
			s.shares = store
		}
	}
}

func WithTemplateStore(store TemplateStore) Option {
	return func(s *Service) {
		if store != nil {
			s.templates = store
		}
	}
}

// WithShareBaseURL sets the public origin share URLs are built on.
func WithShareBaseURL(base string) Option {
	return func(s *Service) {
		s.shareBaseURL = strings.TrimRight(base, "/")
	}
}

func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= models.MaxBatchSize {
			s.maxBatchSize = n
		}
	}
}

func New(documents DocumentStore, certificates CertificateProvider, source content.Source, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, errors.New("document store is required")
	}
	if certificates == nil {
		return nil, errors.New("certificate provider is required")
	}
	if source == nil {
		return nil, errors.New("content source is required")
	}
	s := &Service{
		documents:        documents,
		certificates:     certificates,
		source:           source,
		shares:           share.NewInMemory(),
		templates:        template.NewInMemory(),
		qr:               qrcode.NewRenderer("", qrcode.DefaultSize),
		tracer:           otel.Tracer("docsign/document"),
		batchConcurrency: defaultBatchConcurrency,
		maxBatchSize:     models.MaxBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create hashes the referenced content, renders the verification QR code and
// registers the document. Two documents never share a digest.
func (s *Service) Create(ctx context.Context, p authz.Principal, req models.CreateRequest) (*models.Document, error) {
	if err := p.RequireAny(authz.RoleIssuer, authz.RoleOrganizationAdmin, authz.RoleSystemAdmin); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		defer s.metrics.ObserveCreate(time.Now())
	}
	now := requestcontext.Now(ctx).UTC()

	req.Normalize()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	orgID := p.OrganizationID
	if req.OrganizationID != "" {
		requested, err := id.ParseOrganizationID(req.OrganizationID)
		if err != nil {
			return nil, err
		}
		if requested != p.OrganizationID && !p.IsSystemAdmin() {
			return nil, dErrors.New(dErrors.CodeForbidden, "cannot create documents for another organization")
		}
		orgID = requested
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "organizationId is required")
	}

	var ownerID id.UserID
	if req.OwnerID != "" {
		parsed, err := id.ParseUserID(req.OwnerID)
		if err != nil {
			return nil, err
		}
		ownerID = parsed
	}

	if err := s.checkTemplate(ctx, orgID, req.TemplateID); err != nil {
		return nil, err
	}

	digest, err := hasher.FromSource(ctx, s.source, req.FileURL)
	if err != nil {
		return nil, err
	}

	docID := id.NewDocumentID()
	qr, err := s.qr.DataURL(docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render qr code")
	}

	doc := &models.Document{
		ID:             docID,
		Title:          req.Title,
		Description:    req.Description,
		FileURL:        req.FileURL,
		FileType:       req.FileType,
		FileSize:       digest.Size,
		FileHash:       digest.Hex,
		QRCode:         qr,
		ExpiresAt:      utcPtr(req.ExpiresAt),
		IssuerID:       p.UserID,
		OwnerID:        ownerID,
		OrganizationID: orgID,
		TemplateID:     req.TemplateID,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a document with identical content already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsCreated.Inc()
	}
	s.emitAudit(ctx, audit.EventDocumentCreated, p, doc, map[string]any{
		"title":     doc.Title,
		"file_hash": doc.FileHash,
	})
	s.notify(ctx, notifmodels.TypeDocumentCreated, doc, "")
	return doc, nil
}

// Get returns the document to callers allowed to read it.
func (s *Service) Get(ctx context.Context, p authz.Principal, docID id.DocumentID) (*models.Document, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !canRead(p, doc) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to read this document")
	}
	s.emitAudit(ctx, audit.EventDocumentViewed, p, doc, nil)
	return doc, nil
}

// List returns one page of documents. Callers other than system admins only
// see documents of their organization and documents they own.
func (s *Service) List(ctx context.Context, p authz.Principal, filter models.ListFilter) (models.Page[*models.Document], error) {
	if err := p.RequireAuthenticated(); err != nil {
		return models.Page[*models.Document]{}, err
	}
	filter.Normalize()
	if !p.IsSystemAdmin() {
		filter.VisibleOrganizationID = p.OrganizationID
		filter.VisibleUserID = p.UserID
	}
	docs, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return models.Page[*models.Document]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return models.NewPage(docs, total, filter.Page, filter.Limit), nil
}

// Update edits descriptive fields. The digest and signature are never touched.
func (s *Service) Update(ctx context.Context, p authz.Principal, docID id.DocumentID, req models.UpdateRequest) (*models.Document, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	doc, err := s.documents.Execute(ctx, docID, func(ctx context.Context, doc *models.Document) error {
		if !canMutate(p, doc) {
			return dErrors.New(dErrors.CodeForbidden, "not allowed to modify this document")
		}
		if req.TemplateID != nil {
			if err := s.checkTemplate(ctx, doc.OrganizationID, strings.TrimSpace(*req.TemplateID)); err != nil {
				return err
			}
		}
		req.Apply(doc, now)
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update document")
	}
	s.emitAudit(ctx, audit.EventDocumentUpdated, p, doc, nil)
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, p authz.Principal, docID id.DocumentID) error {
	return s.delete(ctx, p, docID, audit.EventDocumentDeleted)
}

func (s *Service) delete(ctx context.Context, p authz.Principal, docID id.DocumentID, event audit.AuditEvent) error {
	if err := p.RequireAuthenticated(); err != nil {
		return err
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	if !canMutate(p, doc) {
		return dErrors.New(dErrors.CodeForbidden, "not allowed to delete this document")
	}
	if err := s.documents.Delete(ctx, docID); err != nil {
		return translate(err, "failed to delete document")
	}
	s.emitAudit(ctx, event, p, doc, map[string]any{"title": doc.Title})
	return nil
}

// Revoke marks the document revoked. Verification reports REVOKED from then on.
func (s *Service) Revoke(ctx context.Context, p authz.Principal, docID id.DocumentID, reason string) (*models.Document, error) {
	return s.revoke(ctx, p, docID, reason, audit.EventDocumentRevoked)
}

func (s *Service) revoke(ctx context.Context, p authz.Principal, docID id.DocumentID, reason string, event audit.AuditEvent) (*models.Document, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	doc, err := s.documents.Execute(ctx, docID, func(_ context.Context, doc *models.Document) error {
		if !canMutate(p, doc) {
			return dErrors.New(dErrors.CodeForbidden, "not allowed to revoke this document")
		}
		if err := doc.CanRevoke(); err != nil {
			return err
		}
		doc.ApplyRevocation(now, reason)
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to revoke document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsRevoked.Inc()
	}
	s.emitAudit(ctx, event, p, doc, map[string]any{"reason": reason})
	s.notify(ctx, notifmodels.TypeDocumentRevoked, doc, reason)
	return doc, nil
}

// History returns the audit trail of a document, newest first.
func (s *Service) History(ctx context.Context, p authz.Principal, docID id.DocumentID, page, limit int) (models.Page[audit.Event], error) {
	if err := p.RequireAuthenticated(); err != nil {
		return models.Page[audit.Event]{}, err
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return models.Page[audit.Event]{}, err
	}
	if !canRead(p, doc) {
		return models.Page[audit.Event]{}, dErrors.New(dErrors.CodeForbidden, "not allowed to read this document")
	}
	f := models.ListFilter{Page: page, Limit: limit}
	f.Normalize()
	if s.history == nil {
		return models.NewPage[audit.Event](nil, 0, f.Page, f.Limit), nil
	}
	events, total, err := s.history.List(ctx, audit.Filter{DocumentID: docID, Limit: f.Limit, Offset: f.Offset()})
	if err != nil {
		return models.Page[audit.Event]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document history")
	}
	return models.NewPage(events, total, f.Page, f.Limit), nil
}

func (s *Service) load(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return nil, translate(err, "failed to load document")
	}
	return doc, nil
}

// translate maps store sentinels to domain errors and passes domain errors
// raised inside Execute callbacks through unchanged.
func translate(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func canRead(p authz.Principal, doc *models.Document) bool {
	if p.IsAnonymous() {
		return false
	}
	return p.UserID == doc.IssuerID || p.UserID == doc.OwnerID || p.IsAdminOf(doc.OrganizationID)
}

func canMutate(p authz.Principal, doc *models.Document) bool {
	if p.IsAnonymous() {
		return false
	}
	return p.UserID == doc.IssuerID || p.IsAdminOf(doc.OrganizationID)
}

func (s *Service) emitAudit(ctx context.Context, event audit.AuditEvent, p authz.Principal, doc *models.Document, details map[string]any) {
	s.publishAudit(ctx, event, p, doc.OrganizationID, doc.ID, details)
}

func (s *Service) publishAudit(ctx context.Context, event audit.AuditEvent, p authz.Principal, orgID id.OrganizationID, docID id.DocumentID, details map[string]any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"user_id", p.UserID.String(),
			"organization_id", orgID.String(),
			"document_id", docID.String(),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:         string(event),
		UserID:         p.UserID,
		OrganizationID: orgID,
		DocumentID:     docID,
		Details:        details,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}

func (s *Service) notify(ctx context.Context, typ notifmodels.Type, doc *models.Document, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notifmodels.Event{
		UserID:        doc.Recipient(),
		Type:          typ,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Reason:        reason,
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
