// Package service runs the public verification decision chain and records
// every verification attempt.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docsign/internal/document/hasher"
	docmodels "docsign/internal/document/models"
	"docsign/internal/signing"
	"docsign/internal/verification/metrics"
	"docsign/internal/verification/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

type DocumentReader interface {
	FindByID(ctx context.Context, docID id.DocumentID) (*docmodels.Document, error)
	FindByHash(ctx context.Context, fileHash string) (*docmodels.Document, error)
}

// PublicKeyResolver returns a certificate's public key PEM. A missing
// certificate is reported as a not_found domain error.
type PublicKeyResolver interface {
	PublicKey(ctx context.Context, certID id.CertificateID) (string, error)
}

// RecordSink accepts verification records without ever failing the caller.
type RecordSink interface {
	Record(ctx context.Context, rec models.Record)
}

// RecordLister reads the verification history of a document.
type RecordLister interface {
	ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]models.Record, int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service evaluates the decision chain. Every evaluation, NOT_FOUND
// included, hands exactly one record to the sink. Input that never reaches
// the chain (a malformed QR payload or digest) is not recorded.
type Service struct {
	documents      DocumentReader
	keys           PublicKeyResolver
	recorder       RecordSink
	history        RecordLister
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHistory enables ListByDocument.
func WithHistory(lister RecordLister) Option {
	return func(s *Service) {
		s.history = lister
	}
}

func New(documents DocumentReader, keys PublicKeyResolver, recorder RecordSink, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, errors.New("document reader is required")
	}
	if keys == nil {
		return nil, errors.New("public key resolver is required")
	}
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	s := &Service{
		documents: documents,
		keys:      keys,
		recorder:  recorder,
		tracer:    otel.Tracer("docsign/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// VerifyByID looks the document up by its identifier. An identifier that
// cannot name any document is a recorded NOT_FOUND, like an unknown one.
func (s *Service) VerifyByID(ctx context.Context, ref string) (*models.Verdict, error) {
	lookup, err := s.lookupByID(ref)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, models.MethodID, lookup)
}

// VerifyByQR takes the document id from the last non-empty path segment of
// the scanned verification URL.
func (s *Service) VerifyByQR(ctx context.Context, qrData string) (*models.Verdict, error) {
	ref, err := referenceFromQR(qrData)
	if err != nil {
		return nil, err
	}
	lookup, err := s.lookupByID(ref)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, models.MethodQR, lookup)
}

func (s *Service) VerifyByHash(ctx context.Context, digest string) (*models.Verdict, error) {
	normalized, ok := hasher.Normalize(digest)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "hash must be 64 hexadecimal characters")
	}
	return s.verify(ctx, models.MethodHash, func(ctx context.Context) (*docmodels.Document, error) {
		return s.documents.FindByHash(ctx, normalized)
	})
}

// Status runs the same chain as VerifyByID for status-check clients.
func (s *Service) Status(ctx context.Context, ref string) (*models.Verdict, error) {
	lookup, err := s.lookupByID(ref)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, models.MethodStatus, lookup)
}

func (s *Service) lookupByID(ref string) (func(context.Context) (*docmodels.Document, error), error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document id is required")
	}
	docID, err := id.ParseDocumentID(ref)
	if err != nil {
		return func(context.Context) (*docmodels.Document, error) {
			return nil, sentinel.ErrNotFound
		}, nil
	}
	return func(ctx context.Context) (*docmodels.Document, error) {
		return s.documents.FindByID(ctx, docID)
	}, nil
}

// ListByDocument returns the verification history of a document to its
// owner, its issuer or an admin of its organization.
func (s *Service) ListByDocument(ctx context.Context, p authz.Principal, docID id.DocumentID, page, limit int) (docmodels.Page[models.Record], error) {
	if err := p.RequireAuthenticated(); err != nil {
		return docmodels.Page[models.Record]{}, err
	}
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return docmodels.Page[models.Record]{}, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return docmodels.Page[models.Record]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if p.UserID != doc.IssuerID && p.UserID != doc.OwnerID && !p.IsAdminOf(doc.OrganizationID) {
		return docmodels.Page[models.Record]{}, dErrors.New(dErrors.CodeForbidden, "not allowed to read verification history")
	}
	f := docmodels.ListFilter{Page: page, Limit: limit}
	f.Normalize()
	if s.history == nil {
		return docmodels.NewPage[models.Record](nil, 0, f.Page, f.Limit), nil
	}
	records, total, err := s.history.ListByDocument(ctx, docID, f.Limit, f.Offset())
	if err != nil {
		return docmodels.Page[models.Record]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	return docmodels.NewPage(records, total, f.Page, f.Limit), nil
}

func (s *Service) verify(ctx context.Context, method models.Method, lookup func(context.Context) (*docmodels.Document, error)) (*models.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "verification.verify", trace.WithAttributes(attribute.String("verification.method", string(method))))
	defer span.End()
	start := time.Now()
	now := requestcontext.Now(ctx).UTC()

	doc, err := lookup(ctx)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if err != nil {
		doc = nil
	}

	verdict, err := s.evaluate(ctx, doc, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("verification.status", string(verdict.Status)))
	if s.metrics != nil {
		s.metrics.ObserveVerify(start, string(method), string(verdict.Status))
	}
	s.record(ctx, method, doc, verdict, now)
	return &verdict, nil
}

// evaluate is the decision chain. The first matching rule wins:
// NOT_FOUND, REVOKED, EXPIRED, SIGNATURE_INVALID, UNSIGNED, VALID.
func (s *Service) evaluate(ctx context.Context, doc *docmodels.Document, now time.Time) (models.Verdict, error) {
	if doc == nil {
		v := models.NewVerdict(models.StatusNotFound, now)
		v.FailReason = v.Message
		return v, nil
	}

	summary := summarize(doc)
	if doc.IsRevoked {
		v := models.NewVerdict(models.StatusRevoked, now)
		v.Document = summary
		v.RevokedAt = doc.RevokedAt
		v.RevokedReason = doc.RevokedReason
		v.FailReason = "document revoked"
		if doc.RevokedReason != "" {
			v.FailReason += ": " + doc.RevokedReason
		}
		return v, nil
	}
	if doc.IsExpiredAt(now) {
		v := models.NewVerdict(models.StatusExpired, now)
		v.Document = summary
		v.FailReason = "document expired"
		return v, nil
	}
	if !doc.IsSigned() {
		v := models.NewVerdict(models.StatusUnsigned, now)
		v.Document = summary
		v.FailReason = "document not signed"
		return v, nil
	}

	reason, err := s.checkSignature(ctx, doc)
	if err != nil {
		return models.Verdict{}, err
	}
	valid := reason == ""
	status := models.StatusValid
	if !valid {
		status = models.StatusSignatureInvalid
	}
	v := models.NewVerdict(status, now)
	v.Document = summary
	v.SignatureValid = &valid
	v.FailReason = reason
	return v, nil
}

// checkSignature returns an empty reason when the signature verifies against
// the current digest. Only infrastructure failures are returned as errors.
func (s *Service) checkSignature(ctx context.Context, doc *docmodels.Document) (string, error) {
	if doc.CertificateID.IsNil() {
		return "signing certificate missing", nil
	}
	publicKey, err := s.keys.PublicKey(ctx, doc.CertificateID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound) {
			return "signing certificate missing", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve public key")
	}
	switch err := signing.VerifyDigest(publicKey, doc.FileHash, doc.Signature); {
	case err == nil:
		return "", nil
	case errors.Is(err, signing.ErrInvalidKey):
		return "certificate public key is unparsable", nil
	case errors.Is(err, signing.ErrMalformedSignature):
		return "signature encoding is malformed", nil
	default:
		return "signature does not match document content", nil
	}
}

func (s *Service) record(ctx context.Context, method models.Method, doc *docmodels.Document, v models.Verdict, now time.Time) {
	rec := models.Record{
		ID:           id.NewVerificationID(),
		Method:       method,
		Status:       v.Status,
		IsSuccessful: v.Verified,
		VerifierIP:   requestcontext.ClientIP(ctx),
		VerifierInfo: verifierInfo(ctx, now),
		CreatedAt:    now,
	}
	if !v.Verified {
		rec.FailReason = v.FailReason
	}
	var orgID id.OrganizationID
	if doc != nil {
		rec.DocumentID = doc.ID
		orgID = doc.OrganizationID
	}
	s.recorder.Record(context.WithoutCancel(ctx), rec)

	event := audit.EventDocumentVerifiedFailure
	if v.Verified {
		event = audit.EventDocumentVerifiedSuccess
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"method", string(method),
			"status", string(v.Status),
			"document_id", rec.DocumentID.String(),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:         string(event),
		OrganizationID: orgID,
		DocumentID:     rec.DocumentID,
		Details: map[string]any{
			"method":        string(method),
			"status":        string(v.Status),
			"is_successful": v.Verified,
			"fail_reason":   rec.FailReason,
		},
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}

func summarize(doc *docmodels.Document) *models.DocumentSummary {
	sum := &models.DocumentSummary{
		ID:             doc.ID.String(),
		Title:          doc.Title,
		IssuerID:       doc.IssuerID.String(),
		OrganizationID: doc.OrganizationID.String(),
		SignedAt:       doc.SignedAt,
		ExpiresAt:      doc.ExpiresAt,
	}
	if !doc.CertificateID.IsNil() {
		sum.CertificateID = doc.CertificateID.String()
	}
	return sum
}

// referenceFromQR returns the last non-empty path segment of the scanned URL.
func referenceFromQR(qrData string) (string, error) {
	raw := strings.TrimSpace(qrData)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "qrData is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid qr code url")
	}
	var segment string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segment = part
		}
	}
	if segment == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "qr code url has no document id")
	}
	return segment, nil
}
