package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docsign/internal/document/models"
	notifmodels "docsign/internal/notification/models"
	"docsign/internal/signing"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/requestcontext"
)

// Sign signs the document digest with the certificate's private key.
//
// Preconditions are checked in this order, first failure wins:
//   - the document exists (not_found)
//   - the caller is the issuer or an admin of the document's organization (forbidden)
//   - the certificate exists (not_found)
//   - the certificate belongs to the document's organization, is not revoked
//     and now lies inside its validity window (invalid_certificate)
//
// The whole sequence runs under the document row lock, so concurrent signs of
// one document are serialized and the last writer's signature is kept.
func (s *Service) Sign(ctx context.Context, p authz.Principal, docID id.DocumentID, certID id.CertificateID) (*models.Document, error) {
	return s.sign(ctx, p, docID, certID, audit.EventDocumentSigned)
}

func (s *Service) sign(ctx context.Context, p authz.Principal, docID id.DocumentID, certID id.CertificateID, event audit.AuditEvent) (*models.Document, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "document.sign")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", docID.String()),
		attribute.String("certificate.id", certID.String()),
	)
	if s.metrics != nil {
		defer s.metrics.ObserveSign(time.Now())
	}

	now := requestcontext.Now(ctx).UTC()
	doc, err := s.documents.Execute(ctx, docID, func(ctx context.Context, doc *models.Document) error {
		if !canMutate(p, doc) {
			return dErrors.New(dErrors.CodeForbidden, "not allowed to sign this document")
		}
		cert, privateKey, err := s.certificates.SigningCertificate(ctx, certID)
		if err != nil {
			return err
		}
		switch {
		case cert.OrganizationID != doc.OrganizationID:
			return dErrors.New(dErrors.CodeInvalidCertificate, "certificate belongs to another organization")
		case cert.IsRevoked:
			return dErrors.New(dErrors.CodeInvalidCertificate, "certificate is revoked")
		case !cert.UsableAt(now):
			return dErrors.New(dErrors.CodeInvalidCertificate, "certificate is not valid at this time")
		}
		signature, err := signing.SignDigest(privateKey, doc.FileHash)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeCrypto, "failed to sign document")
		}
		doc.ApplySignature(signature, cert.ID, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(translate(err, ""))))
		return nil, translate(err, "failed to sign document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsSigned.Inc()
	}
	s.emitAudit(ctx, event, p, doc, map[string]any{
		"certificate_id": certID.String(),
	})
	s.notify(ctx, notifmodels.TypeDocumentSigned, doc, "")
	return doc, nil
}
