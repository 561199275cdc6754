// Package service manages organization key pairs and signing certificates.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"docsign/internal/keys/metrics"
	"docsign/internal/keys/models"
	"docsign/internal/keys/sealer"
	"docsign/internal/signing"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

type KeyPairStore interface {
	Create(ctx context.Context, kp *models.KeyPair, deactivatePrior bool) error
	FindByID(ctx context.Context, keyPairID id.KeyPairID) (*models.KeyPair, error)
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.KeyPair, error)
	FindCurrent(ctx context.Context, orgID id.OrganizationID) (*models.KeyPair, error)
}

type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	Execute(ctx context.Context, certID id.CertificateID, fn func(*models.Certificate) error) (*models.Certificate, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// PublicKeyInvalidator drops cached public keys when a certificate changes.
type PublicKeyInvalidator interface {
	Invalidate(ctx context.Context, certID id.CertificateID) error
}

// KeyGenerator produces RSA key material of the given modulus size.
type KeyGenerator func(bits int) (signing.KeyMaterial, error)

const defaultConcurrency = 2

// Service owns key generation, certificate issuance and private key access.
type Service struct {
	keyPairs       KeyPairStore
	certificates   CertificateStore
	sealer         sealer.Sealer
	policy         models.KeyPolicy
	keySize        int
	sem            *semaphore.Weighted
	generate       KeyGenerator
	invalidator    PublicKeyInvalidator
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPolicy(policy models.KeyPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithKeySize(bits int) Option {
	return func(s *Service) {
		if bits > 0 {
			s.keySize = bits
		}
	}
}

// WithConcurrency bounds how many key generations run at once.
func WithConcurrency(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(n)
		}
	}
}

func WithSealer(sl sealer.Sealer) Option {
	return func(s *Service) {
		if sl != nil {
			s.sealer = sl
		}
	}
}

func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.generate = gen
		}
	}
}

func WithPublicKeyInvalidator(inv PublicKeyInvalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

func New(keyPairs KeyPairStore, certificates CertificateStore, opts ...Option) (*Service, error) {
	if keyPairs == nil {
		return nil, errors.New("key pair store is required")
	}
	if certificates == nil {
		return nil, errors.New("certificate store is required")
	}
	s := &Service{
		keyPairs:     keyPairs,
		certificates: certificates,
		sealer:       sealer.Noop{},
		policy:       models.PolicySingleActive,
		keySize:      signing.DefaultKeySize,
		sem:          semaphore.NewWeighted(defaultConcurrency),
		generate:     signing.GenerateRSA,
		tracer:       otel.Tracer("docsign/keys"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateKeyPair creates a new RSA pair for the organization and applies the
// key policy to any prior pairs.
func (s *Service) GenerateKeyPair(ctx context.Context, p authz.Principal, orgID id.OrganizationID) (*models.KeyPair, error) {
	if err := requireOrgAdmin(p, orgID); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "keys.GenerateKeyPair",
		trace.WithAttributes(attribute.String("organization.id", orgID.String()), attribute.Int("key.size", s.keySize)))
	defer span.End()

	material, err := s.generateBounded(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "key generation failed")
		return nil, err
	}

	keyPairID := id.NewKeyPairID()
	sealed, err := s.sealer.Seal(material.PrivateKeyPEM, sealBinding(orgID, keyPairID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCrypto, "failed to seal private key")
	}

	kp := &models.KeyPair{
		ID:             keyPairID,
		OrganizationID: orgID,
		Name:           models.DefaultKeyPairName,
		Algorithm:      signing.Algorithm,
		KeySize:        material.Bits,
		PublicKey:      material.PublicKeyPEM,
		PrivateKey:     sealed,
		IsActive:       true,
		CreatedAt:      requestcontext.Now(ctx).UTC(),
	}
	if err := s.keyPairs.Create(ctx, kp, s.policy == models.PolicySingleActive); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent key generation for organization")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store key pair")
	}

	if s.metrics != nil {
		s.metrics.KeyPairsGenerated.Inc()
	}
	s.emitAudit(ctx, audit.EventKeyPairGenerated, p, orgID, map[string]any{
		"key_pair_id": kp.ID.String(),
		"key_size":    kp.KeySize,
		"policy":      string(s.policy),
	})
	return kp, nil
}

// generateBounded waits for a semaphore slot without outliving ctx.
func (s *Service) generateBounded(ctx context.Context) (signing.KeyMaterial, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveKeygen(start)
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return signing.KeyMaterial{}, dErrors.Wrap(err, dErrors.CodeTimeout, "key generation cancelled while waiting")
	}
	defer s.sem.Release(1)
	if s.metrics != nil {
		s.metrics.KeygenInFlight.Inc()
		defer s.metrics.KeygenInFlight.Dec()
	}

	material, err := s.generate(s.keySize)
	if err != nil {
		return signing.KeyMaterial{}, dErrors.Wrap(err, dErrors.CodeCrypto, "failed to generate key pair")
	}
	return material, nil
}

func (s *Service) ListKeyPairs(ctx context.Context, p authz.Principal, orgID id.OrganizationID) ([]*models.KeyPair, error) {
	if err := requireOrgAdmin(p, orgID); err != nil {
		return nil, err
	}
	pairs, err := s.keyPairs.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list key pairs")
	}
	return pairs, nil
}

// IssueCertificate copies an active organization key pair into a certificate
// with the requested validity window. An empty key pair id selects the
// organization's current pair.
func (s *Service) IssueCertificate(ctx context.Context, p authz.Principal, orgID id.OrganizationID, req models.IssueCertificateRequest) (*models.Certificate, error) {
	if err := requireOrgAdmin(p, orgID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()

	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	if req.ValidUntil == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "validUntil is required")
	}
	validUntil := req.ValidUntil.UTC()
	if !validFrom.Before(validUntil) {
		return nil, dErrors.New(dErrors.CodeValidation, "validFrom must be before validUntil")
	}

	kp, err := s.resolveKeyPair(ctx, orgID, req.KeyPairID)
	if err != nil {
		return nil, err
	}

	cert := &models.Certificate{
		ID:             id.NewCertificateID(),
		OrganizationID: orgID,
		KeyPairID:      kp.ID,
		PublicKey:      kp.PublicKey,
		PrivateKey:     kp.PrivateKey,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		CreatedAt:      now,
	}
	if err := s.certificates.Create(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesIssued.Inc()
	}
	s.emitAudit(ctx, audit.EventCertificateIssued, p, orgID, map[string]any{
		"certificate_id": cert.ID.String(),
		"key_pair_id":    kp.ID.String(),
		"valid_until":    validUntil.Format(time.RFC3339),
	})
	return cert, nil
}

func (s *Service) resolveKeyPair(ctx context.Context, orgID id.OrganizationID, rawID string) (*models.KeyPair, error) {
	if rawID == "" {
		kp, err := s.keyPairs.FindCurrent(ctx, orgID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "organization has no active key pair")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pair")
		}
		return kp, nil
	}

	keyPairID, err := id.ParseKeyPairID(rawID)
	if err != nil {
		return nil, err
	}
	kp, err := s.keyPairs.FindByID(ctx, keyPairID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "key pair not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pair")
	}
	if kp.OrganizationID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "key pair not found")
	}
	if !kp.IsActive {
		return nil, dErrors.New(dErrors.CodeValidation, "key pair is inactive")
	}
	return kp, nil
}

// RevokeCertificate marks the certificate revoked. Documents already signed
// with it keep their signatures; new signing attempts fail.
func (s *Service) RevokeCertificate(ctx context.Context, p authz.Principal, certID id.CertificateID, reason string) (*models.Certificate, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	cert, err := s.certificates.Execute(ctx, certID, func(c *models.Certificate) error {
		if !p.IsAdminOf(c.OrganizationID) {
			return dErrors.New(dErrors.CodeForbidden, "organization admin required")
		}
		if err := c.CanRevoke(); err != nil {
			return err
		}
		c.ApplyRevocation(now, reason)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, certID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "public key cache invalidation failed",
				"certificate_id", certID.String(), "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.CertificatesRevoked.Inc()
	}
	s.emitAudit(ctx, audit.EventCertificateRevoked, p, cert.OrganizationID, map[string]any{
		"certificate_id": certID.String(),
		"reason":         reason,
	})
	return cert, nil
}

// GetCertificate returns the certificate to members of its organization.
func (s *Service) GetCertificate(ctx context.Context, p authz.Principal, certID id.CertificateID) (*models.Certificate, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	cert, err := s.findCertificate(ctx, certID)
	if err != nil {
		return nil, err
	}
	if !p.IsSystemAdmin() && p.OrganizationID != cert.OrganizationID {
		return nil, dErrors.New(dErrors.CodeForbidden, "certificate belongs to another organization")
	}
	return cert, nil
}

// SigningCertificate returns the certificate and its unsealed private key PEM.
// Callers are responsible for authorization.
func (s *Service) SigningCertificate(ctx context.Context, certID id.CertificateID) (*models.Certificate, string, error) {
	cert, err := s.findCertificate(ctx, certID)
	if err != nil {
		return nil, "", err
	}
	privatePEM, err := s.sealer.Open(cert.PrivateKey, sealBinding(cert.OrganizationID, cert.KeyPairID))
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeCrypto, "failed to unseal private key")
	}
	return cert, privatePEM, nil
}

// PublicKey returns the certificate's public key PEM.
func (s *Service) PublicKey(ctx context.Context, certID id.CertificateID) (string, error) {
	cert, err := s.findCertificate(ctx, certID)
	if err != nil {
		return "", err
	}
	return cert.PublicKey, nil
}

// sealBinding ties a sealed private key to the organization and key pair it
// was generated for. Certificates carry their pair's sealed value unchanged,
// so they open it with the same binding.
func sealBinding(orgID id.OrganizationID, keyPairID id.KeyPairID) []byte {
	return []byte(orgID.String() + "/" + keyPairID.String())
}

func (s *Service) findCertificate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.certificates.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

func requireOrgAdmin(p authz.Principal, orgID id.OrganizationID) error {
	if err := p.RequireAuthenticated(); err != nil {
		return err
	}
	if !p.IsAdminOf(orgID) {
		return dErrors.New(dErrors.CodeForbidden, "organization admin required")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.AuditEvent, p authz.Principal, orgID id.OrganizationID, details map[string]any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"user_id", p.UserID.String(),
			"organization_id", orgID.String(),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:         string(event),
		UserID:         p.UserID,
		OrganizationID: orgID,
		Details:        details,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
