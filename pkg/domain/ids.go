// Package domain holds typed identifiers shared across bounded contexts.
//
// Each ID is a distinct named type over uuid.UUID so a DocumentID can never be
// passed where a CertificateID is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "docsign/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	DocumentID     uuid.UUID
	CertificateID  uuid.UUID
	KeyPairID      uuid.UUID
	VerificationID uuid.UUID
	NotificationID uuid.UUID
	AuditEventID   uuid.UUID
	ShareLinkID    uuid.UUID
	TemplateID     uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id CertificateID) String() string  { return uuid.UUID(id).String() }
func (id KeyPairID) String() string      { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id AuditEventID) String() string   { return uuid.UUID(id).String() }
func (id ShareLinkID) String() string    { return uuid.UUID(id).String() }
func (id TemplateID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id KeyPairID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewCertificateID() CertificateID   { return CertificateID(uuid.New()) }
func NewKeyPairID() KeyPairID           { return KeyPairID(uuid.New()) }
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
func NewAuditEventID() AuditEventID     { return AuditEventID(uuid.New()) }
func NewShareLinkID() ShareLinkID       { return ShareLinkID(uuid.New()) }
func NewTemplateID() TemplateID         { return TemplateID(uuid.New()) }

// parseUUID enforces the shared parsing rules: non-empty, well-formed, non-nil.
func parseUUID(kind, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID("user id", raw)
	return UserID(u), err
}

func ParseOrganizationID(raw string) (OrganizationID, error) {
	u, err := parseUUID("organization id", raw)
	return OrganizationID(u), err
}

func ParseDocumentID(raw string) (DocumentID, error) {
	u, err := parseUUID("document id", raw)
	return DocumentID(u), err
}

func ParseCertificateID(raw string) (CertificateID, error) {
	u, err := parseUUID("certificate id", raw)
	return CertificateID(u), err
}

func ParseKeyPairID(raw string) (KeyPairID, error) {
	u, err := parseUUID("key pair id", raw)
	return KeyPairID(u), err
}

func ParseNotificationID(raw string) (NotificationID, error) {
	u, err := parseUUID("notification id", raw)
	return NotificationID(u), err
}

func ParseShareLinkID(raw string) (ShareLinkID, error) {
	u, err := parseUUID("share id", raw)
	return ShareLinkID(u), err
}

func ParseTemplateID(raw string) (TemplateID, error) {
	u, err := parseUUID("template id", raw)
	return TemplateID(u), err
}
