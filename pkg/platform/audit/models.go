package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "docsign/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: document
	// issuance, signing, revocation and key material lifecycle.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to forensics, such as failed
	// verifications and certificate revocation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine access that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID             id.AuditEventID
	Category       EventCategory
	Timestamp      time.Time
	Action         string
	UserID         id.UserID
	OrganizationID id.OrganizationID
	DocumentID     id.DocumentID
	Details        map[string]any
	IP             string
	UserAgent      string
	RequestID      string
}

type AuditEvent string

const (
	// Document events
	EventDocumentCreated      AuditEvent = "DOCUMENT_CREATED"
	EventDocumentViewed       AuditEvent = "DOCUMENT_VIEWED"
	EventDocumentUpdated      AuditEvent = "DOCUMENT_UPDATED"
	EventDocumentDeleted      AuditEvent = "DOCUMENT_DELETED"
	EventDocumentSigned       AuditEvent = "DOCUMENT_SIGNED"
	EventDocumentRevoked      AuditEvent = "DOCUMENT_REVOKED"
	EventDocumentSignedBatch  AuditEvent = "DOCUMENT_SIGNED_BATCH"
	EventDocumentRevokedBatch AuditEvent = "DOCUMENT_REVOKED_BATCH"
	EventDocumentDeletedBatch AuditEvent = "DOCUMENT_DELETED_BATCH"
	EventDocumentShareCreated AuditEvent = "DOCUMENT_SHARE_CREATED"
	EventDocumentShareDeleted AuditEvent = "DOCUMENT_SHARE_DELETED"
	EventDocumentShareOpened  AuditEvent = "DOCUMENT_SHARE_OPENED"

	// Template events
	EventTemplateCreated AuditEvent = "TEMPLATE_CREATED"

	// Verification events
	EventDocumentVerifiedSuccess AuditEvent = "DOCUMENT_VERIFIED_SUCCESS"
	EventDocumentVerifiedFailure AuditEvent = "DOCUMENT_VERIFIED_FAILURE"

	// Key material events
	EventKeyPairGenerated   AuditEvent = "KEY_PAIR_GENERATED"
	EventCertificateIssued  AuditEvent = "CERTIFICATE_ISSUED"
	EventCertificateRevoked AuditEvent = "CERTIFICATE_REVOKED"

	// Audit access
	EventAuditExported AuditEvent = "AUDIT_EXPORTED"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentCreated:      CategoryCompliance,
	EventDocumentDeleted:      CategoryCompliance,
	EventDocumentSigned:       CategoryCompliance,
	EventDocumentRevoked:      CategoryCompliance,
	EventDocumentSignedBatch:  CategoryCompliance,
	EventDocumentRevokedBatch: CategoryCompliance,
	EventDocumentDeletedBatch: CategoryCompliance,
	EventKeyPairGenerated:     CategoryCompliance,
	EventCertificateIssued:    CategoryCompliance,

	EventDocumentVerifiedFailure: CategorySecurity,
	EventCertificateRevoked:      CategorySecurity,
	EventAuditExported:           CategorySecurity,
	EventDocumentShareCreated:    CategorySecurity,
	EventDocumentShareDeleted:    CategorySecurity,

	EventDocumentViewed:          CategoryOperations,
	EventDocumentUpdated:         CategoryOperations,
	EventDocumentVerifiedSuccess: CategoryOperations,
	EventDocumentShareOpened:     CategoryOperations,
	EventTemplateCreated:         CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Filter narrows audit queries. Zero-valued fields are ignored.
type Filter struct {
	UserID         id.UserID
	DocumentID     id.DocumentID
	OrganizationID id.OrganizationID
	Action         string
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// Matches reports whether e satisfies every set field of f.
func (f Filter) Matches(e Event) bool {
	if !f.UserID.IsNil() && e.UserID != f.UserID {
		return false
	}
	if !f.DocumentID.IsNil() && e.DocumentID != f.DocumentID {
		return false
	}
	if !f.OrganizationID.IsNil() && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// OutboxEntry is an outbox row awaiting publication.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Store persists audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, int, error)
}

// EventView is the JSON projection of an Event. Unset ids render empty.
type EventView struct {
	ID             string         `json:"id"`
	Category       EventCategory  `json:"category"`
	Timestamp      time.Time      `json:"timestamp"`
	Action         string         `json:"action"`
	UserID         string         `json:"userId,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	DocumentID     string         `json:"documentId,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	IP             string         `json:"ipAddress,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	RequestID      string         `json:"requestId,omitempty"`
}

func (e Event) View() EventView {
	v := EventView{
		ID:        uuid.UUID(e.ID).String(),
		Category:  e.Category,
		Timestamp: e.Timestamp,
		Action:    e.Action,
		Details:   e.Details,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		RequestID: e.RequestID,
	}
	if !e.UserID.IsNil() {
		v.UserID = e.UserID.String()
	}
	if !e.OrganizationID.IsNil() {
		v.OrganizationID = e.OrganizationID.String()
	}
	if !e.DocumentID.IsNil() {
		v.DocumentID = e.DocumentID.String()
	}
	return v
}
