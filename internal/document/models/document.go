// Package models holds the document aggregate and its request/response shapes.
package models

import (
	"time"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

// Document is a registered file whose content digest can be signed and
// later verified.
//
// Invariants:
//   - FileHash is computed once at creation and never changes
//   - Signature, CertificateID and SignedAt are all set or all empty
//   - RevokedAt is set iff IsRevoked
type Document struct {
	ID             id.DocumentID
	Title          string
	Description    string
	FileURL        string
	FileType       string
	FileSize       int64
	FileHash       string
	QRCode         string
	Signature      string
	CertificateID  id.CertificateID
	SignedAt       *time.Time
	IsRevoked      bool
	RevokedAt      *time.Time
	RevokedReason  string
	ExpiresAt      *time.Time
	IssuerID       id.UserID
	OwnerID        id.UserID
	OrganizationID id.OrganizationID
	TemplateID     string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d *Document) IsSigned() bool {
	return d.Signature != ""
}

// IsExpiredAt reports whether the document's expiry lies strictly before now.
func (d *Document) IsExpiredAt(now time.Time) bool {
	return d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}

// ApplySignature writes the signature triple in one step.
func (d *Document) ApplySignature(signature string, certID id.CertificateID, now time.Time) {
	d.Signature = signature
	d.CertificateID = certID
	d.SignedAt = &now
	d.UpdatedAt = now
}

func (d *Document) CanRevoke() error {
	if d.IsRevoked {
		return dErrors.New(dErrors.CodeConflict, "document is already revoked")
	}
	return nil
}

func (d *Document) ApplyRevocation(now time.Time, reason string) {
	d.IsRevoked = true
	d.RevokedAt = &now
	d.RevokedReason = reason
	d.UpdatedAt = now
}

// Recipient is who hears about changes to the document: the owner when one
// is set, otherwise the issuer.
func (d *Document) Recipient() id.UserID {
	if !d.OwnerID.IsNil() {
		return d.OwnerID
	}
	return d.IssuerID
}

// View is the JSON projection of a Document.
type View struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	FileURL        string         `json:"fileUrl"`
	FileType       string         `json:"fileType,omitempty"`
	FileSize       int64          `json:"fileSize"`
	FileHash       string         `json:"fileHash"`
	QRCode         string         `json:"qrCode,omitempty"`
	Signature      string         `json:"signature,omitempty"`
	CertificateID  string         `json:"certificateId,omitempty"`
	SignedAt       *time.Time     `json:"signedAt,omitempty"`
	IsRevoked      bool           `json:"isRevoked"`
	RevokedAt      *time.Time     `json:"revokedAt,omitempty"`
	RevokedReason  string         `json:"revokedReason,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	IssuerID       string         `json:"issuerId"`
	OwnerID        string         `json:"ownerId,omitempty"`
	OrganizationID string         `json:"organizationId"`
	TemplateID     string         `json:"templateId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (d *Document) View() View {
	v := View{
		ID:             d.ID.String(),
		Title:          d.Title,
		Description:    d.Description,
		FileURL:        d.FileURL,
		FileType:       d.FileType,
		FileSize:       d.FileSize,
		FileHash:       d.FileHash,
		QRCode:         d.QRCode,
		Signature:      d.Signature,
		SignedAt:       d.SignedAt,
		IsRevoked:      d.IsRevoked,
		RevokedAt:      d.RevokedAt,
		RevokedReason:  d.RevokedReason,
		ExpiresAt:      d.ExpiresAt,
		IssuerID:       d.IssuerID.String(),
		OrganizationID: d.OrganizationID.String(),
		TemplateID:     d.TemplateID,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if !d.CertificateID.IsNil() {
		v.CertificateID = d.CertificateID.String()
	}
	if !d.OwnerID.IsNil() {
		v.OwnerID = d.OwnerID.String()
	}
	return v
}

// Clone returns a deep copy safe to hand out of a store.
func (d *Document) Clone() *Document {
	c := *d
	if d.Metadata != nil {
		c.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
