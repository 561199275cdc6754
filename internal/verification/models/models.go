// Package models holds verification verdicts and the append-only records of
// verification attempts.
package models

import (
	"time"

	id "docsign/pkg/domain"
)

// Status is the outcome of the verification decision chain.
type Status string

const (
	StatusValid            Status = "VALID"
	StatusRevoked          Status = "REVOKED"
	StatusExpired          Status = "EXPIRED"
	StatusSignatureInvalid Status = "SIGNATURE_INVALID"
	StatusUnsigned         Status = "UNSIGNED"
	StatusNotFound         Status = "NOT_FOUND"
)

var statusMessages = map[Status]string{
	StatusValid:            "Document is valid",
	StatusRevoked:          "Document has been revoked",
	StatusExpired:          "Document has expired",
	StatusSignatureInvalid: "Invalid document signature",
	StatusUnsigned:         "Document has not been signed",
	StatusNotFound:         "Document not found",
}

// Message is the human-readable sentence for s.
func (s Status) Message() string {
	return statusMessages[s]
}

// Method names the entry point a verification came through.
type Method string

const (
	MethodID     Method = "id"
	MethodQR     Method = "qr"
	MethodHash   Method = "hash"
	MethodStatus Method = "status"
)

// DocumentSummary is the public slice of a document returned with a verdict.
type DocumentSummary struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	IssuerID       string     `json:"issuerId"`
	OrganizationID string     `json:"organizationId"`
	SignedAt       *time.Time `json:"signedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	CertificateID  string     `json:"certificateId,omitempty"`
}

// Verdict is the result of one pass through the decision chain.
//
// Invariants:
//   - Verified is true exactly when Status is VALID
//   - SignatureValid is nil when the signature was never checked
//     (NOT_FOUND, REVOKED, EXPIRED, UNSIGNED)
type Verdict struct {
	Status         Status           `json:"status"`
	Verified       bool             `json:"verified"`
	Message        string           `json:"message"`
	SignatureValid *bool            `json:"signatureValid,omitempty"`
	Document       *DocumentSummary `json:"document,omitempty"`
	RevokedAt      *time.Time       `json:"revokedAt,omitempty"`
	RevokedReason  string           `json:"revokedReason,omitempty"`
	VerifiedAt     time.Time        `json:"verifiedAt"`

	// FailReason is the internal reason recorded for non-VALID outcomes.
	FailReason string `json:"-"`
}

// NewVerdict builds a verdict whose Message and Verified follow from status.
func NewVerdict(status Status, at time.Time) Verdict {
	return Verdict{
		Status:     status,
		Verified:   status == StatusValid,
		Message:    status.Message(),
		VerifiedAt: at,
	}
}

// VerifierInfo describes the client that asked for a verification.
type VerifierInfo struct {
	UserAgent      string    `json:"userAgent,omitempty"`
	Referer        string    `json:"referer,omitempty"`
	HTTPMethod     string    `json:"httpMethod,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	OS             string    `json:"os,omitempty"`
	Mobile         bool      `json:"mobile"`
	Bot            bool      `json:"bot"`
	Timestamp      time.Time `json:"timestamp"`
}

// Record is one verification attempt. Records are never updated or deleted.
// DocumentID is zero for lookups that matched no document.
type Record struct {
	ID           id.VerificationID
	DocumentID   id.DocumentID
	Method       Method
	Status       Status
	IsSuccessful bool
	FailReason   string
	VerifierIP   string
	VerifierInfo VerifierInfo
	CreatedAt    time.Time
}

type RecordView struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"documentId,omitempty"`
	Method       Method       `json:"method"`
	Status       Status       `json:"status"`
	IsSuccessful bool         `json:"isSuccessful"`
	FailReason   string       `json:"failReason,omitempty"`
	VerifierIP   string       `json:"verifierIp,omitempty"`
	VerifierInfo VerifierInfo `json:"verifierInfo"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (r Record) View() RecordView {
	v := RecordView{
		ID:           r.ID.String(),
		Method:       r.Method,
		Status:       r.Status,
		IsSuccessful: r.IsSuccessful,
		FailReason:   r.FailReason,
		VerifierIP:   r.VerifierIP,
		VerifierInfo: r.VerifierInfo,
		CreatedAt:    r.CreatedAt,
	}
	if !r.DocumentID.IsNil() {
		v.DocumentID = r.DocumentID.String()
	}
	return v
}

// QRRequest carries the scanned QR payload.
type QRRequest struct {
	QRData string `json:"qrData"`
}
