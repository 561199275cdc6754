package models

import (
	"path"
	"strings"
	"time"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

const (
	maxTitleLength           = 255
	DefaultPage              = 1
	DefaultLimit             = 20
	MaxLimit                 = 100
	MaxBatchSize             = 100
	DefaultBatchRevokeReason = "Batch revocation"
)

type CreateRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	FileURL        string         `json:"fileUrl"`
	FileType       string         `json:"fileType,omitempty"`
	OwnerID        string         `json:"ownerId,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	TemplateID     string         `json:"templateId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
}

func (r *CreateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.FileURL = strings.TrimSpace(r.FileURL)
	r.TemplateID = strings.TrimSpace(r.TemplateID)
	r.FileType = strings.ToLower(strings.TrimSpace(r.FileType))
	if r.FileType == "" {
		r.FileType = strings.TrimPrefix(strings.ToLower(path.Ext(r.FileURL)), ".")
	}
}

func (r *CreateRequest) Validate(now time.Time) error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title must be at most 255 characters")
	}
	if r.FileURL == "" {
		return dErrors.New(dErrors.CodeValidation, "fileUrl is required")
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeValidation, "expiresAt must be in the future")
	}
	return nil
}

// UpdateRequest changes descriptive fields only. Nil fields are left alone.
type UpdateRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	TemplateID  *string        `json:"templateId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return dErrors.New(dErrors.CodeValidation, "title must not be empty")
		}
		if len(t) > maxTitleLength {
			return dErrors.New(dErrors.CodeValidation, "title must be at most 255 characters")
		}
		r.Title = &t
	}
	return nil
}

// Apply copies the set fields onto doc.
func (r *UpdateRequest) Apply(doc *Document, now time.Time) {
	if r.Title != nil {
		doc.Title = *r.Title
	}
	if r.Description != nil {
		doc.Description = strings.TrimSpace(*r.Description)
	}
	if r.TemplateID != nil {
		doc.TemplateID = strings.TrimSpace(*r.TemplateID)
	}
	if r.Metadata != nil {
		doc.Metadata = r.Metadata
	}
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		doc.ExpiresAt = &t
	}
	doc.UpdatedAt = now
}

type SignRequest struct {
	CertificateID string `json:"certificateId"`
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows document listings. Zero-valued fields are ignored.
// The Visible* fields restrict results to documents in VisibleOrganizationID
// or owned by VisibleUserID; both zero means unrestricted.
type ListFilter struct {
	OwnerID               id.UserID
	IssuerID              id.UserID
	OrganizationID        id.OrganizationID
	IsRevoked             *bool
	Search                string
	VisibleOrganizationID id.OrganizationID
	VisibleUserID         id.UserID
	Page                  int
	Limit                 int
}

// Normalize clamps pagination to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	f.Search = strings.TrimSpace(f.Search)
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches applies every filter field, including visibility, to doc.
func (f ListFilter) Matches(doc *Document) bool {
	if !f.OwnerID.IsNil() && doc.OwnerID != f.OwnerID {
		return false
	}
	if !f.IssuerID.IsNil() && doc.IssuerID != f.IssuerID {
		return false
	}
	if !f.OrganizationID.IsNil() && doc.OrganizationID != f.OrganizationID {
		return false
	}
	if f.IsRevoked != nil && doc.IsRevoked != *f.IsRevoked {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(doc.Title), needle) &&
			!strings.Contains(strings.ToLower(doc.Description), needle) {
			return false
		}
	}
	if !f.VisibleOrganizationID.IsNil() || !f.VisibleUserID.IsNil() {
		inOrg := !f.VisibleOrganizationID.IsNil() && doc.OrganizationID == f.VisibleOrganizationID
		owned := !f.VisibleUserID.IsNil() && doc.OwnerID == f.VisibleUserID
		if !inOrg && !owned {
			return false
		}
	}
	return true
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, total, page, limit int) Page[T] {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

type BatchOperation string

const (
	BatchSign   BatchOperation = "sign"
	BatchRevoke BatchOperation = "revoke"
	BatchDelete BatchOperation = "delete"
)

type BatchRequest struct {
	Operation     BatchOperation `json:"operation"`
	DocumentIDs   []string       `json:"documentIds"`
	CertificateID string         `json:"certificateId,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

type BatchItemResult struct {
	DocumentID string `json:"documentId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

type BatchResult struct {
	Operation BatchOperation    `json:"operation"`
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
