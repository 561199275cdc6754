package models

import (
	"strings"
	"time"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

// Template is an organization's named document kind. Documents reference it
// through TemplateID.
type Template struct {
	ID             id.TemplateID
	OrganizationID id.OrganizationID
	Name           string
	Description    string
	StartDate      time.Time
	CreatedBy      id.UserID
	CreatedAt      time.Time
}

type CreateTemplateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
}

func (r *CreateTemplateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 255 characters")
	}
	if r.StartDate == nil {
		return dErrors.New(dErrors.CodeValidation, "startDate is required")
	}
	return nil
}

type TemplateView struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	StartDate      time.Time `json:"startDate"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (t *Template) View() TemplateView {
	return TemplateView{
		ID:             t.ID.String(),
		OrganizationID: t.OrganizationID.String(),
		Name:           t.Name,
		Description:    t.Description,
		StartDate:      t.StartDate,
		CreatedBy:      t.CreatedBy.String(),
		CreatedAt:      t.CreatedAt,
	}
}
