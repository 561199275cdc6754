package service

import (
	"context"
	"errors"

	"docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

// CreateTemplate adds a named template to the organization. Names are unique
// per organization.
func (s *Service) CreateTemplate(ctx context.Context, p authz.Principal, orgID id.OrganizationID, req models.CreateTemplateRequest) (*models.Template, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if !p.IsAdminOf(orgID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "organization admin required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	t := &models.Template{
		ID:             id.NewTemplateID(),
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate.UTC(),
		CreatedBy:      p.UserID,
		CreatedAt:      now,
	}
	if err := s.templates.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a template with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store template")
	}
	s.publishAudit(ctx, audit.EventTemplateCreated, p, orgID, id.DocumentID{}, map[string]any{
		"template_id": t.ID.String(),
		"name":        t.Name,
	})
	return t, nil
}

// ListTemplates returns the organization's templates to its members.
func (s *Service) ListTemplates(ctx context.Context, p authz.Principal, orgID id.OrganizationID) ([]*models.Template, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if p.OrganizationID != orgID && !p.IsSystemAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a member of this organization")
	}
	templates, err := s.templates.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return templates, nil
}

// checkTemplate accepts an empty reference or the id of one of orgID's
// templates.
func (s *Service) checkTemplate(ctx context.Context, orgID id.OrganizationID, raw string) error {
	if raw == "" {
		return nil
	}
	templateID, err := id.ParseTemplateID(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "templateId is not a valid template id")
	}
	t, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "templateId does not name a template of this organization")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	if t.OrganizationID != orgID {
		return dErrors.New(dErrors.CodeValidation, "templateId does not name a template of this organization")
	}
	return nil
}
