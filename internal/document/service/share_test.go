package service

import (
	"time"

	"github.com/google/uuid"

	"docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/requestcontext"
	"docsign/pkg/testutil"
)

func (s *DocumentServiceSuite) TestShareLinks() {
	svc := s.newService(WithShareBaseURL("https://verify.example.com/"))
	doc := s.create(svc, s.issuer, "docs/a.pdf")

	s.Run("issuer shares and anyone with the token opens", func() {
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{})
		s.Require().NoError(err)
		s.Len(grant.Token, 2*shareTokenBytes)
		s.Equal("https://verify.example.com/shared/"+grant.Token, grant.URL)
		s.NotEqual(grant.Token, grant.Link.TokenHash)

		for range 2 {
			got, err := svc.OpenShared(s.ctx, grant.Token)
			s.Require().NoError(err)
			s.Equal(doc.ID, got.ID)
		}
		s.Contains(s.actions(), string(audit.EventDocumentShareCreated))
		s.Contains(s.actions(), string(audit.EventDocumentShareOpened))
	})

	s.Run("one-time link", func() {
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{IsOneTime: true})
		s.Require().NoError(err)

		_, err = svc.OpenShared(s.ctx, grant.Token)
		s.Require().NoError(err)
		_, err = svc.OpenShared(s.ctx, grant.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("link stops working at its expiry", func() {
		expires := s.now.Add(time.Hour)
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{ExpiresAt: &expires})
		s.Require().NoError(err)

		later := requestcontext.WithTime(s.ctx, expires)
		_, err = svc.OpenShared(later, grant.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expiry in the past is rejected", func() {
		past := s.now.Add(-time.Minute)
		_, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{ExpiresAt: &past})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("outsiders cannot share", func() {
		sameOrg := testutil.NewPrincipal(s.org, authz.RoleIssuer)
		_, err := svc.CreateShareLink(s.ctx, sameOrg, doc.ID, models.CreateShareRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = svc.CreateShareLink(s.ctx, authz.Principal{}, doc.ID, models.CreateShareRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = svc.CreateShareLink(s.ctx, s.issuer, id.NewDocumentID(), models.CreateShareRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank or unknown token", func() {
		_, err := svc.OpenShared(s.ctx, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = svc.OpenShared(s.ctx, "deadbeef")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DocumentServiceSuite) TestDeleteShareLink() {
	svc := s.newService()
	doc := s.create(svc, s.issuer, "docs/a.pdf")
	other := s.create(svc, s.issuer, "docs/b.pdf")

	s.Run("admin deletes a link the issuer made", func() {
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{})
		s.Require().NoError(err)

		s.Require().NoError(svc.DeleteShareLink(s.ctx, s.admin, doc.ID, grant.Link.ID))
		_, err = svc.OpenShared(s.ctx, grant.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(s.actions(), string(audit.EventDocumentShareDeleted))
	})

	s.Run("link must belong to the document", func() {
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{})
		s.Require().NoError(err)

		err = svc.DeleteShareLink(s.ctx, s.issuer, other.ID, grant.Link.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = svc.OpenShared(s.ctx, grant.Token)
		s.NoError(err)
	})

	s.Run("outsider cannot delete", func() {
		grant, err := svc.CreateShareLink(s.ctx, s.issuer, doc.ID, models.CreateShareRequest{})
		s.Require().NoError(err)

		outsider := testutil.NewPrincipal(id.OrganizationID(uuid.New()), authz.RoleOrganizationAdmin)
		err = svc.DeleteShareLink(s.ctx, outsider, doc.ID, grant.Link.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown link", func() {
		err := svc.DeleteShareLink(s.ctx, s.issuer, doc.ID, id.NewShareLinkID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DocumentServiceSuite) TestTemplates() {
	svc := s.newService()
	start := s.now.Add(30 * 24 * time.Hour)

	tmpl, err := svc.CreateTemplate(s.ctx, s.admin, s.org, models.CreateTemplateRequest{
		Name: "  Bachelor  ", Description: "four years", StartDate: &start,
	})
	s.Require().NoError(err)
	s.Equal("Bachelor", tmpl.Name)
	s.Equal(s.org, tmpl.OrganizationID)
	s.Contains(s.actions(), string(audit.EventTemplateCreated))

	s.Run("duplicate name conflicts", func() {
		_, err := svc.CreateTemplate(s.ctx, s.admin, s.org, models.CreateTemplateRequest{Name: "bachelor", StartDate: &start})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("only organization admins create", func() {
		_, err := svc.CreateTemplate(s.ctx, s.issuer, s.org, models.CreateTemplateRequest{Name: "Master", StartDate: &start})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("members list", func() {
		got, err := svc.ListTemplates(s.ctx, s.issuer, s.org)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(tmpl.ID, got[0].ID)

		outsider := testutil.NewPrincipal(id.OrganizationID(uuid.New()), authz.RoleOrganizationAdmin)
		_, err = svc.ListTemplates(s.ctx, outsider, s.org)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("documents reference templates of their organization", func() {
		doc, err := svc.Create(s.ctx, s.issuer, models.CreateRequest{
			Title: "Diploma", FileURL: "docs/a.pdf", TemplateID: tmpl.ID.String(),
		})
		s.Require().NoError(err)
		s.Equal(tmpl.ID.String(), doc.TemplateID)

		_, err = svc.Create(s.ctx, s.issuer, models.CreateRequest{
			Title: "Diploma", FileURL: "docs/a.pdf", TemplateID: id.NewTemplateID().String(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		foreignOrg := id.OrganizationID(uuid.New())
		foreign, err := svc.CreateTemplate(s.ctx, testutil.NewPrincipal(foreignOrg, authz.RoleOrganizationAdmin), foreignOrg,
			models.CreateTemplateRequest{Name: "Bachelor", StartDate: &start})
		s.Require().NoError(err)
		ref := foreign.ID.String()
		_, err = svc.Update(s.ctx, s.issuer, doc.ID, models.UpdateRequest{TemplateID: &ref})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		garbage := "not-a-template"
		_, err = svc.Update(s.ctx, s.issuer, doc.ID, models.UpdateRequest{TemplateID: &garbage})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		cleared := ""
		updated, err := svc.Update(s.ctx, s.issuer, doc.ID, models.UpdateRequest{TemplateID: &cleared})
		s.Require().NoError(err)
		s.Empty(updated.TemplateID)
	})
}
