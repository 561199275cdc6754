package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"docsign/internal/document/hasher"
	"docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/sentinel"
	"docsign/pkg/requestcontext"
)

const shareTokenBytes = 32

// CreateShareLink mints a link that opens the document without an account.
// Whoever may read the document may share it.
func (s *Service) CreateShareLink(ctx context.Context, p authz.Principal, docID id.DocumentID, req models.CreateShareRequest) (*models.ShareGrant, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !canRead(p, doc) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to share this document")
	}

	token, err := newShareToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create share link")
	}
	link := &models.ShareLink{
		ID:         id.NewShareLinkID(),
		DocumentID: doc.ID,
		CreatedBy:  p.UserID,
		TokenHash:  hasher.Sum([]byte(token)),
		ExpiresAt:  utcPtr(req.ExpiresAt),
		IsOneTime:  req.IsOneTime,
		CreatedAt:  now,
	}
	if err := s.shares.Create(ctx, link); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store share link")
	}

	s.emitAudit(ctx, audit.EventDocumentShareCreated, p, doc, map[string]any{
		"share_id":    link.ID.String(),
		"is_one_time": link.IsOneTime,
	})
	return &models.ShareGrant{
		Link:  link,
		Token: token,
		URL:   s.shareBaseURL + "/shared/" + token,
	}, nil
}

// DeleteShareLink removes a link of the document. The link's creator and
// anyone who may share the document may delete it.
func (s *Service) DeleteShareLink(ctx context.Context, p authz.Principal, docID id.DocumentID, shareID id.ShareLinkID) error {
	if err := p.RequireAuthenticated(); err != nil {
		return err
	}
	link, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		return translateShare(err, "failed to load share link")
	}
	if link.DocumentID != docID {
		return dErrors.New(dErrors.CodeNotFound, "share link not found")
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	if link.CreatedBy != p.UserID && !canRead(p, doc) {
		return dErrors.New(dErrors.CodeForbidden, "not allowed to delete this share link")
	}
	if err := s.shares.Delete(ctx, shareID); err != nil {
		return translateShare(err, "failed to delete share link")
	}
	s.emitAudit(ctx, audit.EventDocumentShareDeleted, p, doc, map[string]any{
		"share_id": shareID.String(),
	})
	return nil
}

// OpenShared resolves a share token to its document. Expired links and
// one-time links that were already opened are not found.
func (s *Service) OpenShared(ctx context.Context, token string) (*models.Document, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "share token is required")
	}
	now := requestcontext.Now(ctx).UTC()
	link, err := s.shares.Redeem(ctx, hasher.Sum([]byte(token)), now)
	if err != nil {
		return nil, translateShare(err, "failed to open share link")
	}
	doc, err := s.load(ctx, link.DocumentID)
	if err != nil {
		return nil, err
	}
	s.publishAudit(ctx, audit.EventDocumentShareOpened, authz.Principal{}, doc.OrganizationID, doc.ID, map[string]any{
		"share_id": link.ID.String(),
	})
	return doc, nil
}

func newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func translateShare(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "share link not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
