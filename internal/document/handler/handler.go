package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/httputil"
	"docsign/pkg/requestcontext"
)

// Service defines the document operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, p authz.Principal, req models.CreateRequest) (*models.Document, error)
	Get(ctx context.Context, p authz.Principal, docID id.DocumentID) (*models.Document, error)
	List(ctx context.Context, p authz.Principal, filter models.ListFilter) (models.Page[*models.Document], error)
	Update(ctx context.Context, p authz.Principal, docID id.DocumentID, req models.UpdateRequest) (*models.Document, error)
	Delete(ctx context.Context, p authz.Principal, docID id.DocumentID) error
	Sign(ctx context.Context, p authz.Principal, docID id.DocumentID, certID id.CertificateID) (*models.Document, error)
	Revoke(ctx context.Context, p authz.Principal, docID id.DocumentID, reason string) (*models.Document, error)
	History(ctx context.Context, p authz.Principal, docID id.DocumentID, page, limit int) (models.Page[audit.Event], error)
	Batch(ctx context.Context, p authz.Principal, req models.BatchRequest) (*models.BatchResult, error)
	CreateShareLink(ctx context.Context, p authz.Principal, docID id.DocumentID, req models.CreateShareRequest) (*models.ShareGrant, error)
	DeleteShareLink(ctx context.Context, p authz.Principal, docID id.DocumentID, shareID id.ShareLinkID) error
	OpenShared(ctx context.Context, token string) (*models.Document, error)
	CreateTemplate(ctx context.Context, p authz.Principal, orgID id.OrganizationID, req models.CreateTemplateRequest) (*models.Template, error)
	ListTemplates(ctx context.Context, p authz.Principal, orgID id.OrganizationID) ([]*models.Template, error)
}

// Handler serves the authenticated document endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/documents", h.handleCreate)
	r.Get("/documents", h.handleList)
	r.Post("/documents/batch", h.handleBatch)
	r.Get("/documents/{id}", h.handleGet)
	r.Patch("/documents/{id}", h.handleUpdate)
	r.Delete("/documents/{id}", h.handleDelete)
	r.Post("/documents/{id}/sign", h.handleSign)
	r.Post("/documents/{id}/revoke", h.handleRevoke)
	r.Get("/documents/{id}/history", h.handleHistory)
	r.Post("/documents/{id}/share", h.handleCreateShare)
	r.Delete("/documents/{id}/share/{shareId}", h.handleDeleteShare)
	r.Post("/organizations/{id}/templates", h.handleCreateTemplate)
	r.Get("/organizations/{id}/templates", h.handleListTemplates)
}

// RegisterPublic mounts the routes reachable without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/shared/{token}", h.handleOpenShared)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Create(ctx, requestcontext.Principal(ctx), req)
	if err != nil {
		h.writeError(ctx, w, "create document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc.View())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(ctx, requestcontext.Principal(ctx), filter)
	if err != nil {
		h.writeError(ctx, w, "list documents", err)
		return
	}
	views := make([]models.View, len(page.Items))
	for i, doc := range page.Items {
		views[i] = doc.View()
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewPage(views, page.Total, page.Page, page.Limit))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Get(ctx, requestcontext.Principal(ctx), docID)
	if err != nil {
		h.writeError(ctx, w, "get document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.View())
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Update(ctx, requestcontext.Principal(ctx), docID, req)
	if err != nil {
		h.writeError(ctx, w, "update document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.View())
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, requestcontext.Principal(ctx), docID); err != nil {
		h.writeError(ctx, w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.SignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	certID, err := id.ParseCertificateID(req.CertificateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Sign(ctx, requestcontext.Principal(ctx), docID, certID)
	if err != nil {
		h.writeError(ctx, w, "sign document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.View())
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.RevokeRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	doc, err := h.service.Revoke(ctx, requestcontext.Principal(ctx), docID, req.Reason)
	if err != nil {
		h.writeError(ctx, w, "revoke document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.View())
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageNum, err := httputil.QueryInt(r, "page", models.DefaultPage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", models.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.History(ctx, requestcontext.Principal(ctx), docID, pageNum, limit)
	if err != nil {
		h.writeError(ctx, w, "document history", err)
		return
	}
	views := make([]audit.EventView, len(page.Items))
	for i, e := range page.Items {
		views[i] = e.View()
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewPage(views, page.Total, page.Page, page.Limit))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.BatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Batch(ctx, requestcontext.Principal(ctx), req)
	if err != nil {
		h.writeError(ctx, w, "batch", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.CreateShareRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	grant, err := h.service.CreateShareLink(ctx, requestcontext.Principal(ctx), docID, req)
	if err != nil {
		h.writeError(ctx, w, "create share link", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant.View())
}

func (h *Handler) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	shareID, err := id.ParseShareLinkID(chi.URLParam(r, "shareId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteShareLink(ctx, requestcontext.Principal(ctx), docID, shareID); err != nil {
		h.writeError(ctx, w, "delete share link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpenShared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.service.OpenShared(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(ctx, w, "open shared document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.View())
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.CreateTemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.CreateTemplate(ctx, requestcontext.Principal(ctx), orgID, req)
	if err != nil {
		h.writeError(ctx, w, "create template", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t.View())
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	templates, err := h.service.ListTemplates(ctx, requestcontext.Principal(ctx), orgID)
	if err != nil {
		h.writeError(ctx, w, "list templates", err)
		return
	}
	views := make([]models.TemplateView, len(templates))
	for i, t := range templates {
		views[i] = t.View()
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	var f models.ListFilter
	var err error
	if f.Page, err = httputil.QueryInt(r, "page", models.DefaultPage); err != nil {
		return f, err
	}
	if f.Limit, err = httputil.QueryInt(r, "limit", models.DefaultLimit); err != nil {
		return f, err
	}
	if f.IsRevoked, err = httputil.QueryBool(r, "isRevoked"); err != nil {
		return f, err
	}
	f.Search = q.Get("search")
	if raw := q.Get("ownerId"); raw != "" {
		if f.OwnerID, err = id.ParseUserID(raw); err != nil {
			return f, err
		}
	}
	if raw := q.Get("issuerId"); raw != "" {
		if f.IssuerID, err = id.ParseUserID(raw); err != nil {
			return f, err
		}
	}
	if raw := q.Get("organizationId"); raw != "" {
		if f.OrganizationID, err = id.ParseOrganizationID(raw); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
