package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docsign/internal/keys/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/httputil"
	"docsign/pkg/requestcontext"
)

// Service defines the key operations exposed over HTTP.
type Service interface {
	GenerateKeyPair(ctx context.Context, p authz.Principal, orgID id.OrganizationID) (*models.KeyPair, error)
	ListKeyPairs(ctx context.Context, p authz.Principal, orgID id.OrganizationID) ([]*models.KeyPair, error)
	IssueCertificate(ctx context.Context, p authz.Principal, orgID id.OrganizationID, req models.IssueCertificateRequest) (*models.Certificate, error)
	RevokeCertificate(ctx context.Context, p authz.Principal, certID id.CertificateID, reason string) (*models.Certificate, error)
	GetCertificate(ctx context.Context, p authz.Principal, certID id.CertificateID) (*models.Certificate, error)
}

// Handler serves organization key and certificate endpoints. Routes expect
// the auth middleware to have populated the principal.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations/{id}/keys", h.handleGenerateKeyPair)
	r.Get("/organizations/{id}/keys", h.handleListKeyPairs)
	r.Post("/organizations/{id}/certificates", h.handleIssueCertificate)
	r.Get("/certificates/{id}", h.handleGetCertificate)
	r.Post("/certificates/{id}/revoke", h.handleRevokeCertificate)
}

func (h *Handler) handleGenerateKeyPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kp, err := h.service.GenerateKeyPair(ctx, requestcontext.Principal(ctx), orgID)
	if err != nil {
		h.writeError(ctx, w, "generate key pair", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, kp.View())
}

func (h *Handler) handleListKeyPairs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pairs, err := h.service.ListKeyPairs(ctx, requestcontext.Principal(ctx), orgID)
	if err != nil {
		h.writeError(ctx, w, "list key pairs", err)
		return
	}
	views := make([]models.KeyPairView, len(pairs))
	for i, kp := range pairs {
		views[i] = kp.View()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (h *Handler) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.IssueCertificateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.IssueCertificate(ctx, requestcontext.Principal(ctx), orgID, req)
	if err != nil {
		h.writeError(ctx, w, "issue certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert.View())
}

func (h *Handler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.GetCertificate(ctx, requestcontext.Principal(ctx), certID)
	if err != nil {
		h.writeError(ctx, w, "get certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert.View())
}

func (h *Handler) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.RevokeCertificateRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	cert, err := h.service.RevokeCertificate(ctx, requestcontext.Principal(ctx), certID, req.Reason)
	if err != nil {
		h.writeError(ctx, w, "revoke certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert.View())
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
