package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	docmodels "docsign/internal/document/models"
	"docsign/internal/verification/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/httputil"
	"docsign/pkg/requestcontext"
)

// Service defines the verification operations exposed over HTTP.
type Service interface {
	VerifyByID(ctx context.Context, ref string) (*models.Verdict, error)
	VerifyByQR(ctx context.Context, qrData string) (*models.Verdict, error)
	VerifyByHash(ctx context.Context, digest string) (*models.Verdict, error)
	Status(ctx context.Context, ref string) (*models.Verdict, error)
	ListByDocument(ctx context.Context, p authz.Principal, docID id.DocumentID, page, limit int) (docmodels.Page[models.Record], error)
}

// Handler serves the public verification endpoints and the authenticated
// verification history.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated verification routes. A scanned
// QR code resolves to GET /verify/{id}.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/verify/qr", h.handleVerifyQR)
	r.Get("/verify/hash/{hash}", h.handleVerifyHash)
	r.Get("/verify/{id}", h.handleVerifyID)
	r.Get("/verify/{id}/status", h.handleStatus)
}

// Register mounts the routes that require an authenticated principal.
func (h *Handler) Register(r chi.Router) {
	r.Get("/documents/{id}/verifications", h.handleListByDocument)
}

func (h *Handler) handleVerifyID(w http.ResponseWriter, r *http.Request) {
	h.verifyDocument(w, r, "verify by id", h.service.VerifyByID)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.verifyDocument(w, r, "verification status", h.service.Status)
}

func (h *Handler) verifyDocument(w http.ResponseWriter, r *http.Request, op string, verify func(context.Context, string) (*models.Verdict, error)) {
	ctx := r.Context()
	verdict, err := verify(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdict)
}

func (h *Handler) handleVerifyQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.QRRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	verdict, err := h.service.VerifyByQR(ctx, req.QRData)
	if err != nil {
		h.writeError(ctx, w, "verify by qr", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdict)
}

func (h *Handler) handleVerifyHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verdict, err := h.service.VerifyByHash(ctx, chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(ctx, w, "verify by hash", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdict)
}

func (h *Handler) handleListByDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageNum, err := httputil.QueryInt(r, "page", docmodels.DefaultPage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", docmodels.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListByDocument(ctx, requestcontext.Principal(ctx), docID, pageNum, limit)
	if err != nil {
		h.writeError(ctx, w, "list verifications", err)
		return
	}
	views := make([]models.RecordView, len(page.Items))
	for i, rec := range page.Items {
		views[i] = rec.View()
	}
	httputil.WriteJSON(w, http.StatusOK, docmodels.NewPage(views, page.Total, page.Page, page.Limit))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
