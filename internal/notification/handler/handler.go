package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	docmodels "docsign/internal/document/models"
	"docsign/internal/notification/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/httputil"
	"docsign/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, p authz.Principal, unreadOnly bool, page, limit int) (docmodels.Page[*models.Notification], error)
	MarkRead(ctx context.Context, p authz.Principal, notifID id.NotificationID) (*models.Notification, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Post("/notifications/{id}/read", h.handleMarkRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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
	unread, err := httputil.QueryBool(r, "unreadOnly")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(ctx, requestcontext.Principal(ctx), unread != nil && *unread, pageNum, limit)
	if err != nil {
		h.writeError(ctx, w, "list notifications", err)
		return
	}
	views := make([]models.View, len(page.Items))
	for i, n := range page.Items {
		views[i] = n.View()
	}
	httputil.WriteJSON(w, http.StatusOK, docmodels.NewPage(views, page.Total, page.Page, page.Limit))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notifID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.MarkRead(ctx, requestcontext.Principal(ctx), notifID)
	if err != nil {
		h.writeError(ctx, w, "mark notification read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n.View())
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
