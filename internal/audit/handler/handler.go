package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auditservice "docsign/internal/audit/service"
	docmodels "docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/httputil"
	"docsign/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, p authz.Principal, q auditservice.Query) (docmodels.Page[audit.Event], error)
	UserActivity(ctx context.Context, p authz.Principal, userID id.UserID, page, limit int) (docmodels.Page[audit.Event], error)
	ExportCSV(ctx context.Context, p authz.Principal, q auditservice.Query, w io.Writer) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit-logs", h.handleList)
	r.Get("/audit-logs/export", h.handleExport)
	r.Get("/users/{id}/activity", h.handleUserActivity)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(ctx, requestcontext.Principal(ctx), q)
	if err != nil {
		h.writeError(ctx, w, "list audit logs", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views(page))
}

func (h *Handler) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
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
	page, err := h.service.UserActivity(ctx, requestcontext.Principal(ctx), userID, pageNum, limit)
	if err != nil {
		h.writeError(ctx, w, "user activity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views(page))
}

// handleExport buffers the CSV so a failed export still gets a JSON error.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var buf bytes.Buffer
	if _, err := h.service.ExportCSV(ctx, requestcontext.Principal(ctx), q, &buf); err != nil {
		h.writeError(ctx, w, "export audit logs", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+auditservice.ExportFilename(requestcontext.Now(ctx))+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(ctx, "audit export write failed", "error", err)
	}
}

func views(page docmodels.Page[audit.Event]) docmodels.Page[audit.EventView] {
	out := make([]audit.EventView, len(page.Items))
	for i, e := range page.Items {
		out[i] = e.View()
	}
	return docmodels.NewPage(out, page.Total, page.Page, page.Limit)
}

func parseQuery(r *http.Request) (auditservice.Query, error) {
	query := r.URL.Query()
	var (
		q   auditservice.Query
		err error
	)
	if q.Page, err = httputil.QueryInt(r, "page", docmodels.DefaultPage); err != nil {
		return q, err
	}
	if q.Limit, err = httputil.QueryInt(r, "limit", docmodels.DefaultLimit); err != nil {
		return q, err
	}
	q.Action = query.Get("action")
	if raw := query.Get("userId"); raw != "" {
		if q.UserID, err = id.ParseUserID(raw); err != nil {
			return q, err
		}
	}
	if raw := query.Get("documentId"); raw != "" {
		if q.DocumentID, err = id.ParseDocumentID(raw); err != nil {
			return q, err
		}
	}
	if raw := query.Get("organizationId"); raw != "" {
		if q.OrganizationID, err = id.ParseOrganizationID(raw); err != nil {
			return q, err
		}
	}
	if q.From, err = parseTime(query.Get("startDate"), false); err != nil {
		return q, err
	}
	if q.To, err = parseTime(query.Get("endDate"), true); err != nil {
		return q, err
	}
	return q, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "dates must be RFC 3339 timestamps or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
