package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmodels "docsign/internal/document/models"
	"docsign/internal/notification/models"
	"docsign/internal/notification/service"
	"docsign/internal/notification/store"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	"docsign/pkg/testutil"
)

func newRouter(t *testing.T, p authz.Principal) (http.Handler, *service.Service) {
	t.Helper()
	svc, err := service.New(store.NewInMemory())
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(testutil.PrincipalMiddleware(p))
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, svc
}

func TestNotificationEndpoints(t *testing.T) {
	p := testutil.NewPrincipal(id.OrganizationID(uuid.New()), authz.RoleDocumentOwner)
	router, svc := newRouter(t, p)
	for _, typ := range []models.Type{models.TypeDocumentCreated, models.TypeDocumentSigned} {
		svc.Notify(context.Background(), models.Event{UserID: p.UserID, Type: typ, DocumentTitle: "Diploma"})
	}

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/notifications"))
	testutil.AssertStatusOK(t, rr)
	page := testutil.UnmarshalResponse[docmodels.Page[models.View]](t, rr)
	require.Equal(t, 2, page.Total)

	target := page.Items[0].ID
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/notifications/"+target+"/read"))
	testutil.AssertStatusOK(t, rr)
	read := testutil.UnmarshalResponse[models.View](t, rr)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/notifications?unreadOnly=true"))
	testutil.AssertStatusOK(t, rr)
	unread := testutil.UnmarshalResponse[docmodels.Page[models.View]](t, rr)
	assert.Equal(t, 1, unread.Total)
	assert.NotEqual(t, target, unread.Items[0].ID)
}

func TestNotificationHandlerErrors(t *testing.T) {
	router, _ := newRouter(t, testutil.NewPrincipal(id.OrganizationID(uuid.New()), authz.RoleVerifier))

	t.Run("malformed id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/notifications/nope/read"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("unknown notification", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/notifications/"+uuid.NewString()+"/read"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("malformed unread flag", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/notifications?unreadOnly=maybe"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("anonymous caller", func(t *testing.T) {
		anon, _ := newRouter(t, authz.Principal{})
		rr := testutil.DoRequest(anon, testutil.NewRequest(t, http.MethodGet, "/notifications"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}
