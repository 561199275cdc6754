package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/document/content"
	docmodels "docsign/internal/document/models"
	"docsign/internal/document/qrcode"
	docservice "docsign/internal/document/service"
	docstore "docsign/internal/document/store"
	keymodels "docsign/internal/keys/models"
	keyservice "docsign/internal/keys/service"
	"docsign/internal/keys/store/certificate"
	"docsign/internal/keys/store/keypair"
	"docsign/internal/signing/signingtest"
	"docsign/internal/verification/cache"
	"docsign/internal/verification/models"
	"docsign/internal/verification/service"
	"docsign/internal/verification/store"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/middleware/metadata"
	"docsign/pkg/testutil"
)

type fixture struct {
	public  http.Handler
	private http.Handler
	records *store.InMemory
	signed  *docmodels.Document
	draft   *docmodels.Document
}

func newFixture(t *testing.T, caller authz.Principal) fixture {
	t.Helper()
	ctx := context.Background()
	org := id.OrganizationID(uuid.New())
	admin := testutil.NewPrincipal(org, authz.RoleOrganizationAdmin)

	keys, err := keyservice.New(keypair.NewInMemory(), certificate.NewInMemory(),
		keyservice.WithKeyGenerator(signingtest.Generator(t)))
	require.NoError(t, err)
	_, err = keys.GenerateKeyPair(ctx, admin, org)
	require.NoError(t, err)
	until := time.Now().Add(time.Hour)
	cert, err := keys.IssueCertificate(ctx, admin, org, keymodels.IssueCertificateRequest{ValidUntil: &until})
	require.NoError(t, err)

	docs := docstore.NewInMemory()
	files := fstest.MapFS{
		"signed.pdf": {Data: []byte("signed transcript")},
		"draft.pdf":  {Data: []byte("draft transcript")},
	}
	docSvc, err := docservice.New(docs, keys, content.NewFSSource(files),
		docservice.WithQRRenderer(qrcode.NewRenderer("https://verify.example.com", qrcode.DefaultSize)))
	require.NoError(t, err)
	signed, err := docSvc.Create(ctx, admin, docmodels.CreateRequest{Title: "Signed", FileURL: "signed.pdf"})
	require.NoError(t, err)
	signed, err = docSvc.Sign(ctx, admin, signed.ID, cert.ID)
	require.NoError(t, err)
	draft, err := docSvc.Create(ctx, admin, docmodels.CreateRequest{Title: "Draft", FileURL: "draft.pdf"})
	require.NoError(t, err)

	records := store.NewInMemory()
	recorder := service.NewRecorder(records)
	svc, err := service.New(docs, cache.NewPassthrough(keys), recorder, service.WithHistory(recorder))
	require.NoError(t, err)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	public := chi.NewRouter()
	public.Use(metadata.ClientMetadata)
	h.RegisterPublic(public)

	if caller.OrganizationID.IsNil() {
		caller.OrganizationID = org
	}
	private := chi.NewRouter()
	private.Use(testutil.PrincipalMiddleware(caller))
	h.Register(private)

	return fixture{public: public, private: private, records: records, signed: signed, draft: draft}
}

func TestPublicVerification(t *testing.T) {
	f := newFixture(t, authz.Principal{})

	t.Run("by id", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/verify/"+f.signed.ID.String())
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rr := testutil.DoRequest(f.public, req)
		testutil.AssertStatusOK(t, rr)
		verdict := testutil.UnmarshalResponse[models.Verdict](t, rr)
		assert.Equal(t, models.StatusValid, verdict.Status)
		assert.True(t, verdict.Verified)
		require.NotNil(t, verdict.Document)
		assert.Equal(t, "Signed", verdict.Document.Title)

		recs := f.records.All()
		rec := recs[len(recs)-1]
		assert.Equal(t, "203.0.113.7", rec.VerifierIP)
		assert.Equal(t, "Chrome", rec.VerifierInfo.Browser)
		assert.Equal(t, http.MethodGet, rec.VerifierInfo.HTTPMethod)
	})

	t.Run("by qr payload", func(t *testing.T) {
		rr := testutil.DoRequest(f.public, testutil.NewJSONRequest(t, http.MethodPost, "/verify/qr",
			models.QRRequest{QRData: "https://verify.example.com/verify/" + f.signed.ID.String()}))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "VALID")
	})

	t.Run("by hash", func(t *testing.T) {
		rr := testutil.DoRequest(f.public, testutil.NewRequest(t, http.MethodGet, "/verify/hash/"+f.draft.FileHash))
		testutil.AssertStatusOK(t, rr)
		verdict := testutil.UnmarshalResponse[models.Verdict](t, rr)
		assert.Equal(t, models.StatusUnsigned, verdict.Status)
		assert.False(t, verdict.Verified)
		assert.Nil(t, verdict.SignatureValid)
	})

	t.Run("status", func(t *testing.T) {
		rr := testutil.DoRequest(f.public, testutil.NewRequest(t, http.MethodGet, "/verify/"+f.draft.ID.String()+"/status"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "UNSIGNED")
	})

	t.Run("unknown document is a verdict not an error", func(t *testing.T) {
		rr := testutil.DoRequest(f.public, testutil.NewRequest(t, http.MethodGet, "/verify/"+uuid.NewString()))
		testutil.AssertStatusOK(t, rr)
		verdict := testutil.UnmarshalResponse[models.Verdict](t, rr)
		assert.Equal(t, models.StatusNotFound, verdict.Status)
		assert.Equal(t, "Document not found", verdict.Message)
		assert.Nil(t, verdict.Document)
	})

	t.Run("identifier that is not a document id", func(t *testing.T) {
		rr := testutil.DoRequest(f.public, testutil.NewRequest(t, http.MethodGet, "/verify/not-a-uuid"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "NOT_FOUND")

		rr = testutil.DoRequest(f.public, testutil.NewJSONRequest(t, http.MethodPost, "/verify/qr",
			models.QRRequest{QRData: "https://verify.example.com/verify/not-a-uuid"}))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "NOT_FOUND")
	})

	assert.Equal(t, 7, f.records.Count())
}

func TestPublicVerificationRejectsMalformedInput(t *testing.T) {
	f := newFixture(t, authz.Principal{})

	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
		code   string
	}{
		{"malformed hash", func(t *testing.T) *http.Request {
			return testutil.NewRequest(t, http.MethodGet, "/verify/hash/xyz")
		}, http.StatusBadRequest, "validation_error"},
		{"empty qr payload", func(t *testing.T) *http.Request {
			return testutil.NewJSONRequest(t, http.MethodPost, "/verify/qr", models.QRRequest{})
		}, http.StatusBadRequest, "bad_request"},
		{"malformed qr url", func(t *testing.T) *http.Request {
			return testutil.NewJSONRequest(t, http.MethodPost, "/verify/qr", models.QRRequest{QRData: "http://[::1"})
		}, http.StatusBadRequest, "bad_request"},
		{"qr without document id", func(t *testing.T) *http.Request {
			return testutil.NewJSONRequest(t, http.MethodPost, "/verify/qr", models.QRRequest{QRData: "https://verify.example.com/"})
		}, http.StatusBadRequest, "bad_request"},
		{"qr body with unknown fields", func(t *testing.T) *http.Request {
			return testutil.NewRequestWithBody(t, http.MethodPost, "/verify/qr", `{"qr":"x"}`)
		}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(f.public, tt.req(t))
			testutil.AssertStatusAndError(t, rr, tt.status, tt.code)
		})
	}
	assert.Equal(t, 0, f.records.Count())
}

func TestVerificationHistory(t *testing.T) {
	t.Run("organization admin lists records", func(t *testing.T) {
		f := newFixture(t, testutil.NewPrincipal(id.OrganizationID{}, authz.RoleOrganizationAdmin))
		for range 3 {
			testutil.AssertStatusOK(t, testutil.DoRequest(f.public, testutil.NewRequest(t, http.MethodGet, "/verify/"+f.signed.ID.String())))
		}

		rr := testutil.DoRequest(f.private, testutil.NewRequest(t, http.MethodGet, "/documents/"+f.signed.ID.String()+"/verifications?limit=2"))
		testutil.AssertStatusOK(t, rr)
		page := testutil.UnmarshalResponse[docmodels.Page[models.RecordView]](t, rr)
		assert.Equal(t, 3, page.Total)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, f.signed.ID.String(), page.Items[0].DocumentID)
	})

	t.Run("verifier from the organization is forbidden", func(t *testing.T) {
		f := newFixture(t, testutil.NewPrincipal(id.OrganizationID{}, authz.RoleVerifier))
		rr := testutil.DoRequest(f.private, testutil.NewRequest(t, http.MethodGet, "/documents/"+f.signed.ID.String()+"/verifications"))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("malformed paging", func(t *testing.T) {
		f := newFixture(t, testutil.NewPrincipal(id.OrganizationID{}, authz.RoleOrganizationAdmin))
		rr := testutil.DoRequest(f.private, testutil.NewRequest(t, http.MethodGet, "/documents/"+f.signed.ID.String()+"/verifications?page=x"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}
