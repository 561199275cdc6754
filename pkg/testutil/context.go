package testutil

import (
	"net/http"

	"github.com/google/uuid"

	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	"docsign/pkg/requestcontext"
)

// WithPrincipal attaches p to the request context, as the auth middleware
// does for authenticated requests.
func WithPrincipal(req *http.Request, p authz.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// PrincipalMiddleware injects p into every request. Use it in place of the
// JWT middleware when testing handlers directly.
func PrincipalMiddleware(p authz.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithPrincipal(r, p))
		})
	}
}

// NewPrincipal builds a principal with fresh ids for the given roles.
func NewPrincipal(orgID id.OrganizationID, roles ...authz.Role) authz.Principal {
	return authz.Principal{
		UserID:         id.UserID(uuid.New()),
		OrganizationID: orgID,
		Roles:          roles,
	}
}
