// Package authz models the authenticated caller passed explicitly into service
// operations, and the role checks shared by every bounded context.
package authz

import (
	"slices"
	"strings"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

// Role is a coarse-grained permission set attached to a principal.
type Role string

const (
	RoleSystemAdmin       Role = "SYSTEM_ADMIN"
	RoleOrganizationAdmin Role = "ORGANIZATION_ADMIN"
	RoleIssuer            Role = "ISSUER"
	RoleVerifier          Role = "VERIFIER"
	RoleDocumentOwner     Role = "DOCUMENT_OWNER"
)

// ParseRole normalizes a role name. Unknown names return false.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleSystemAdmin, RoleOrganizationAdmin, RoleIssuer, RoleVerifier, RoleDocumentOwner:
		return r, true
	}
	return "", false
}

// Principal is the authenticated caller. The zero value is anonymous.
type Principal struct {
	UserID         id.UserID
	OrganizationID id.OrganizationID
	Roles          []Role
}

func (p Principal) IsAnonymous() bool { return p.UserID.IsNil() }

func (p Principal) HasRole(r Role) bool { return slices.Contains(p.Roles, r) }

func (p Principal) IsSystemAdmin() bool { return p.HasRole(RoleSystemAdmin) }

// IsAdminOf reports whether the principal administers orgID, either as a
// system admin or as an organization admin of that organization.
func (p Principal) IsAdminOf(orgID id.OrganizationID) bool {
	if p.IsSystemAdmin() {
		return true
	}
	return p.HasRole(RoleOrganizationAdmin) && !orgID.IsNil() && p.OrganizationID == orgID
}

// RequireAuthenticated rejects anonymous principals.
func (p Principal) RequireAuthenticated() error {
	if p.IsAnonymous() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireAny rejects principals holding none of roles.
func (p Principal) RequireAny(roles ...Role) error {
	if err := p.RequireAuthenticated(); err != nil {
		return err
	}
	for _, r := range roles {
		if p.HasRole(r) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "insufficient role")
}
