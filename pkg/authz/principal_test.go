package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

func TestPrincipal_IsAdminOf(t *testing.T) {
	orgA := id.OrganizationID(uuid.New())
	orgB := id.OrganizationID(uuid.New())

	t.Run("system admin administers every organization", func(t *testing.T) {
		p := Principal{UserID: id.UserID(uuid.New()), Roles: []Role{RoleSystemAdmin}}
		assert.True(t, p.IsAdminOf(orgA))
		assert.True(t, p.IsAdminOf(orgB))
	})

	t.Run("organization admin is scoped to own organization", func(t *testing.T) {
		p := Principal{UserID: id.UserID(uuid.New()), OrganizationID: orgA, Roles: []Role{RoleOrganizationAdmin}}
		assert.True(t, p.IsAdminOf(orgA))
		assert.False(t, p.IsAdminOf(orgB))
	})

	t.Run("issuer is not an admin", func(t *testing.T) {
		p := Principal{UserID: id.UserID(uuid.New()), OrganizationID: orgA, Roles: []Role{RoleIssuer}}
		assert.False(t, p.IsAdminOf(orgA))
	})
}

func TestPrincipal_RequireAny(t *testing.T) {
	t.Run("anonymous is unauthorized", func(t *testing.T) {
		err := Principal{}.RequireAny(RoleIssuer)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		p := Principal{UserID: id.UserID(uuid.New()), Roles: []Role{RoleVerifier}}
		err := p.RequireAny(RoleIssuer, RoleOrganizationAdmin)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("matching role passes", func(t *testing.T) {
		p := Principal{UserID: id.UserID(uuid.New()), Roles: []Role{RoleVerifier, RoleIssuer}}
		assert.NoError(t, p.RequireAny(RoleIssuer))
	})
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" issuer ")
	assert.True(t, ok)
	assert.Equal(t, RoleIssuer, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}
