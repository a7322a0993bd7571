package models

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIn(t *testing.T) {
	staff := []Role{RoleAdmin, RoleLibrarian}

	assert.True(t, RoleAdmin.In(staff))
	assert.True(t, RoleLibrarian.In(staff))
	assert.False(t, RoleMember.In(staff))
	assert.False(t, RoleMember.In(nil))
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleMember.IsValid())
	assert.True(t, RoleLibrarian.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("superuser").IsValid())
	assert.False(t, Role("").IsValid())
}

func TestFindEndpointRolesExactPath(t *testing.T) {
	ep, found := FindEndpointRoles(http.MethodGet, "/member_dashboard/")
	require.True(t, found)
	assert.Equal(t, []Role{RoleMember}, ep.Roles)

	_, found = FindEndpointRoles(http.MethodPost, "/member_dashboard/")
	assert.False(t, found)

	_, found = FindEndpointRoles(http.MethodGet, "/nonexistent/")
	assert.False(t, found)
}

func TestFindEndpointRolesWildcard(t *testing.T) {
	ep, found := FindEndpointRoles(http.MethodPost, "/borrow_book/The%20Hobbit/")
	require.True(t, found)
	assert.True(t, RoleLibrarian.In(ep.Roles))
	assert.True(t, RoleAdmin.In(ep.Roles))
	assert.False(t, RoleMember.In(ep.Roles))

	_, found = FindEndpointRoles(http.MethodGet, "/return_book/Dune/")
	assert.False(t, found, "return is POST only")

	ep, found = FindEndpointRoles(http.MethodGet, "/book_late/Dune/")
	require.True(t, found)
	assert.True(t, RoleLibrarian.In(ep.Roles))
}

func TestEveryEndpointDeclaresRoles(t *testing.T) {
	for _, ep := range EndpointRoleSets {
		assert.NotEmptyf(t, ep.Roles, "endpoint %s %s has an empty role set", ep.Method, ep.Path)
		for _, role := range ep.Roles {
			assert.Truef(t, role.IsValid(), "endpoint %s %s names unknown role %q", ep.Method, ep.Path, role)
		}
	}
}
