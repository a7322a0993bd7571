package models

import "strings"

// AuthorizationMode defines how the system behaves when no explicit role set is defined for an endpoint
type AuthorizationMode string

const (
	// AuthorizationModeFailClosed - deny all access to undefined endpoints (default)
	AuthorizationModeFailClosed AuthorizationMode = "fail_closed"

	// AuthorizationModeFailOpenAdmin - allow Admin users on undefined endpoints, deny others
	AuthorizationModeFailOpenAdmin AuthorizationMode = "fail_open_admin"
)

// Role represents member roles in the system. There is no role hierarchy:
// each endpoint enumerates the exact set of roles it allows.
type Role string

const (
	RoleMember    Role = "Member"
	RoleLibrarian Role = "Librarian"
	RoleAdmin     Role = "Admin"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleLibrarian || r == RoleAdmin
}

// In reports whether the role is a member of the given set
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// EndpointRoles declares the allowed role set for one endpoint.
// A trailing "*" in Path matches any suffix (title-parameterized routes).
type EndpointRoles struct {
	Method string
	Path   string
	Roles  []Role
}

// staffRoles is spelled out per endpoint below; grouping is a notational
// convenience only and implies no hierarchy.
var staffRoles = []Role{RoleAdmin, RoleLibrarian}

// EndpointRoleSets maps every protected endpoint to its explicit allowed-role set.
// Public endpoints (register, login, logout, landing, health, metrics) are not
// listed; they bypass authentication entirely.
var EndpointRoleSets = []EndpointRoles{
	{"GET", "/member_dashboard/", []Role{RoleMember}},

	{"GET", "/librarian_dashboard", staffRoles},
	{"GET", "/available_books/", staffRoles},

	{"GET", "/add_book/", staffRoles},
	{"POST", "/add_book/", staffRoles},
	{"GET", "/add_category/", staffRoles},
	{"POST", "/add_category/", staffRoles},
	{"GET", "/add_author/", staffRoles},
	{"POST", "/add_author/", staffRoles},
	{"GET", "/add_copies/", staffRoles},
	{"POST", "/add_copies/", staffRoles},

	{"GET", "/borrow_book/*", staffRoles},
	{"POST", "/borrow_book/*", staffRoles},
	{"POST", "/return_book/*", staffRoles},
	{"GET", "/book_overdue/", staffRoles},
	{"GET", "/books_issued_by_members/", staffRoles},
	{"GET", "/book_late/*", staffRoles},
	{"POST", "/book_late/*", staffRoles},
}

// FindEndpointRoles looks up the declared role set for a method and path
func FindEndpointRoles(method, path string) (EndpointRoles, bool) {
	for _, ep := range EndpointRoleSets {
		if ep.Method != method {
			continue
		}
		if strings.HasSuffix(ep.Path, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(ep.Path, "*")) {
				return ep, true
			}
			continue
		}
		if ep.Path == path {
			return ep, true
		}
	}
	return EndpointRoles{}, false
}
