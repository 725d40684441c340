package auth

import "strings"

// Role is a user's role inside an organization
type Role string

const (
	// RoleOwner can do everything, including billing
	RoleOwner Role = "owner"

	// RoleAdmin manages the organization's configuration
	RoleAdmin Role = "admin"

	// RoleMember runs analyses
	RoleMember Role = "member"

	// RoleViewer has read-only access
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// ParseRole normalizes a stored role name. Unknown names yield the empty role.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return ""
	}
	return r
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a known role
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasPermission reports whether r is at least as privileged as required.
func (r Role) HasPermission(required Role) bool {
	return r.IsValid() && roleRank[r] >= roleRank[required]
}

// CanConfigureProviders reports whether the role may change provider configuration.
func (r Role) CanConfigureProviders() bool {
	return r.HasPermission(RoleAdmin)
}
