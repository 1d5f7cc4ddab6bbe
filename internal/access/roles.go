// Package access decides what a session may do: a role/capability table and
// the per-request gate for admin and content-mutation routes.
package access

import "strings"

// Role is the authorization level carried by a session.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RolePastor Role = "PASTOR"
	RoleStaff  Role = "STAFF"
	RoleMember Role = "MEMBER"
)

// ParseRole normalizes a role claim. Unknown claims map to "".
func ParseRole(s string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RolePastor, RoleStaff, RoleMember:
		return r
	default:
		return ""
	}
}

// Capability is something a role may be allowed to do.
type Capability string

const (
	// CapAdminArea grants the administrative dashboard and its APIs.
	CapAdminArea Capability = "admin_area"
	// CapManageContent grants create/update/delete on public content.
	CapManageContent Capability = "manage_content"
	// CapViewInactive grants listings that include inactive records.
	CapViewInactive Capability = "view_inactive"
)

var capabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapAdminArea:     true,
		CapManageContent: true,
		CapViewInactive:  true,
	},
	RolePastor: {
		CapManageContent: true,
		CapViewInactive:  true,
	},
	RoleStaff: {
		CapManageContent: true,
		CapViewInactive:  true,
	},
	RoleMember: {},
}

// Can reports whether role holds capability.
func Can(role Role, capability Capability) bool {
	return capabilities[role][capability]
}

// Session is the authenticated principal of a request.
type Session struct {
	UserID string
	Role   Role
}

// Can is nil-safe: a missing session holds no capability.
func (s *Session) Can(capability Capability) bool {
	if s == nil {
		return false
	}
	return Can(s.Role, capability)
}
