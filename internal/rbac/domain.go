package rbac

import (
	"fmt"
	"strings"

	"github.com/staffdir/staffdir/internal/shared"
)

// Role is a member of the closed role enumeration.
type Role string

// Capability is a named permission flag checked independently of any other.
type Capability string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleHR         Role = "hr"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// Capability names are part of the API contract; call sites request them
// by these exact strings.
const (
	CanCreateUsers       Capability = "canCreateUsers"
	CanDeleteUsers       Capability = "canDeleteUsers"
	CanManageRoles       Capability = "canManageRoles"
	CanViewAllStaff      Capability = "canViewAllStaff"
	CanCreateStaff       Capability = "canCreateStaff"
	CanEditStaff         Capability = "canEditStaff"
	CanDeleteStaff       Capability = "canDeleteStaff"
	CanBypassPIN         Capability = "canBypassPIN"
	CanResetPIN          Capability = "canResetPIN"
	CanViewAuditLogs     Capability = "canViewAuditLogs"
	CanManageDepartments Capability = "canManageDepartments"
)

// Roles lists the enumeration in declaration order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleHR, RoleStaff, RoleViewer}
}

// AllCapabilities lists every declared capability in declaration order.
func AllCapabilities() []Capability {
	return []Capability{
		CanCreateUsers,
		CanDeleteUsers,
		CanManageRoles,
		CanViewAllStaff,
		CanCreateStaff,
		CanEditStaff,
		CanDeleteStaff,
		CanBypassPIN,
		CanResetPIN,
		CanViewAuditLogs,
		CanManageDepartments,
	}
}

// Valid reports whether r belongs to the enumeration.
func (r Role) Valid() bool {
	_, ok := matrix[r]
	return ok
}

// ParseRole converts a raw value into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	if !role.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q: %w", raw, shared.ErrValidation)
	}
	return role, nil
}

// Principal describes the authenticated actor. It never carries the
// credential secret.
type Principal struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`

	SessionID string `json:"-"`
	Token     string `json:"-"`
}

// GetID returns the identity id.
func (p Principal) GetID() int64 {
	return p.ID
}

// IsSuperUser reports whether the principal is a super admin.
func (p Principal) IsSuperUser() bool {
	return p.Role == RoleSuperAdmin
}
