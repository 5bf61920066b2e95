package rbac

// matrix is the role to capability grant table. Adding a role or a
// capability is a table edit; absent entries are denials.
var matrix = map[Role]map[Capability]bool{
	RoleSuperAdmin: {
		CanCreateUsers:       true,
		CanDeleteUsers:       true,
		CanManageRoles:       true,
		CanViewAllStaff:      true,
		CanCreateStaff:       true,
		CanEditStaff:         true,
		CanDeleteStaff:       true,
		CanBypassPIN:         true,
		CanResetPIN:          true,
		CanViewAuditLogs:     true,
		CanManageDepartments: true,
	},
	RoleAdmin: {
		CanCreateUsers:       false,
		CanDeleteUsers:       false,
		CanManageRoles:       false,
		CanViewAllStaff:      true,
		CanCreateStaff:       true,
		CanEditStaff:         true,
		CanDeleteStaff:       true,
		CanBypassPIN:         true,
		CanResetPIN:          true,
		CanViewAuditLogs:     true,
		CanManageDepartments: true,
	},
	RoleHR: {
		CanCreateUsers:       false,
		CanDeleteUsers:       false,
		CanManageRoles:       false,
		CanViewAllStaff:      true,
		CanCreateStaff:       true,
		CanEditStaff:         true,
		CanDeleteStaff:       false,
		CanBypassPIN:         false,
		CanResetPIN:          true,
		CanViewAuditLogs:     true,
		CanManageDepartments: false,
	},
	// staff and viewer hold no capabilities.
	RoleStaff:  {},
	RoleViewer: {},
}

// Allows reports whether role holds capability. Unknown roles and
// unknown capabilities resolve to false.
func Allows(role Role, capability Capability) bool {
	grants, ok := matrix[role]
	if !ok {
		return false
	}
	return grants[capability]
}

// Capabilities returns the capabilities granted to role.
func Capabilities(role Role) []Capability {
	granted := make([]Capability, 0, len(matrix[role]))
	for _, c := range AllCapabilities() {
		if Allows(role, c) {
			granted = append(granted, c)
		}
	}
	return granted
}

// Grants returns the full boolean view for role, one entry per declared
// capability.
func Grants(role Role) map[Capability]bool {
	out := make(map[Capability]bool, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		out[c] = Allows(role, c)
	}
	return out
}
