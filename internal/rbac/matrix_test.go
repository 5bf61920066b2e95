package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsMatchesGrantTable(t *testing.T) {
	const (
		y = true
		n = false
	)
	// columns: super_admin, admin, hr, staff, viewer
	table := map[Capability][5]bool{
		CanCreateUsers:       {y, n, n, n, n},
		CanDeleteUsers:       {y, n, n, n, n},
		CanManageRoles:       {y, n, n, n, n},
		CanViewAllStaff:      {y, y, y, n, n},
		CanCreateStaff:       {y, y, y, n, n},
		CanEditStaff:         {y, y, y, n, n},
		CanDeleteStaff:       {y, y, n, n, n},
		CanBypassPIN:         {y, y, n, n, n},
		CanResetPIN:          {y, y, y, n, n},
		CanViewAuditLogs:     {y, y, y, n, n},
		CanManageDepartments: {y, y, n, n, n},
	}
	require.Len(t, table, len(AllCapabilities()))

	for capability, grants := range table {
		for i, role := range Roles() {
			assert.Equalf(t, grants[i], Allows(role, capability), "%s/%s", role, capability)
		}
	}
}

func TestAllowsFailsClosedForUnknowns(t *testing.T) {
	assert.False(t, Allows(Role("root"), CanCreateUsers))
	assert.False(t, Allows(RoleSuperAdmin, Capability("canLaunchMissiles")))
	assert.False(t, Allows(Role(""), Capability("")))
	assert.NotPanics(t, func() { Allows(Role("x"), Capability("y")) })
}

func TestCapabilitiesForReadOnlyRoles(t *testing.T) {
	assert.Empty(t, Capabilities(RoleStaff))
	assert.Empty(t, Capabilities(RoleViewer))
	assert.Equal(t, AllCapabilities(), Capabilities(RoleSuperAdmin))
	assert.Equal(t, []Capability{
		CanViewAllStaff, CanCreateStaff, CanEditStaff, CanResetPIN, CanViewAuditLogs,
	}, Capabilities(RoleHR))
}

func TestGrantsIsTotal(t *testing.T) {
	for _, role := range Roles() {
		grants := Grants(role)
		assert.Len(t, grants, len(AllCapabilities()), role)
	}
	assert.Len(t, Grants(Role("ghost")), len(AllCapabilities()))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("hr")
	require.NoError(t, err)
	assert.Equal(t, RoleHR, role)

	_, err = ParseRole("HR")
	assert.Error(t, err)
	_, err = ParseRole("owner")
	assert.Error(t, err)
}
