package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchyLevelsAndLimits(t *testing.T) {
	cases := []struct {
		role  StaffRole
		level int
		max   int
	}{
		{StaffRoleParalegal, 1, 10},
		{StaffRoleJuniorAssociate, 2, 10},
		{StaffRoleSeniorAssociate, 3, 10},
		{StaffRoleJuniorPartner, 4, 5},
		{StaffRoleSeniorPartner, 5, 3},
		{StaffRoleManagingPartner, 6, 1},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.level, tc.role.Level())
			assert.Equal(t, tc.max, tc.role.MaxCount())
			assert.True(t, tc.role.IsValid())
		})
	}

	unknown := StaffRole("Intern")
	assert.Zero(t, unknown.Level())
	assert.Zero(t, unknown.MaxCount())
	assert.False(t, unknown.IsValid())
}

func TestAllStaffRolesOrdered(t *testing.T) {
	roles := AllStaffRoles()
	require.Len(t, roles, MaxRoleLevel)
	for i, r := range roles {
		assert.Equal(t, i+1, r.Level())
	}
}

func TestParseStaffRole(t *testing.T) {
	r, ok := ParseStaffRole("  senior partner ")
	require.True(t, ok)
	assert.Equal(t, StaffRoleSeniorPartner, r)

	_, ok = ParseStaffRole("partner")
	assert.False(t, ok)

	assert.True(t, IsValidRole("Junior Associate"))
	assert.False(t, IsValidRole("junior associate"))
}

func TestPromotionNeighbours(t *testing.T) {
	next, ok := StaffRoleParalegal.NextPromotion()
	require.True(t, ok)
	assert.Equal(t, StaffRoleJuniorAssociate, next)

	_, ok = StaffRoleManagingPartner.NextPromotion()
	assert.False(t, ok)

	prev, ok := StaffRoleManagingPartner.PreviousDemotion()
	require.True(t, ok)
	assert.Equal(t, StaffRoleSeniorPartner, prev)

	_, ok = StaffRoleParalegal.PreviousDemotion()
	assert.False(t, ok)

	_, ok = StaffRole("nope").NextPromotion()
	assert.False(t, ok)
}

func TestPromotionAuthority(t *testing.T) {
	assert.True(t, CanPromote(StaffRoleSeniorPartner, StaffRoleJuniorPartner))
	assert.True(t, CanPromote(StaffRoleManagingPartner, StaffRoleSeniorPartner))
	assert.False(t, CanPromote(StaffRoleSeniorPartner, StaffRoleSeniorPartner))
	assert.False(t, CanPromote(StaffRoleJuniorPartner, StaffRoleParalegal))
	assert.False(t, CanDemote("", StaffRoleParalegal))
}

func TestManagementTier(t *testing.T) {
	assert.False(t, StaffRoleSeniorAssociate.IsManagement())
	assert.True(t, StaffRoleJuniorPartner.IsManagement())
	assert.True(t, StaffRoleManagingPartner.IsManagement())
}

func TestPermissionsForRole(t *testing.T) {
	assert.Empty(t, PermissionsForRole(StaffRoleParalegal))
	assert.True(t, RoleHasPermission(StaffRoleJuniorAssociate, PermissionLawyer))
	assert.False(t, RoleHasPermission(StaffRoleJuniorAssociate, PermissionLeadAttorney))
	assert.True(t, RoleHasPermission(StaffRoleSeniorPartner, PermissionSeniorStaff))
	assert.False(t, RoleHasPermission(StaffRoleSeniorPartner, PermissionAdmin))
	assert.True(t, RoleHasPermission(StaffRoleManagingPartner, PermissionAdmin))
}

func TestConflictToRemoveKeepsHighest(t *testing.T) {
	mp := RoleMapping{RoleID: "r6", Staff: StaffRoleManagingPartner}
	pl := RoleMapping{RoleID: "r1", Staff: StaffRoleParalegal}
	c := RoleConflict{Conflicting: []RoleMapping{pl, mp}, Highest: mp}
	assert.Equal(t, []RoleMapping{pl}, c.ToRemove())
}

func TestCanBypass(t *testing.T) {
	assert.True(t, PermissionContext{IsGuildOwner: true}.CanBypass())
	assert.True(t, PermissionContext{IsAdmin: true}.CanBypass())
	assert.False(t, PermissionContext{}.CanBypass())
}

func TestStaffStatusTransitions(t *testing.T) {
	assert.True(t, StaffStatusActive.CanTransitionTo(StaffStatusInactive))
	assert.True(t, StaffStatusInactive.CanTransitionTo(StaffStatusActive))
	assert.True(t, StaffStatusActive.CanTransitionTo(StaffStatusTerminated))
	assert.False(t, StaffStatusTerminated.CanTransitionTo(StaffStatusActive))

	var missing *Staff
	assert.False(t, missing.IsActive())
}
