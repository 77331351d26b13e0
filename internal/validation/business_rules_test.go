package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-ops/internal/domain"
)

func TestValidateRoleLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("room left", func(t *testing.T) {
		f := newFixture(t)
		f.hireMany(t, domain.StaffRoleParalegal, 9)

		res := f.rules.ValidateRoleLimit(ctx, actor("sp"), domain.StaffRoleParalegal)
		assert.True(t, res.Valid)
		assert.Equal(t, 9, res.CurrentCount)
		assert.Equal(t, 10, res.MaxCount)
	})

	t.Run("full without bypass", func(t *testing.T) {
		f := newFixture(t)
		f.hireMany(t, domain.StaffRoleParalegal, 10)

		res := f.rules.ValidateRoleLimit(ctx, actor("sp"), domain.StaffRoleParalegal)
		assert.False(t, res.Valid)
		assert.False(t, res.BypassAvailable)
		assert.Contains(t, res.Error, "10/10")
	})

	t.Run("full with owner bypass", func(t *testing.T) {
		f := newFixture(t)
		f.hireMany(t, domain.StaffRoleManagingPartner, 1)

		res := f.rules.ValidateRoleLimit(ctx, owner("boss"), domain.StaffRoleManagingPartner)
		assert.False(t, res.Valid)
		assert.True(t, res.BypassAvailable)

		unified := RoleLimitAsResult(res, domain.StaffRoleManagingPartner)
		assert.True(t, unified.HasCode(CodeRoleLimitExceeded))
		assert.True(t, unified.CanProceed(true))
		assert.False(t, unified.CanProceed(false))
	})

	t.Run("unknown role", func(t *testing.T) {
		f := newFixture(t)
		res := f.rules.ValidateRoleLimit(ctx, actor("sp"), "Intern")
		assert.False(t, res.Valid)
		assert.Zero(t, res.MaxCount)
		assert.True(t, RoleLimitAsResult(res, "Intern").HasCode(CodeInvalidRole))
	})
}

func TestValidateClientCaseLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("below warning threshold", func(t *testing.T) {
		f := newFixture(t)
		f.openCase(t, "client", nil, "")
		f.openCase(t, "client", nil, "")

		res := f.rules.ValidateClientCaseLimit(ctx, "client", testGuild)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Warning)
	})

	t.Run("four open cases warns", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 4; i++ {
			f.openCase(t, "client", nil, "")
		}

		res := f.rules.ValidateClientCaseLimit(ctx, "client", testGuild)
		assert.True(t, res.Valid)
		assert.Equal(t, 4, res.CurrentCases)
		assert.NotEmpty(t, res.Warning)

		unified := CaseLimitAsResult(res)
		assert.True(t, unified.Valid)
		assert.True(t, unified.HasCode(CodeCaseLimitApproaching))
	})

	t.Run("five open cases blocks", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			f.openCase(t, "client", nil, "")
		}

		res := f.rules.ValidateClientCaseLimit(ctx, "client", testGuild)
		assert.False(t, res.Valid)
		unified := CaseLimitAsResult(res)
		assert.True(t, unified.HasCode(CodeCaseLimitExceeded))
		assert.False(t, unified.CanProceed(true))
	})

	t.Run("closed cases do not count", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			c := f.openCase(t, "client", nil, "")
			if i == 0 {
				c.Status = domain.CaseStatusClosed
				require.NoError(t, f.store.Cases.Update(ctx, c))
			}
		}
		assert.True(t, f.rules.ValidateClientCaseLimit(ctx, "client", testGuild).Valid)
	})
}

func TestValidateStaffMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.hire(t, "para", domain.StaffRoleParalegal)
	f.hire(t, "sa", domain.StaffRoleSeniorAssociate)

	res := f.rules.ValidateStaffMember(ctx, actor("x"), "sa", domain.PermissionLawyer, domain.PermissionLeadAttorney)
	assert.True(t, res.Valid)

	res = f.rules.ValidateStaffMember(ctx, actor("x"), "para", domain.PermissionLawyer)
	assert.False(t, res.Valid)
	assert.Equal(t, []domain.Permission{domain.PermissionLawyer}, res.MissingPermissions)
	assert.True(t, StaffMemberAsResult(res, "lawyer_id").HasCode(CodeInsufficientPermission))

	res = f.rules.ValidateStaffMember(ctx, actor("x"), "ghost")
	assert.False(t, res.IsStaff)
	assert.True(t, StaffMemberAsResult(res, "lawyer_id").HasCode(CodeStaffNotFound))
}

func TestValidatePromotion(t *testing.T) {
	ctx := context.Background()

	t.Run("senior partner promotes paralegal", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "sp", domain.StaffRoleSeniorPartner)
		f.hire(t, "para", domain.StaffRoleParalegal)

		res := f.rules.ValidatePromotion(ctx, actor("sp"), "para", "")
		assert.True(t, res.Valid, res.ErrorMessage())
		assert.Equal(t, domain.StaffRoleJuniorAssociate, res.Metadata["new_role"])
		assert.Equal(t, domain.StaffRoleParalegal, res.Metadata["current_role"])
	})

	t.Run("cannot promote to own level", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "sp", domain.StaffRoleSeniorPartner)
		f.hire(t, "jp", domain.StaffRoleJuniorPartner)

		res := f.rules.ValidatePromotion(ctx, actor("sp"), "jp", domain.StaffRoleSeniorPartner)
		assert.False(t, res.Valid)
		assert.True(t, res.HasCode(CodeInsufficientAuthority))
		assert.False(t, res.BypassAvailable)
	})

	t.Run("junior partner lacks authority but owner may bypass", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "jp", domain.StaffRoleJuniorPartner)
		f.hire(t, "para", domain.StaffRoleParalegal)

		res := f.rules.ValidatePromotion(ctx, actor("jp"), "para", "")
		assert.True(t, res.HasCode(CodeInsufficientAuthority))
		assert.False(t, res.CanProceed(true))

		res = f.rules.ValidatePromotion(ctx, owner("jp"), "para", "")
		assert.True(t, res.BypassAvailable)
		assert.Equal(t, BypassGuildOwner, res.BypassType)
		assert.True(t, res.CanProceed(true))
	})

	t.Run("demotion direction is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)
		f.hire(t, "sa", domain.StaffRoleSeniorAssociate)

		res := f.rules.ValidatePromotion(ctx, actor("mp"), "sa", domain.StaffRoleParalegal)
		assert.True(t, res.HasCode(CodeInvalidPromotion))
	})

	t.Run("top rank has no next promotion", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)

		res := f.rules.ValidatePromotion(ctx, owner("owner"), "mp", "")
		assert.True(t, res.HasCode(CodeInvalidPromotion))
	})

	t.Run("full target rank is bypassable", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)
		f.hireMany(t, domain.StaffRoleSeniorPartner, 3)
		f.hire(t, "jp", domain.StaffRoleJuniorPartner)

		res := f.rules.ValidatePromotion(ctx, actor("mp"), "jp", "")
		assert.True(t, res.HasCode(CodeRoleLimitExceeded))
		assert.False(t, res.BypassAvailable)
	})
}

func TestValidateDemotion(t *testing.T) {
	ctx := context.Background()

	t.Run("manager with active cases", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)
		f.hire(t, "jp", domain.StaffRoleJuniorPartner)
		f.openCase(t, "client", []string{"jp"}, "jp")

		res := f.rules.ValidateDemotion(ctx, actor("mp"), "jp", "")
		assert.False(t, res.Valid)
		assert.True(t, res.HasCode(CodeManagerHasActiveCases))
	})

	t.Run("manager without cases", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)
		f.hire(t, "jp", domain.StaffRoleJuniorPartner)

		res := f.rules.ValidateDemotion(ctx, actor("mp"), "jp", "")
		assert.True(t, res.Valid, res.ErrorMessage())
		assert.Equal(t, domain.StaffRoleSeniorAssociate, res.Metadata["new_role"])
	})

	t.Run("paralegal cannot go lower", func(t *testing.T) {
		f := newFixture(t)
		f.hire(t, "mp", domain.StaffRoleManagingPartner)
		f.hire(t, "para", domain.StaffRoleParalegal)

		res := f.rules.ValidateDemotion(ctx, actor("mp"), "para", "")
		assert.True(t, res.HasCode(CodeInvalidDemotion))
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		res := f.rules.ValidateDemotion(ctx, actor("mp"), "ghost", "")
		require.False(t, res.Valid)
		assert.True(t, res.HasCode(CodeStaffNotFound))
	})
}

func TestValidateRemoval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.hire(t, "sp", domain.StaffRoleSeniorPartner)
	f.hire(t, "sa", domain.StaffRoleSeniorAssociate)
	f.hire(t, "jp", domain.StaffRoleJuniorPartner)

	assert.True(t, f.rules.ValidateRemoval(ctx, actor("sp"), "sa").Valid)

	res := f.rules.ValidateRemoval(ctx, actor("sp"), "sp")
	assert.True(t, res.HasCode(CodeInsufficientAuthority))

	res = f.rules.ValidateRemoval(ctx, actor("jp"), "sa")
	assert.True(t, res.HasCode(CodeInsufficientAuthority))
	assert.False(t, res.BypassAvailable)

	res = f.rules.ValidateRemoval(ctx, owner("outsider"), "sa")
	assert.True(t, res.CanProceed(true))
}
