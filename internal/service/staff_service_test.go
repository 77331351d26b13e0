package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-ops/internal/domain"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

func codeOf(err error) string {
	return apperrors.ToDomainError(err).Code
}

func TestHireCreatesRecordAndSyncsRole(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	e.platform.AddMember(guildID, newcomerID)
	ctx := context.Background()

	res, err := e.staff.Hire(ctx, as(partnerID), HireRequest{
		UserID:   newcomerID,
		Username: "fresh_hire",
		Role:     domain.StaffRoleJuniorAssociate,
		Reason:   "passed the bar",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusActive, res.Staff.Status)
	require.Len(t, res.Staff.PromotionHistory, 1)
	assert.Equal(t, domain.ActionHire, res.Staff.PromotionHistory[0].ActionType)
	require.NotNil(t, res.Sync)
	assert.Equal(t, []string{"role-ja"}, res.Sync.Added)
	assert.Equal(t, []string{"role-ja"}, e.platform.MemberRoles(guildID, newcomerID))

	entries, err := e.store.Audit.ListByTarget(ctx, guildID, newcomerID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditStaffHired, entries[0].Action)
	assert.Equal(t, domain.AuditRoleSynced, entries[1].Action)

	_, err = e.staff.Hire(ctx, as(partnerID), HireRequest{UserID: newcomerID, Username: "fresh_hire", Role: domain.StaffRoleParalegal})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, codeOf(err))
}

func TestHireRequiresSeniorStaff(t *testing.T) {
	e := newEnv(t)
	e.seed(t, lawyerA, domain.StaffRoleJuniorPartner, time.Now())

	res, err := e.staff.Hire(context.Background(), as(lawyerA), HireRequest{
		UserID:   newcomerID,
		Username: "fresh_hire",
		Role:     domain.StaffRoleParalegal,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
	assert.False(t, res.Validation.Valid)
}

func TestHireRoleLimitAndOwnerBypass(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	last := domain.StaffRoleParalegal.MaxCount() - 1
	for i := 0; i < last; i++ {
		e.seed(t, fmt.Sprintf("2000000000000000%02d", i), domain.StaffRoleParalegal, time.Now())
	}
	ctx := context.Background()

	filled, err := e.staff.Hire(ctx, as(partnerID), HireRequest{
		UserID:   fmt.Sprintf("2000000000000000%02d", last),
		Username: "last_seat",
		Role:     domain.StaffRoleParalegal,
	})
	require.NoError(t, err)
	require.Len(t, filled.Staff.PromotionHistory, 1)
	hire := filled.Staff.PromotionHistory[0]
	assert.Equal(t, domain.ActionHire, hire.ActionType)
	assert.Equal(t, domain.StaffRoleParalegal, hire.FromRole)
	assert.Equal(t, domain.StaffRoleParalegal, hire.ToRole)

	req := HireRequest{UserID: newcomerID, Username: "one_too_many", Role: domain.StaffRoleParalegal, Bypass: true}
	_, err = e.staff.Hire(ctx, as(partnerID), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRoleLimit, codeOf(err))
	assert.Contains(t, err.Error(), "10")
	assert.Contains(t, err.Error(), "Paralegal")

	res, err := e.staff.Hire(ctx, asOwner(), req)
	require.NoError(t, err)
	assert.True(t, res.Validation.BypassAvailable)

	count, err := e.store.Staff.CountByRole(ctx, guildID, domain.StaffRoleParalegal)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
}

func TestSecondManagingPartnerRejectedEvenWithBypass(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleManagingPartner, time.Now())

	_, err := e.staff.Hire(context.Background(), asOwner(), HireRequest{
		UserID:   newcomerID,
		Username: "usurper",
		Role:     domain.StaffRoleManagingPartner,
		Bypass:   true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRoleLimit, codeOf(err))
}

func TestPromoteToNextRank(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	ctx := context.Background()

	res, err := e.staff.Promote(ctx, as(partnerID), RoleChangeRequest{UserID: lawyerA, Reason: "strong quarter"})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffRoleSeniorAssociate, res.Staff.Role)
	require.Len(t, res.Staff.PromotionHistory, 1)
	assert.Equal(t, domain.StaffRoleJuniorAssociate, res.Staff.PromotionHistory[0].FromRole)
	assert.Equal(t, []string{"role-sa"}, e.platform.MemberRoles(guildID, lawyerA))

	_, err = e.staff.Promote(ctx, as(partnerID), RoleChangeRequest{UserID: lawyerA, Role: domain.StaffRoleSeniorPartner})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
}

func TestDemoteRequiresBypassForOwnerWithoutRank(t *testing.T) {
	e := newEnv(t)
	e.seed(t, lawyerA, domain.StaffRoleSeniorAssociate, time.Now())
	ctx := context.Background()

	_, err := e.staff.Demote(ctx, asOwner(), RoleChangeRequest{UserID: lawyerA})
	require.Error(t, err)

	res, err := e.staff.Demote(ctx, asOwner(), RoleChangeRequest{UserID: lawyerA, Bypass: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffRoleJuniorAssociate, res.Staff.Role)
}

func TestFireBlockedWhileOnActiveCase(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	ctx := context.Background()
	c := &domain.Case{
		GuildID:           guildID,
		CaseNumber:        "2026-0001",
		ClientID:          clientID,
		Title:             "Estate",
		Status:            domain.CaseStatusInProgress,
		AssignedLawyerIDs: []string{lawyerA},
	}
	require.NoError(t, e.store.Cases.Create(ctx, c))

	_, err := e.staff.Fire(ctx, as(partnerID), FireRequest{UserID: lawyerA, Reason: "misconduct"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	c.Status = domain.CaseStatusClosed
	require.NoError(t, e.store.Cases.Update(ctx, c))

	res, err := e.staff.Fire(ctx, as(partnerID), FireRequest{UserID: lawyerA, Reason: "misconduct"})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusTerminated, res.Staff.Status)
	assert.Empty(t, e.platform.MemberRoles(guildID, lawyerA))

	_, err = e.staff.Fire(ctx, as(partnerID), FireRequest{UserID: lawyerA})
	require.Error(t, err)
}

func TestHireAfterFireIsRejected(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	e.seed(t, lawyerA, domain.StaffRoleParalegal, time.Now())
	ctx := context.Background()

	_, err := e.staff.Fire(ctx, as(partnerID), FireRequest{UserID: lawyerA})
	require.NoError(t, err)

	_, err = e.staff.Hire(ctx, as(partnerID), HireRequest{UserID: lawyerA, Username: "back_again", Role: domain.StaffRoleJuniorAssociate})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeConflict, de.Code)
	assert.Contains(t, de.Message, "terminated")

	stored, err := e.store.Staff.FindByUser(ctx, guildID, lawyerA)
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusTerminated, stored.Status)
	assert.Equal(t, domain.StaffRoleParalegal, stored.Role)
	require.Len(t, stored.PromotionHistory, 1)
	assert.Equal(t, domain.ActionFire, stored.PromotionHistory[0].ActionType)
}

func TestReactivationRespectsRankLimit(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	var paralegals []string
	for i := 0; i < domain.StaffRoleParalegal.MaxCount(); i++ {
		id := fmt.Sprintf("2000000000000000%02d", i)
		e.seed(t, id, domain.StaffRoleParalegal, time.Now())
		paralegals = append(paralegals, id)
	}
	ctx := context.Background()
	onLeave := paralegals[0]

	res, err := e.staff.SetStatus(ctx, as(partnerID), StatusChangeRequest{UserID: onLeave, Status: domain.StaffStatusInactive, Reason: "leave"})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusInactive, res.Staff.Status)
	assert.Empty(t, e.platform.MemberRoles(guildID, onLeave))

	_, err = e.staff.Hire(ctx, as(partnerID), HireRequest{UserID: newcomerID, Username: "cover_hire", Role: domain.StaffRoleParalegal})
	require.NoError(t, err)

	_, err = e.staff.SetStatus(ctx, as(partnerID), StatusChangeRequest{UserID: onLeave, Status: domain.StaffStatusActive})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRoleLimit, codeOf(err))

	count, err := e.store.Staff.CountByRole(ctx, guildID, domain.StaffRoleParalegal)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	stored, err := e.store.Staff.FindByUser(ctx, guildID, onLeave)
	require.NoError(t, err)
	err = e.store.Staff.SetStatus(ctx, stored, domain.StaffStatusActive, domain.StaffRoleParalegal.MaxCount())
	assert.True(t, errors.Is(err, apperrors.ErrRoleLimitReached))

	res, err = e.staff.SetStatus(ctx, asOwner(), StatusChangeRequest{UserID: onLeave, Status: domain.StaffStatusActive, Bypass: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusActive, res.Staff.Status)
	assert.True(t, res.Validation.BypassAvailable)

	entries, err := e.store.Audit.ListByTarget(ctx, guildID, onLeave)
	require.NoError(t, err)
	var changes int
	for _, entry := range entries {
		if entry.Action == domain.AuditStaffStatusChanged {
			changes++
		}
	}
	assert.Equal(t, 2, changes)
}

func TestSetStatusRejectsInvalidTransitions(t *testing.T) {
	e := newEnv(t)
	e.seed(t, partnerID, domain.StaffRoleSeniorPartner, time.Now())
	e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	e.seed(t, lawyerB, domain.StaffRoleJuniorAssociate, time.Now())
	ctx := context.Background()

	_, err := e.staff.SetStatus(ctx, as(partnerID), StatusChangeRequest{UserID: lawyerA, Status: domain.StaffStatusActive})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	_, err = e.staff.SetStatus(ctx, as(partnerID), StatusChangeRequest{UserID: lawyerA, Status: domain.StaffStatusTerminated})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	_, err = e.staff.SetStatus(ctx, as(lawyerA), StatusChangeRequest{UserID: lawyerB, Status: domain.StaffStatusInactive})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	_, err = e.staff.Fire(ctx, as(partnerID), FireRequest{UserID: lawyerA})
	require.NoError(t, err)
	_, err = e.staff.SetStatus(ctx, as(partnerID), StatusChangeRequest{UserID: lawyerA, Status: domain.StaffStatusActive})
	require.Error(t, err)

	stored, err := e.store.Staff.FindByUser(ctx, guildID, lawyerA)
	require.NoError(t, err)
	assert.Equal(t, domain.StaffStatusTerminated, stored.Status)
}
