package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/platform"
)

func TestSyncMemberIsIdempotent(t *testing.T) {
	e := newEnv(t)
	staff := e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	e.platform.AddMember(guildID, lawyerA, rankRoleIDs[domain.StaffRoleParalegal], "role-everyone")
	ctx := context.Background()
	rm, err := e.registry.Get(ctx, guildID)
	require.NoError(t, err)

	outcome, err := e.sync.SyncMember(ctx, rm, staff, ownerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"role-ja"}, outcome.Added)
	assert.Equal(t, []string{"role-para"}, outcome.Removed)
	assert.ElementsMatch(t, []string{"role-everyone", "role-ja"}, e.platform.MemberRoles(guildID, lawyerA))

	stored, err := e.store.Staff.FindByUser(ctx, guildID, lawyerA)
	require.NoError(t, err)
	require.NotNil(t, stored.DiscordRoleID)
	assert.Equal(t, "role-ja", *stored.DiscordRoleID)

	mutations := e.platform.MutationCount()
	outcome, err = e.sync.SyncMember(ctx, rm, stored, ownerID)
	require.NoError(t, err)
	assert.False(t, outcome.Changed())
	assert.Equal(t, mutations, e.platform.MutationCount())
}

func TestSyncMemberStripsTerminatedStaff(t *testing.T) {
	e := newEnv(t)
	staff := e.seed(t, lawyerA, domain.StaffRoleSeniorAssociate, time.Now())
	staff.Status = domain.StaffStatusTerminated
	ctx := context.Background()
	rm, err := e.registry.Get(ctx, guildID)
	require.NoError(t, err)

	outcome, err := e.sync.SyncMember(ctx, rm, staff, ownerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"role-sa"}, outcome.Removed)
	assert.Empty(t, outcome.Added)
	assert.Empty(t, e.platform.MemberRoles(guildID, lawyerA))
}

func TestSyncMemberChannelAccess(t *testing.T) {
	e := newEnv(t)
	syncer := NewRoleSyncService(config.DiscordConfig{ChannelAccess: []config.ChannelAccess{
		{ChannelID: "staff-room", MinLevel: 1},
		{ChannelID: "partners", MinLevel: 4},
	}}, RoleSyncDependencies{Client: e.platform, StaffRepo: e.store.Staff}, zap.NewNop())
	staff := e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	ctx := context.Background()
	rm, err := e.registry.Get(ctx, guildID)
	require.NoError(t, err)

	outcome, err := syncer.SyncMember(ctx, rm, staff, ownerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff-room"}, outcome.ChannelsGranted)
	ow, ok := e.platform.Overwrite("staff-room", lawyerA)
	require.True(t, ok)
	assert.Equal(t, platform.StaffChannelAllow, ow.Allow)
	_, ok = e.platform.Overwrite("partners", lawyerA)
	assert.False(t, ok)

	staff.Status = domain.StaffStatusTerminated
	outcome, err = syncer.SyncMember(ctx, rm, staff, ownerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff-room"}, outcome.ChannelsRevoked)
}

func TestSyncGuildContinuesPastFailures(t *testing.T) {
	e := newEnv(t)
	e.seed(t, lawyerA, domain.StaffRoleJuniorAssociate, time.Now())
	e.seed(t, lawyerB, domain.StaffRoleParalegal, time.Now())
	require.NoError(t, e.store.Staff.Create(context.Background(), &domain.Staff{
		GuildID: guildID, UserID: newcomerID, Username: "left_guild",
		Role: domain.StaffRoleParalegal, Status: domain.StaffStatusActive, HiredAt: time.Now(),
	}, 0))

	report, err := e.maint.SyncGuild(context.Background(), asOwner(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}
