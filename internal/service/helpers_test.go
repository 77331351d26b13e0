package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/platform/platformtest"
	"github.com/spec-kit/firm-ops/internal/repository/memory"
	"github.com/spec-kit/firm-ops/internal/validation"
)

const (
	guildID = "400000000000000001"

	ownerID    = "100000000000000001"
	partnerID  = "100000000000000002"
	lawyerA    = "100000000000000003"
	lawyerB    = "100000000000000004"
	newcomerID = "100000000000000005"
	clientID   = "100000000000000006"
)

var rankRoleIDs = map[domain.StaffRole]string{
	domain.StaffRoleParalegal:       "role-para",
	domain.StaffRoleJuniorAssociate: "role-ja",
	domain.StaffRoleSeniorAssociate: "role-sa",
	domain.StaffRoleJuniorPartner:   "role-jp",
	domain.StaffRoleSeniorPartner:   "role-sp",
	domain.StaffRoleManagingPartner: "role-mp",
}

type env struct {
	store     *memory.Store
	platform  *platformtest.Client
	registry  *RoleMapRegistry
	sync      *RoleSyncService
	conflicts *RoleConflictService
	staff     *StaffService
	cases     *CaseService
	jobs      *JobService
	maint     *MaintenanceService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	fake := platformtest.New()
	fake.Owners[guildID] = ownerID
	for _, role := range domain.AllStaffRoles() {
		fake.AddRole(guildID, rankRoleIDs[role], role.String())
	}
	fake.AddRole(guildID, "role-everyone", "@everyone")

	validator := validation.NewService(logger, nil,
		validation.NewCommandStrategy(validation.NewCommandValidator()),
		validation.NewBusinessStrategy(validation.NewBusinessRuleValidator(store.Staff, store.Cases,
			config.RulesConfig{MaxClientCases: 5, CaseWarningThreshold: 3}, logger)),
		validation.NewCrossEntityStrategy(validation.NewCrossEntityValidator(validation.CrossEntityDependencies{
			StaffRepo:       store.Staff,
			CaseRepo:        store.Cases,
			JobRepo:         store.Jobs,
			ApplicationRepo: store.Applications,
		}, logger)),
	)

	e := &env{store: store, platform: fake}
	e.registry = NewRoleMapRegistry(fake, nil, logger)
	e.sync = NewRoleSyncService(config.DiscordConfig{}, RoleSyncDependencies{
		Client:    fake,
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
	}, logger)
	e.conflicts = NewRoleConflictService(RoleConflictDependencies{
		Client:    fake,
		Registry:  e.registry,
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
	}, 0, logger)
	e.staff = NewStaffService(StaffDependencies{
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
		Validator: validator,
		Registry:  e.registry,
		Sync:      e.sync,
	}, logger)
	e.cases = NewCaseService(CaseDependencies{
		CaseRepo:  store.Cases,
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
		Validator: validator,
	}, logger)
	e.jobs = NewJobService(JobDependencies{
		JobRepo:         store.Jobs,
		ApplicationRepo: store.Applications,
		StaffRepo:       store.Staff,
		AuditRepo:       store.Audit,
		Hiring:          e.staff,
		Validator:       validator,
	}, logger)
	e.maint = NewMaintenanceService(MaintenanceDependencies{
		Validator: validator,
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
		Registry:  e.registry,
		Sync:      e.sync,
		Conflicts: e.conflicts,
	}, 0, logger)
	return e
}

// seed stores an active record directly and gives the member its rank role.
func (e *env) seed(t *testing.T, userID string, role domain.StaffRole, hiredAt time.Time) *domain.Staff {
	t.Helper()
	s := &domain.Staff{
		GuildID:  guildID,
		UserID:   userID,
		Username: "member_" + userID[len(userID)-3:],
		Role:     role,
		Status:   domain.StaffStatusActive,
		HiredAt:  hiredAt,
		HiredBy:  ownerID,
	}
	require.NoError(t, e.store.Staff.Create(context.Background(), s, 0))
	e.platform.AddMember(guildID, userID, rankRoleIDs[role])
	return s
}

func asOwner() domain.PermissionContext {
	return domain.PermissionContext{GuildID: guildID, UserID: ownerID, IsGuildOwner: true}
}

func as(userID string) domain.PermissionContext {
	return domain.PermissionContext{GuildID: guildID, UserID: userID}
}
