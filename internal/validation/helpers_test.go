package validation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository/memory"
)

const testGuild = "guild-1"

type fixture struct {
	store *memory.Store
	rules *BusinessRuleValidator
	cross *CrossEntityValidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	return &fixture{
		store: store,
		rules: NewBusinessRuleValidator(store.Staff, store.Cases, config.RulesConfig{MaxClientCases: 5, CaseWarningThreshold: 3}, logger),
		cross: NewCrossEntityValidator(CrossEntityDependencies{
			StaffRepo:       store.Staff,
			CaseRepo:        store.Cases,
			JobRepo:         store.Jobs,
			ApplicationRepo: store.Applications,
		}, logger),
	}
}

func (f *fixture) hire(t *testing.T, userID string, role domain.StaffRole) *domain.Staff {
	t.Helper()
	s := &domain.Staff{
		GuildID:  testGuild,
		UserID:   userID,
		Username: "user_" + userID,
		Role:     role,
		Status:   domain.StaffStatusActive,
		HiredAt:  time.Now().UTC(),
		HiredBy:  "owner",
	}
	require.NoError(t, f.store.Staff.Create(context.Background(), s, 0))
	return s
}

func (f *fixture) hireMany(t *testing.T, role domain.StaffRole, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.hire(t, fmt.Sprintf("%s-%d", role, i), role)
	}
}

func (f *fixture) openCase(t *testing.T, clientID string, lawyers []string, lead string) *domain.Case {
	t.Helper()
	c := &domain.Case{
		GuildID:           testGuild,
		CaseNumber:        fmt.Sprintf("2026-%04d", time.Now().Nanosecond()%10000),
		ClientID:          clientID,
		ClientUsername:    "client_" + clientID,
		Title:             "Contract dispute",
		Status:            domain.CaseStatusInProgress,
		Priority:          "medium",
		AssignedLawyerIDs: lawyers,
	}
	if lead != "" {
		c.LeadAttorneyID = &lead
	}
	require.NoError(t, f.store.Cases.Create(context.Background(), c))
	return c
}

func actor(userID string) domain.PermissionContext {
	return domain.PermissionContext{GuildID: testGuild, UserID: userID}
}

func owner(userID string) domain.PermissionContext {
	return domain.PermissionContext{GuildID: testGuild, UserID: userID, IsGuildOwner: true}
}
