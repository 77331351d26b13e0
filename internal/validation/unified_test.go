package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

type recordingStrategy struct {
	name   string
	stage  Stage
	result Result
	skip   bool
	calls  int
}

func (s *recordingStrategy) Name() string           { return s.name }
func (s *recordingStrategy) Stage() Stage           { return s.stage }
func (s *recordingStrategy) CanHandle(Request) bool { return !s.skip }
func (s *recordingStrategy) Validate(context.Context, Request) (Result, error) {
	s.calls++
	return s.result, nil
}

func invalid(code string) Result {
	r := NewResult()
	r.AddError(code, code, nil)
	return r
}

func TestServiceRunsEveryHandlingStrategy(t *testing.T) {
	params := &recordingStrategy{name: "params", stage: StageParameters, result: invalid(CodeRequired)}
	rules := &recordingStrategy{name: "rules", stage: StageRules, result: invalid(CodeRoleLimitExceeded)}
	advisory := &recordingStrategy{name: "advisory", stage: StageAdvisory, result: NewResult()}
	other := &recordingStrategy{name: "other", stage: StageRules, result: invalid(CodeCaseNotFound), skip: true}

	svc := NewService(zap.NewNop(), nil, advisory, other, rules, params)
	res, err := svc.Validate(context.Background(), Request{EntityType: "staff", Operation: "hire"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 1, params.calls)
	assert.Equal(t, 1, rules.calls)
	assert.Equal(t, 1, advisory.calls)
	assert.Zero(t, other.calls)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, CodeRequired, res.Issues[0].Code)
	assert.Equal(t, CodeRoleLimitExceeded, res.Issues[1].Code)
}

func TestServiceMergesBypassAndWarnings(t *testing.T) {
	warn := NewResult()
	warn.AddWarning(CodeHierarchyGap, "gap", nil)
	limit := NewResult()
	limit.AddBypassableError(CodeRoleLimitExceeded, "full", nil)
	limit.BypassAvailable = true
	limit.BypassType = BypassGuildOwner
	first := &recordingStrategy{name: "a", stage: StageRules, result: limit}
	second := &recordingStrategy{name: "b", stage: StageRules, result: warn}
	advisory := &recordingStrategy{name: "c", stage: StageAdvisory, result: NewResult()}

	svc := NewService(zap.NewNop(), nil, first, second, advisory)
	res, err := svc.Validate(context.Background(), Request{EntityType: "staff", Operation: "hire"})
	require.NoError(t, err)
	assert.Len(t, res.Issues, 2)
	assert.False(t, res.Valid)
	assert.True(t, res.BypassAvailable)
	assert.Equal(t, BypassGuildOwner, res.BypassType)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, advisory.calls)
}

func newUnified(f *fixture) *Service {
	return NewService(zap.NewNop(), nil,
		NewCommandStrategy(NewCommandValidator()),
		NewBusinessStrategy(f.rules),
		NewCrossEntityStrategy(f.cross),
	)
}

func TestUnifiedHireFullRank(t *testing.T) {
	f := newFixture(t)
	f.hire(t, snowflakeA, domain.StaffRoleSeniorPartner)
	f.hireMany(t, domain.StaffRoleParalegal, 10)
	svc := newUnified(f)

	res, err := svc.Validate(context.Background(), Request{
		EntityType: "staff",
		Operation:  "hire",
		Permission: actor(snowflakeA),
		Data:       map[string]any{"user_id": snowflakeB, "username": "new_hire", "role": "Paralegal"},
	})
	require.NoError(t, err)
	assert.True(t, res.HasCode(CodeRoleLimitExceeded))
	assert.False(t, res.BypassAvailable)
	assert.Equal(t, 10, res.Metadata["current_count"])
	assert.Contains(t, res.ErrorMessage(), "10")
	assert.Contains(t, res.ErrorMessage(), "Paralegal")
}

func TestUnifiedReportsShapeAndRoleLimitTogether(t *testing.T) {
	f := newFixture(t)
	f.hire(t, snowflakeA, domain.StaffRoleSeniorPartner)
	f.hireMany(t, domain.StaffRoleParalegal, 10)
	svc := newUnified(f)

	res, err := svc.Validate(context.Background(), Request{
		EntityType: "staff",
		Operation:  "hire",
		Permission: actor(snowflakeA),
		Data:       map[string]any{"user_id": snowflakeB, "username": "x", "role": "Paralegal"},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasCode(CodeInvalidLength))
	assert.True(t, res.HasCode(CodePatternMismatch))
	assert.True(t, res.HasCode(CodeRoleLimitExceeded))
}

func TestUnifiedMissingIdentifierAlongsideParameterIssues(t *testing.T) {
	f := newFixture(t)
	f.hire(t, snowflakeA, domain.StaffRoleSeniorPartner)
	svc := newUnified(f)

	res, err := svc.Validate(context.Background(), Request{
		EntityType: "staff",
		Operation:  "fire",
		Permission: actor(snowflakeA),
		Data:       map[string]any{"reason": "gone"},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasCode(CodeRequired))
	assert.True(t, res.HasCode(CodeMissingContext))
}

func TestUnifiedFireBlockedByCaseAssignments(t *testing.T) {
	f := newFixture(t)
	f.hire(t, snowflakeA, domain.StaffRoleManagingPartner)
	f.hire(t, snowflakeB, domain.StaffRoleJuniorAssociate)
	f.openCase(t, "client", []string{snowflakeB}, "")
	svc := newUnified(f)

	res, err := svc.Validate(context.Background(), Request{
		EntityType: "staff",
		Operation:  "fire",
		Permission: owner(snowflakeA),
		Data:       map[string]any{"user_id": snowflakeB},
	})
	require.NoError(t, err)
	assert.True(t, res.HasCode(CodeActiveCaseAssignments))
	assert.False(t, res.CanProceed(true))
}

func TestUnifiedMissingIdentifier(t *testing.T) {
	f := newFixture(t)
	svc := NewService(zap.NewNop(), nil, NewBusinessStrategy(f.rules))

	_, err := svc.Validate(context.Background(), Request{
		EntityType: "staff",
		Operation:  "fire",
		Permission: actor(snowflakeA),
		Data:       map[string]any{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingContextField))
}

func TestUnifiedMaintenanceRequiresSeniorStaff(t *testing.T) {
	f := newFixture(t)
	f.hire(t, snowflakeA, domain.StaffRoleSeniorPartner)
	f.hire(t, snowflakeB, domain.StaffRoleJuniorPartner)
	svc := newUnified(f)

	req := Request{EntityType: MaintenanceEntity, Operation: "sync", Data: map[string]any{}}

	req.Permission = actor(snowflakeA)
	res, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	req.Permission = actor(snowflakeB)
	res, err = svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.HasCode(CodeInsufficientPermission))

	req.Permission = domain.PermissionContext{GuildID: testGuild, UserID: "admin", IsAdmin: true}
	res, err = svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}
