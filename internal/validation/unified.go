package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/observability"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// Request is the input of a unified validation pass.
type Request struct {
	EntityType string
	Operation  string
	Permission domain.PermissionContext
	Data       map[string]any
}

// Key returns the "entity:operation" form of the request.
func (r Request) Key() string {
	return CommandKey(r.EntityType, r.Operation)
}

// Stage orders strategies so issues are reported parameters first.
type Stage int

const (
	StageParameters Stage = iota
	StageRules
	StageAdvisory
)

// Strategy is one validator taking part in unified dispatch.
type Strategy interface {
	Name() string
	Stage() Stage
	CanHandle(req Request) bool
	Validate(ctx context.Context, req Request) (Result, error)
}

// Service runs every applicable strategy and merges their results.
type Service struct {
	strategies []Strategy
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewService builds a dispatcher over strategies. Registration order is kept within a stage.
func NewService(logger *zap.Logger, metrics *observability.Metrics, strategies ...Strategy) *Service {
	ordered := append([]Strategy(nil), strategies...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Stage() < ordered[j].Stage() })
	return &Service{strategies: ordered, metrics: metrics, logger: logger}
}

// Validate runs every strategy that can handle req and merges their results.
// A strategy that finds a required identifier missing contributes a
// MISSING_CONTEXT_FIELD issue while the other strategies still report theirs.
// When that is the only problem found, the contract error is returned instead.
func (s *Service) Validate(ctx context.Context, req Request) (Result, error) {
	var (
		results     []Result
		contractErr error
	)
	contract := NewResult()
	for _, strategy := range s.strategies {
		if !strategy.CanHandle(req) {
			continue
		}
		res, err := strategy.Validate(ctx, req)
		if errors.Is(err, apperrors.ErrMissingContextField) {
			if contractErr == nil {
				contractErr = fmt.Errorf("%s: %w", strategy.Name(), err)
			}
			contract.AddError(CodeMissingContext, err.Error(), map[string]any{"strategy": strategy.Name()})
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", strategy.Name(), err)
		}
		results = append(results, res)
	}

	merged := Merge(results...)
	if contractErr != nil {
		if merged.Valid {
			return Result{}, contractErr
		}
		merged = Merge(merged, contract)
	}
	s.metrics.RecordValidation(req.EntityType, req.Operation, merged.Valid)
	if !merged.Valid {
		s.logger.Debug("validation rejected request",
			zap.String("command", req.Key()),
			zap.String("guild_id", req.Permission.GuildID),
			zap.String("reason", merged.ErrorMessage()))
	}
	return merged, nil
}

func stringField(data map[string]any, key string) (string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", apperrors.ErrMissingContextField, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrMissingContextField, key)
	}
	return s, nil
}

func optionalString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func optionalBool(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

// CommandStrategy applies the declarative parameter rules.
type CommandStrategy struct {
	validator *CommandValidator
}

func NewCommandStrategy(v *CommandValidator) *CommandStrategy {
	return &CommandStrategy{validator: v}
}

func (s *CommandStrategy) Name() string { return "command" }
func (s *CommandStrategy) Stage() Stage { return StageParameters }
func (s *CommandStrategy) CanHandle(req Request) bool {
	return s.validator.Has(req.Key())
}

func (s *CommandStrategy) Validate(_ context.Context, req Request) (Result, error) {
	return s.validator.ValidateCommand(req.EntityType, req.Operation, req.Data), nil
}

// MaintenanceEntity names guild-wide maintenance requests. They only check
// that the caller is senior staff, the guild owner or an administrator.
const MaintenanceEntity = "maintenance"

// BusinessStrategy applies occupancy limits, case quotas and staff checks.
type BusinessStrategy struct {
	rules *BusinessRuleValidator
}

func NewBusinessStrategy(v *BusinessRuleValidator) *BusinessStrategy {
	return &BusinessStrategy{rules: v}
}

func (s *BusinessStrategy) Name() string { return "business" }
func (s *BusinessStrategy) Stage() Stage { return StageRules }

func (s *BusinessStrategy) CanHandle(req Request) bool {
	if req.EntityType == MaintenanceEntity {
		return true
	}
	switch req.Key() {
	case "staff:hire", "staff:fire", "staff:promote", "staff:demote", "staff:set-status",
		"case:create", "case:assign", "case:close",
		"job:post", "job:close", "application:review":
		return true
	}
	return false
}

func (s *BusinessStrategy) Validate(ctx context.Context, req Request) (Result, error) {
	pc := req.Permission
	if req.EntityType == MaintenanceEntity {
		return s.actorWith(ctx, pc, domain.PermissionSeniorStaff), nil
	}
	switch req.Key() {
	case "staff:hire":
		role, err := stringField(req.Data, "role")
		if err != nil {
			return Result{}, err
		}
		staffRole := domain.StaffRole(role)
		return Merge(
			s.actorWith(ctx, pc, domain.PermissionSeniorStaff),
			RoleLimitAsResult(s.rules.ValidateRoleLimit(ctx, pc, staffRole), staffRole),
		), nil
	case "staff:fire":
		userID, err := stringField(req.Data, "user_id")
		if err != nil {
			return Result{}, err
		}
		return s.rules.ValidateRemoval(ctx, pc, userID), nil
	case "staff:set-status":
		userID, err := stringField(req.Data, "user_id")
		if err != nil {
			return Result{}, err
		}
		status, err := stringField(req.Data, "status")
		if err != nil {
			return Result{}, err
		}
		return Merge(
			s.actorWith(ctx, pc, domain.PermissionSeniorStaff),
			s.rules.ValidateStatusChange(ctx, pc, userID, domain.StaffStatus(status)),
		), nil
	case "job:post", "job:close", "application:review":
		return s.actorWith(ctx, pc, domain.PermissionSeniorStaff), nil
	case "case:close":
		return s.actorWith(ctx, pc, domain.PermissionCaseHandling), nil
	case "staff:promote", "staff:demote":
		userID, err := stringField(req.Data, "user_id")
		if err != nil {
			return Result{}, err
		}
		newRole := domain.StaffRole(optionalString(req.Data, "role"))
		if req.Operation == "promote" {
			return s.rules.ValidatePromotion(ctx, pc, userID, newRole), nil
		}
		return s.rules.ValidateDemotion(ctx, pc, userID, newRole), nil
	case "case:create":
		clientID, err := stringField(req.Data, "client_id")
		if err != nil {
			return Result{}, err
		}
		return CaseLimitAsResult(s.rules.ValidateClientCaseLimit(ctx, clientID, pc.GuildID)), nil
	case "case:assign":
		lawyerID, err := stringField(req.Data, "lawyer_id")
		if err != nil {
			return Result{}, err
		}
		required := []domain.Permission{domain.PermissionLawyer}
		if optionalBool(req.Data, "lead") {
			required = append(required, domain.PermissionLeadAttorney)
		}
		return Merge(
			s.actorWith(ctx, pc, domain.PermissionCaseHandling),
			StaffMemberAsResult(s.rules.ValidateStaffMember(ctx, pc, lawyerID, required...), "lawyer_id"),
		), nil
	}
	return NewResult(), nil
}

// actorWith requires the caller to be active staff holding perm. Guild owners
// and administrators are exempt.
func (s *BusinessStrategy) actorWith(ctx context.Context, pc domain.PermissionContext, perm domain.Permission) Result {
	if pc.CanBypass() {
		return NewResult()
	}
	check := s.rules.ValidateStaffMember(ctx, pc, pc.UserID, perm)
	if check.Valid || check.Failed {
		return StaffMemberAsResult(check, "actor")
	}
	res := NewResult()
	res.Add(Issue{
		Severity: SeverityError,
		Code:     CodeInsufficientPermission,
		Field:    "actor",
		Message:  fmt.Sprintf("%s permission required (%s)", perm, check.Error),
	})
	return res
}

// CrossEntityStrategy assesses cascading impact of staff and case mutations.
type CrossEntityStrategy struct {
	cross *CrossEntityValidator
}

func NewCrossEntityStrategy(v *CrossEntityValidator) *CrossEntityStrategy {
	return &CrossEntityStrategy{cross: v}
}

func (s *CrossEntityStrategy) Name() string { return "cross_entity" }
func (s *CrossEntityStrategy) Stage() Stage { return StageRules }

func (s *CrossEntityStrategy) CanHandle(req Request) bool {
	switch req.Key() {
	case "staff:fire", "staff:demote", "case:close", "consistency:check":
		return true
	}
	return false
}

func (s *CrossEntityStrategy) Validate(ctx context.Context, req Request) (Result, error) {
	guildID := req.Permission.GuildID
	switch req.Key() {
	case "consistency:check":
		return s.cross.ValidateAll(ctx, guildID), nil
	case "case:close":
		caseID, err := stringField(req.Data, "case_id")
		if err != nil {
			return Result{}, err
		}
		return s.cross.ValidateCascadingUpdate(ctx, guildID, CascadeUpdate{
			Type:      CascadeCaseStatusChange,
			EntityID:  caseID,
			NewStatus: domain.CaseStatusClosed,
		}), nil
	}

	userID, err := stringField(req.Data, "user_id")
	if err != nil {
		return Result{}, err
	}
	if req.Operation == "fire" {
		return s.cross.ValidateCascadingUpdate(ctx, guildID, CascadeUpdate{Type: CascadeStaffRemoval, EntityID: userID}), nil
	}
	return s.cross.ValidateCascadingUpdate(ctx, guildID, CascadeUpdate{
		Type:     CascadeStaffRoleChange,
		EntityID: userID,
		NewRole:  domain.StaffRole(optionalString(req.Data, "role")),
	}), nil
}

// UsernameStrategy attaches advisory warnings for unknown game accounts.
type UsernameStrategy struct {
	checker UsernameChecker
	logger  *zap.Logger
}

func NewUsernameStrategy(checker UsernameChecker, logger *zap.Logger) *UsernameStrategy {
	return &UsernameStrategy{checker: checker, logger: logger}
}

func (s *UsernameStrategy) Name() string { return "username" }
func (s *UsernameStrategy) Stage() Stage { return StageAdvisory }

func (s *UsernameStrategy) CanHandle(req Request) bool {
	return s.checker != nil && usernameField(req) != ""
}

func (s *UsernameStrategy) Validate(ctx context.Context, req Request) (Result, error) {
	field := usernameField(req)
	username := optionalString(req.Data, field)
	lookup, err := s.checker.ValidateUsername(ctx, username)
	if err != nil {
		s.logger.Warn("username lookup failed", zap.String("username", username), zap.Error(err))
	}
	return UsernameAsResult(field, username, lookup, err), nil
}

func usernameField(req Request) string {
	var field string
	switch req.Key() {
	case "staff:hire", "job:apply":
		field = "username"
	case "case:create":
		field = "client_username"
	default:
		return ""
	}
	if optionalString(req.Data, field) == "" {
		return ""
	}
	return field
}
