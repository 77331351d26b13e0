package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// BusinessRuleValidator checks occupancy limits, case quotas and staff preconditions.
// Collaborator failures are logged and converted into invalid results.
type BusinessRuleValidator struct {
	staff  repository.StaffRepository
	cases  repository.CaseRepository
	rules  config.RulesConfig
	logger *zap.Logger
}

// NewBusinessRuleValidator builds the validator.
func NewBusinessRuleValidator(staff repository.StaffRepository, cases repository.CaseRepository, rules config.RulesConfig, logger *zap.Logger) *BusinessRuleValidator {
	if rules.MaxClientCases <= 0 {
		rules.MaxClientCases = 5
	}
	if rules.CaseWarningThreshold <= 0 {
		rules.CaseWarningThreshold = 3
	}
	return &BusinessRuleValidator{staff: staff, cases: cases, rules: rules, logger: logger}
}

// RoleLimitResult reports the occupancy of one rank.
type RoleLimitResult struct {
	Valid           bool
	CurrentCount    int
	MaxCount        int
	BypassAvailable bool
	Error           string
}

// ValidateRoleLimit checks that the guild has room for one more active member in role.
// The bypass flag is only reported, never applied.
func (v *BusinessRuleValidator) ValidateRoleLimit(ctx context.Context, pc domain.PermissionContext, role domain.StaffRole) RoleLimitResult {
	if !role.IsValid() {
		return RoleLimitResult{Error: fmt.Sprintf("invalid role %q", role)}
	}
	count, err := v.staff.CountByRole(ctx, pc.GuildID, role)
	if err != nil {
		v.logger.Error("role limit validation failed",
			zap.String("guild_id", pc.GuildID),
			zap.String("role", role.String()),
			zap.Error(err))
		return RoleLimitResult{Error: "failed to validate role limit"}
	}
	res := RoleLimitResult{
		CurrentCount: count,
		MaxCount:     role.MaxCount(),
	}
	res.Valid = count < res.MaxCount
	if !res.Valid {
		res.BypassAvailable = pc.CanBypass()
		res.Error = fmt.Sprintf("%s limit reached (%d/%d)", role, count, res.MaxCount)
	}
	return res
}

// CaseLimitResult reports a client's open case count against the hard cap.
type CaseLimitResult struct {
	Valid        bool
	CurrentCases int
	MaxCases     int
	Warning      string
	Error        string
}

// ValidateClientCaseLimit checks that the client has fewer open cases than the cap.
// There is no bypass for this rule.
func (v *BusinessRuleValidator) ValidateClientCaseLimit(ctx context.Context, clientID, guildID string) CaseLimitResult {
	count, err := v.cases.CountActiveByClient(ctx, guildID, clientID)
	if err != nil {
		v.logger.Error("client case limit validation failed",
			zap.String("guild_id", guildID),
			zap.String("client_id", clientID),
			zap.Error(err))
		return CaseLimitResult{MaxCases: v.rules.MaxClientCases, Error: "failed to validate client case limit"}
	}
	res := CaseLimitResult{
		CurrentCases: count,
		MaxCases:     v.rules.MaxClientCases,
		Valid:        count < v.rules.MaxClientCases,
	}
	if !res.Valid {
		res.Error = fmt.Sprintf("client has %d active cases; the maximum is %d", count, res.MaxCases)
		return res
	}
	if count >= v.rules.CaseWarningThreshold {
		res.Warning = fmt.Sprintf("client has %d active cases (limit %d)", count, res.MaxCases)
	}
	return res
}

// StaffMemberResult reports whether a user is active staff holding the required permissions.
type StaffMemberResult struct {
	Valid                  bool
	IsStaff                bool
	IsActiveStaff          bool
	HasRequiredPermissions bool
	MissingPermissions     []domain.Permission
	Staff                  *domain.Staff
	Failed                 bool
	Error                  string
}

// ValidateStaffMember checks that userID has an active record granting every permission in required.
func (v *BusinessRuleValidator) ValidateStaffMember(ctx context.Context, pc domain.PermissionContext, userID string, required ...domain.Permission) StaffMemberResult {
	staff, err := v.staff.FindByUser(ctx, pc.GuildID, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return StaffMemberResult{Error: "user is not a staff member"}
		}
		v.logger.Error("staff member validation failed",
			zap.String("guild_id", pc.GuildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return StaffMemberResult{Failed: true, Error: "failed to validate staff member"}
	}
	res := StaffMemberResult{Staff: staff, IsStaff: true, IsActiveStaff: staff.IsActive()}
	if !res.IsActiveStaff {
		res.Error = fmt.Sprintf("staff member is %s", staff.Status)
		return res
	}
	for _, perm := range required {
		if !domain.RoleHasPermission(staff.Role, perm) {
			res.MissingPermissions = append(res.MissingPermissions, perm)
		}
	}
	res.HasRequiredPermissions = len(res.MissingPermissions) == 0
	if !res.HasRequiredPermissions {
		res.Error = fmt.Sprintf("%s lacks permissions: %v", staff.Role, res.MissingPermissions)
		return res
	}
	res.Valid = true
	return res
}

// ValidatePromotion checks a move of targetUserID to newRole. An empty newRole
// means the next rank up.
func (v *BusinessRuleValidator) ValidatePromotion(ctx context.Context, pc domain.PermissionContext, targetUserID string, newRole domain.StaffRole) Result {
	return v.validateRoleChange(ctx, pc, targetUserID, newRole, true)
}

// ValidateDemotion checks a move of targetUserID to newRole. An empty newRole
// means the next rank down. Managers with open case assignments cannot be demoted.
func (v *BusinessRuleValidator) ValidateDemotion(ctx context.Context, pc domain.PermissionContext, targetUserID string, newRole domain.StaffRole) Result {
	return v.validateRoleChange(ctx, pc, targetUserID, newRole, false)
}

func (v *BusinessRuleValidator) validateRoleChange(ctx context.Context, pc domain.PermissionContext, targetUserID string, newRole domain.StaffRole, promote bool) Result {
	what := "demotion"
	code := CodeInvalidDemotion
	if promote {
		what = "promotion"
		code = CodeInvalidPromotion
	}

	target, err := v.staff.FindByUser(ctx, pc.GuildID, targetUserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res := NewResult()
			res.AddError(CodeStaffNotFound, "target user is not a staff member", map[string]any{"user_id": targetUserID})
			return res
		}
		v.logger.Error("role change validation failed", zap.String("operation", what), zap.String("user_id", targetUserID), zap.Error(err))
		return Failed(what)
	}

	res := NewResult()
	if !target.IsActive() {
		res.AddError(CodeStaffInactive, fmt.Sprintf("target staff member is %s", target.Status), nil)
		return res
	}

	if newRole == "" {
		var ok bool
		if promote {
			newRole, ok = target.Role.NextPromotion()
		} else {
			newRole, ok = target.Role.PreviousDemotion()
		}
		if !ok {
			res.AddError(code, fmt.Sprintf("%s has no further %s", target.Role, what), nil)
			return res
		}
	}
	if !newRole.IsValid() {
		res.AddError(CodeInvalidRole, fmt.Sprintf("invalid role %q", newRole), nil)
		return res
	}
	res.SetMeta("current_role", target.Role)
	res.SetMeta("new_role", newRole)

	if promote && newRole.Level() <= target.Role.Level() {
		res.AddError(code, fmt.Sprintf("%s is not above %s", newRole, target.Role), nil)
	}
	if !promote && newRole.Level() >= target.Role.Level() {
		res.AddError(code, fmt.Sprintf("%s is not below %s", newRole, target.Role), nil)
	}

	v.checkAuthority(ctx, pc, target, newRole, promote, &res)

	if limit := v.ValidateRoleLimit(ctx, pc, newRole); !limit.Valid {
		if limit.MaxCount == 0 {
			res.AddError(CodeValidationError, limit.Error, nil)
			return res
		}
		res.AddBypassableError(CodeRoleLimitExceeded, limit.Error, map[string]any{
			"current_count": limit.CurrentCount,
			"max_count":     limit.MaxCount,
		})
		if limit.BypassAvailable {
			res.BypassAvailable = true
			res.BypassType = BypassGuildOwner
		}
	}
	if promote {
		return res
	}

	if target.Role.IsManagement() {
		active, err := v.activeAssignments(ctx, pc.GuildID, target.UserID)
		if err != nil {
			v.logger.Error("demotion case lookup failed", zap.String("user_id", targetUserID), zap.Error(err))
			return Failed(what)
		}
		if active > 0 {
			res.AddError(CodeManagerHasActiveCases,
				fmt.Sprintf("cannot demote %s with %d active case assignment(s); reassign them first", target.Role, active),
				map[string]any{"active_cases": active})
		}
	}
	return res
}

// ValidateRemoval checks that the actor may terminate targetUserID. Case
// assignments are assessed separately by the cross-entity validator.
func (v *BusinessRuleValidator) ValidateRemoval(ctx context.Context, pc domain.PermissionContext, targetUserID string) Result {
	res := NewResult()
	target, err := v.staff.FindByUser(ctx, pc.GuildID, targetUserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res.AddError(CodeStaffNotFound, "target user is not a staff member", map[string]any{"user_id": targetUserID})
			return res
		}
		v.logger.Error("removal validation failed", zap.String("user_id", targetUserID), zap.Error(err))
		return Failed("staff removal")
	}
	if target.Status == domain.StaffStatusTerminated {
		res.AddError(CodeStaffInactive, "staff member is already terminated", nil)
		return res
	}
	if targetUserID == pc.UserID {
		res.AddError(CodeInsufficientAuthority, "staff members cannot remove themselves", nil)
		return res
	}

	if err := v.outranks(ctx, pc, target, "remove", &res); err != nil {
		return Failed("staff removal")
	}
	return res
}

// ValidateStatusChange checks that the actor may move targetUserID to next.
// Reactivation is subject to the rank's occupancy limit.
func (v *BusinessRuleValidator) ValidateStatusChange(ctx context.Context, pc domain.PermissionContext, targetUserID string, next domain.StaffStatus) Result {
	res := NewResult()
	target, err := v.staff.FindByUser(ctx, pc.GuildID, targetUserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res.AddError(CodeStaffNotFound, "target user is not a staff member", map[string]any{"user_id": targetUserID})
			return res
		}
		v.logger.Error("status validation failed", zap.String("user_id", targetUserID), zap.Error(err))
		return Failed("staff status change")
	}
	if next == domain.StaffStatusTerminated || !target.Status.CanTransitionTo(next) {
		res.AddError(CodeInvalidTransition,
			fmt.Sprintf("cannot change status from %s to %s", target.Status, next),
			map[string]any{"from": target.Status, "to": next})
		return res
	}
	if targetUserID == pc.UserID {
		res.AddError(CodeInsufficientAuthority, "staff members cannot change their own status", nil)
		return res
	}
	if err := v.outranks(ctx, pc, target, "change the status of", &res); err != nil {
		return Failed("staff status change")
	}
	if next == domain.StaffStatusActive {
		res = Merge(res, RoleLimitAsResult(v.ValidateRoleLimit(ctx, pc, target.Role), target.Role))
	}
	return res
}

// outranks requires the acting user to sit above target in the hierarchy. The
// guild owner may bypass it.
func (v *BusinessRuleValidator) outranks(ctx context.Context, pc domain.PermissionContext, target *domain.Staff, verb string, res *Result) error {
	var actorRole domain.StaffRole
	actor, err := v.staff.FindByUser(ctx, pc.GuildID, pc.UserID)
	switch {
	case err == nil && actor.IsActive():
		actorRole = actor.Role
	case err != nil && !apperrors.IsNotFound(err):
		v.logger.Error("actor lookup failed", zap.String("user_id", pc.UserID), zap.Error(err))
		return err
	}
	if domain.CanDemote(actorRole, target.Role) {
		return nil
	}
	res.AddBypassableError(CodeInsufficientAuthority,
		fmt.Sprintf("rank %s cannot %s a %s", roleOrNone(actorRole), verb, target.Role),
		map[string]any{"actor_role": actorRole, "target_role": target.Role})
	if pc.CanBypass() {
		res.BypassAvailable = true
		res.BypassType = BypassGuildOwner
	}
	return nil
}

// checkAuthority applies the hierarchy authority rule to the acting user. The guild
// owner may bypass it.
func (v *BusinessRuleValidator) checkAuthority(ctx context.Context, pc domain.PermissionContext, target *domain.Staff, newRole domain.StaffRole, promote bool, res *Result) {
	var actorRole domain.StaffRole
	actor, err := v.staff.FindByUser(ctx, pc.GuildID, pc.UserID)
	switch {
	case err == nil && actor.IsActive():
		actorRole = actor.Role
	case err != nil && !apperrors.IsNotFound(err):
		v.logger.Error("actor lookup failed", zap.String("user_id", pc.UserID), zap.Error(err))
		res.AddError(CodeValidationError, "failed to validate actor authority", nil)
		return
	}

	allowed := domain.CanDemote(actorRole, target.Role)
	if promote {
		allowed = domain.CanPromote(actorRole, target.Role)
	}
	if allowed && newRole.Level() >= actorRole.Level() {
		allowed = false
	}
	if allowed {
		return
	}
	verb := "demote"
	if promote {
		verb = "promote"
	}
	res.AddBypassableError(CodeInsufficientAuthority,
		fmt.Sprintf("rank %s cannot %s a %s to %s", roleOrNone(actorRole), verb, target.Role, newRole),
		map[string]any{"actor_role": actorRole, "target_role": target.Role, "new_role": newRole})
	if pc.CanBypass() {
		res.BypassAvailable = true
		res.BypassType = BypassGuildOwner
	}
}

func (v *BusinessRuleValidator) activeAssignments(ctx context.Context, guildID, userID string) (int, error) {
	assigned, err := v.cases.FindByLawyer(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	led, err := v.cases.FindByLeadAttorney(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	seen := map[string]struct{}{}
	for _, list := range [][]domain.Case{assigned, led} {
		for i := range list {
			if list[i].IsActive() {
				seen[list[i].ID] = struct{}{}
			}
		}
	}
	return len(seen), nil
}

func roleOrNone(role domain.StaffRole) string {
	if role == "" {
		return "none"
	}
	return role.String()
}

// RoleLimitAsResult converts a role limit check into a unified result.
func RoleLimitAsResult(limit RoleLimitResult, role domain.StaffRole) Result {
	res := NewResult()
	res.SetMeta("current_count", limit.CurrentCount)
	res.SetMeta("max_count", limit.MaxCount)
	if limit.Valid {
		return res
	}
	if limit.MaxCount == 0 {
		code := CodeValidationError
		if !role.IsValid() {
			code = CodeInvalidRole
		}
		res.AddError(code, limit.Error, map[string]any{"role": role})
		return res
	}
	res.AddBypassableError(CodeRoleLimitExceeded, limit.Error, map[string]any{
		"role":          role,
		"current_count": limit.CurrentCount,
		"max_count":     limit.MaxCount,
	})
	if limit.BypassAvailable {
		res.BypassAvailable = true
		res.BypassType = BypassGuildOwner
	}
	return res
}

// CaseLimitAsResult converts a case limit check into a unified result.
func CaseLimitAsResult(limit CaseLimitResult) Result {
	res := NewResult()
	res.SetMeta("current_cases", limit.CurrentCases)
	res.SetMeta("max_cases", limit.MaxCases)
	ctx := map[string]any{"current_cases": limit.CurrentCases, "max_cases": limit.MaxCases}
	switch {
	case !limit.Valid && limit.CurrentCases < limit.MaxCases:
		res.AddError(CodeValidationError, limit.Error, nil)
	case !limit.Valid:
		res.AddError(CodeCaseLimitExceeded, limit.Error, ctx)
	case limit.Warning != "":
		res.AddWarning(CodeCaseLimitApproaching, limit.Warning, ctx)
	}
	return res
}

// StaffMemberAsResult converts a staff check into a unified result with field.
func StaffMemberAsResult(check StaffMemberResult, field string) Result {
	res := NewResult()
	if check.Valid {
		return res
	}
	code := CodeInsufficientPermission
	switch {
	case !check.IsStaff && check.Failed:
		code = CodeValidationError
	case !check.IsStaff:
		code = CodeStaffNotFound
	case !check.IsActiveStaff:
		code = CodeStaffInactive
	}
	res.Add(Issue{Severity: SeverityError, Code: code, Field: field, Message: check.Error})
	return res
}
