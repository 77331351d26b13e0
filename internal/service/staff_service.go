package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// StaffService manages the firm roster: hiring, rank changes and termination.
type StaffService struct {
	staff     repository.StaffRepository
	validator Validator
	registry  *RoleMapRegistry
	sync      *RoleSyncService
	audit     auditTrail
	logger    *zap.Logger
}

// StaffDependencies encapsulates collaborators for the staff service.
type StaffDependencies struct {
	StaffRepo  repository.StaffRepository
	AuditRepo  repository.AuditLogRepository
	Validator  Validator
	Registry   *RoleMapRegistry
	Sync       *RoleSyncService
	Dispatcher events.Dispatcher
}

// NewStaffService constructs the service. Registry and Sync may be nil when no
// chat platform is configured.
func NewStaffService(deps StaffDependencies, logger *zap.Logger) *StaffService {
	return &StaffService{
		staff:     deps.StaffRepo,
		validator: deps.Validator,
		registry:  deps.Registry,
		sync:      deps.Sync,
		audit:     auditTrail{repo: deps.AuditRepo, dispatcher: deps.Dispatcher, logger: logger},
		logger:    logger,
	}
}

// HireRequest describes a new hire.
type HireRequest struct {
	UserID   string
	Username string
	Role     domain.StaffRole
	Reason   string
	Bypass   bool
}

// RoleChangeRequest describes a promotion or demotion. An empty Role means one
// rank up or down.
type RoleChangeRequest struct {
	UserID string
	Role   domain.StaffRole
	Reason string
	Bypass bool
}

// FireRequest describes a termination.
type FireRequest struct {
	UserID string
	Reason string
	Bypass bool
}

// StatusChangeRequest moves a member between active and inactive.
type StatusChangeRequest struct {
	UserID string
	Status domain.StaffStatus
	Reason string
	Bypass bool
}

// StaffResult is returned by roster mutations.
type StaffResult struct {
	Staff      *domain.Staff     `json:"staff"`
	Validation validation.Result `json:"validation"`
	Sync       *SyncOutcome      `json:"sync,omitempty"`
}

// Hire creates an active staff record and seeds its history with a hire entry.
// Termination is final, so a terminated user cannot be hired again.
func (s *StaffService) Hire(ctx context.Context, pc domain.PermissionContext, req HireRequest) (*StaffResult, error) {
	res, err := check(ctx, s.validator, pc, "staff", "hire", map[string]any{
		"user_id":  req.UserID,
		"username": req.Username,
		"role":     string(req.Role),
		"reason":   req.Reason,
		"bypass":   req.Bypass,
	}, req.Bypass)
	if err != nil {
		return &StaffResult{Validation: res}, err
	}

	existing, err := s.staff.FindByUser(ctx, pc.GuildID, req.UserID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}
	if existing != nil {
		msg := "user is already a staff member"
		if existing.Status == domain.StaffStatusTerminated {
			msg = "user was terminated"
		}
		return nil, apperrors.NewConflict(msg, map[string]any{
			"user_id": req.UserID,
			"role":    existing.Role,
			"status":  existing.Status,
		})
	}

	now := time.Now().UTC()
	record := domain.PromotionRecord{
		ID:          uuid.NewString(),
		FromRole:    req.Role,
		ToRole:      req.Role,
		ActorUserID: pc.UserID,
		Reason:      req.Reason,
		ActionType:  domain.ActionHire,
		CreatedAt:   now,
	}
	limit := occupancyLimit(req.Role, req.Bypass, res)

	staff := &domain.Staff{
		GuildID:          pc.GuildID,
		UserID:           req.UserID,
		Username:         req.Username,
		Role:             req.Role,
		Status:           domain.StaffStatusActive,
		HiredAt:          now,
		HiredBy:          pc.UserID,
		PromotionHistory: []domain.PromotionRecord{record},
	}
	if err := s.staff.Create(ctx, staff, limit); err != nil {
		return &StaffResult{Validation: res}, writeError(err)
	}

	s.logger.Info("staff hired",
		zap.String("guild_id", pc.GuildID),
		zap.String("user_id", req.UserID),
		zap.String("role", req.Role.String()))
	s.audit.record(ctx, pc.GuildID, domain.AuditStaffHired, pc.UserID, req.UserID, map[string]any{
		"role":     req.Role,
		"username": req.Username,
		"reason":   req.Reason,
		"bypass":   req.Bypass && limit == 0,
	})
	s.audit.publish(ctx, events.EventStaffHired, pc.GuildID, req.UserID, pc.UserID, events.StaffChangedPayload{
		FromRole: req.Role,
		ToRole:   req.Role,
		Reason:   req.Reason,
	})

	return &StaffResult{Staff: staff, Validation: res, Sync: s.syncRoles(ctx, staff, pc.UserID)}, nil
}

// Promote moves a member up the hierarchy.
func (s *StaffService) Promote(ctx context.Context, pc domain.PermissionContext, req RoleChangeRequest) (*StaffResult, error) {
	return s.changeRole(ctx, pc, req, true)
}

// Demote moves a member down the hierarchy.
func (s *StaffService) Demote(ctx context.Context, pc domain.PermissionContext, req RoleChangeRequest) (*StaffResult, error) {
	return s.changeRole(ctx, pc, req, false)
}

func (s *StaffService) changeRole(ctx context.Context, pc domain.PermissionContext, req RoleChangeRequest, promote bool) (*StaffResult, error) {
	op, action, audit, event := "demote", domain.ActionDemotion, domain.AuditStaffDemoted, events.EventStaffDemoted
	if promote {
		op, action, audit, event = "promote", domain.ActionPromotion, domain.AuditStaffPromoted, events.EventStaffPromoted
	}

	data := map[string]any{"user_id": req.UserID, "reason": req.Reason, "bypass": req.Bypass}
	if req.Role != "" {
		data["role"] = string(req.Role)
	}
	res, err := check(ctx, s.validator, pc, "staff", op, data, req.Bypass)
	if err != nil {
		return &StaffResult{Validation: res}, err
	}

	staff, err := s.staff.FindByUser(ctx, pc.GuildID, req.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"user_id": req.UserID})
		}
		return nil, apperrors.MapError(err)
	}
	newRole := req.Role
	if newRole == "" {
		next, ok := res.Metadata["new_role"].(domain.StaffRole)
		if !ok {
			return nil, apperrors.NewValidationError("target role could not be determined", nil)
		}
		newRole = next
	}

	record := domain.PromotionRecord{
		ID:          uuid.NewString(),
		FromRole:    staff.Role,
		ToRole:      newRole,
		ActorUserID: pc.UserID,
		Reason:      req.Reason,
		ActionType:  action,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.staff.ChangeRole(ctx, staff, record, occupancyLimit(newRole, req.Bypass, res)); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewConflict("staff record changed concurrently; retry", map[string]any{"user_id": req.UserID})
		}
		return &StaffResult{Validation: res}, writeError(err)
	}

	s.logger.Info("staff rank changed",
		zap.String("guild_id", pc.GuildID),
		zap.String("user_id", req.UserID),
		zap.String("from", record.FromRole.String()),
		zap.String("to", record.ToRole.String()))
	s.audit.record(ctx, pc.GuildID, audit, pc.UserID, req.UserID, map[string]any{
		"from_role": record.FromRole,
		"to_role":   record.ToRole,
		"reason":    req.Reason,
	})
	s.audit.publish(ctx, event, pc.GuildID, req.UserID, pc.UserID, events.StaffChangedPayload{
		FromRole: record.FromRole,
		ToRole:   record.ToRole,
		Reason:   req.Reason,
	})

	return &StaffResult{Staff: staff, Validation: res, Sync: s.syncRoles(ctx, staff, pc.UserID)}, nil
}

// Fire terminates a member. It is refused while the member is on any active case.
func (s *StaffService) Fire(ctx context.Context, pc domain.PermissionContext, req FireRequest) (*StaffResult, error) {
	res, err := check(ctx, s.validator, pc, "staff", "fire", map[string]any{
		"user_id": req.UserID,
		"reason":  req.Reason,
	}, req.Bypass)
	if err != nil {
		return &StaffResult{Validation: res}, err
	}

	staff, err := s.staff.FindByUser(ctx, pc.GuildID, req.UserID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	record := domain.PromotionRecord{
		ID:          uuid.NewString(),
		FromRole:    staff.Role,
		ToRole:      staff.Role,
		ActorUserID: pc.UserID,
		Reason:      req.Reason,
		ActionType:  domain.ActionFire,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.staff.Terminate(ctx, staff, record); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewConflict("staff member is already terminated", map[string]any{"user_id": req.UserID})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("staff fired",
		zap.String("guild_id", pc.GuildID),
		zap.String("user_id", req.UserID),
		zap.String("role", staff.Role.String()))
	s.audit.record(ctx, pc.GuildID, domain.AuditStaffFired, pc.UserID, req.UserID, map[string]any{
		"role":   staff.Role,
		"reason": req.Reason,
	})
	s.audit.publish(ctx, events.EventStaffFired, pc.GuildID, req.UserID, pc.UserID, events.StaffChangedPayload{
		FromRole: staff.Role,
		ToRole:   staff.Role,
		Reason:   req.Reason,
	})

	return &StaffResult{Staff: staff, Validation: res, Sync: s.syncRoles(ctx, staff, pc.UserID)}, nil
}

// SetStatus deactivates or reactivates a member. Reactivation takes a slot in the
// member's rank like a hire does. Termination goes through Fire.
func (s *StaffService) SetStatus(ctx context.Context, pc domain.PermissionContext, req StatusChangeRequest) (*StaffResult, error) {
	res, err := check(ctx, s.validator, pc, "staff", "set-status", map[string]any{
		"user_id": req.UserID,
		"status":  string(req.Status),
		"reason":  req.Reason,
		"bypass":  req.Bypass,
	}, req.Bypass)
	if err != nil {
		return &StaffResult{Validation: res}, err
	}

	staff, err := s.staff.FindByUser(ctx, pc.GuildID, req.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"user_id": req.UserID})
		}
		return nil, apperrors.MapError(err)
	}
	if req.Status == domain.StaffStatusTerminated || !staff.Status.CanTransitionTo(req.Status) {
		return nil, apperrors.NewConflict("status change not allowed", map[string]any{
			"user_id": req.UserID,
			"from":    staff.Status,
			"to":      req.Status,
		})
	}

	from := staff.Status
	if err := s.staff.SetStatus(ctx, staff, req.Status, occupancyLimit(staff.Role, req.Bypass, res)); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewConflict("staff record changed concurrently; retry", map[string]any{"user_id": req.UserID})
		}
		return &StaffResult{Validation: res}, writeError(err)
	}

	s.logger.Info("staff status changed",
		zap.String("guild_id", pc.GuildID),
		zap.String("user_id", req.UserID),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)))
	s.audit.record(ctx, pc.GuildID, domain.AuditStaffStatusChanged, pc.UserID, req.UserID, map[string]any{
		"role":   staff.Role,
		"from":   from,
		"to":     req.Status,
		"reason": req.Reason,
	})

	return &StaffResult{Staff: staff, Validation: res, Sync: s.syncRoles(ctx, staff, pc.UserID)}, nil
}

// List returns the guild roster.
func (s *StaffService) List(ctx context.Context, guildID string, filter repository.StaffFilter) ([]domain.Staff, error) {
	roster, err := s.staff.FindByGuild(ctx, guildID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return roster, nil
}

// Get returns one staff record with its promotion history.
func (s *StaffService) Get(ctx context.Context, guildID, userID string) (*domain.Staff, error) {
	staff, err := s.staff.FindByUser(ctx, guildID, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// syncRoles applies platform roles after a roster change. Failures are logged
// and reported in the outcome; the roster change stands.
func (s *StaffService) syncRoles(ctx context.Context, staff *domain.Staff, actorID string) *SyncOutcome {
	if s.sync == nil || s.registry == nil {
		return nil
	}
	rm, err := s.registry.Get(ctx, staff.GuildID)
	if err != nil {
		s.logger.Warn("role map unavailable", zap.String("guild_id", staff.GuildID), zap.Error(err))
		return &SyncOutcome{UserID: staff.UserID, Error: err.Error()}
	}
	outcome, err := s.sync.SyncMember(ctx, rm, staff, actorID)
	if err != nil {
		s.logger.Warn("role sync failed", zap.String("user_id", staff.UserID), zap.Error(err))
	}
	return &outcome
}

// occupancyLimit returns the limit enforced by the conditional write. A granted
// bypass disables the count check; the single Managing Partner index still holds.
func occupancyLimit(role domain.StaffRole, bypass bool, res validation.Result) int {
	if bypass && res.BypassAvailable {
		return 0
	}
	return role.MaxCount()
}

func writeError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrRoleLimitReached):
		return apperrors.NewRoleLimit(err.Error(), nil)
	case errors.Is(err, apperrors.ErrStaffExists):
		return apperrors.NewConflict("user is already a staff member", nil)
	default:
		return apperrors.MapError(err)
	}
}
