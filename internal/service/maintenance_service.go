package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// MaintenanceService runs guild-wide checks and repairs: the consistency report,
// role sync, conflict scans and the audit log. Every operation requires senior
// staff, the guild owner or an administrator.
type MaintenanceService struct {
	validator Validator
	staff     repository.StaffRepository
	audit     repository.AuditLogRepository
	registry  *RoleMapRegistry
	sync      *RoleSyncService
	conflicts *RoleConflictService
	interval  int
	logger    *zap.Logger
}

// MaintenanceDependencies bundles collaborators. The platform-backed services
// may be nil when no chat platform is configured.
type MaintenanceDependencies struct {
	Validator Validator
	StaffRepo repository.StaffRepository
	AuditRepo repository.AuditLogRepository
	Registry  *RoleMapRegistry
	Sync      *RoleSyncService
	Conflicts *RoleConflictService
}

func NewMaintenanceService(deps MaintenanceDependencies, progressInterval int, logger *zap.Logger) *MaintenanceService {
	return &MaintenanceService{
		validator: deps.Validator,
		staff:     deps.StaffRepo,
		audit:     deps.AuditRepo,
		registry:  deps.Registry,
		sync:      deps.Sync,
		conflicts: deps.Conflicts,
		interval:  progressInterval,
		logger:    logger,
	}
}

var errPlatformUnavailable = apperrors.NewDomainError(apperrors.CodeInternal, "chat platform is not configured", http.StatusServiceUnavailable, nil)

func (s *MaintenanceService) authorize(ctx context.Context, pc domain.PermissionContext, operation string) error {
	_, err := check(ctx, s.validator, pc, validation.MaintenanceEntity, operation, map[string]any{}, false)
	return err
}

// Consistency runs every guild-wide cross-entity check. Findings are returned,
// never raised as an error.
func (s *MaintenanceService) Consistency(ctx context.Context, pc domain.PermissionContext) (validation.Result, error) {
	if err := s.authorize(ctx, pc, "consistency"); err != nil {
		return validation.NewResult(), err
	}
	res, err := s.validator.Validate(ctx, validation.Request{
		EntityType: "consistency",
		Operation:  "check",
		Permission: pc,
		Data:       map[string]any{},
	})
	if err != nil {
		return res, apperrors.NewInternalError(err)
	}
	return res, nil
}

// AuditLog lists the newest entries of a guild.
func (s *MaintenanceService) AuditLog(ctx context.Context, pc domain.PermissionContext, limit int) ([]domain.AuditEntry, error) {
	if err := s.authorize(ctx, pc, "audit"); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByGuild(ctx, pc.GuildID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// SyncMember re-applies platform roles for one staff member.
func (s *MaintenanceService) SyncMember(ctx context.Context, pc domain.PermissionContext, userID string) (*SyncOutcome, error) {
	if err := s.authorize(ctx, pc, "sync"); err != nil {
		return nil, err
	}
	if s.sync == nil || s.registry == nil {
		return nil, errPlatformUnavailable
	}
	staff, err := s.staff.FindByUser(ctx, pc.GuildID, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	rm, err := s.registry.Get(ctx, pc.GuildID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	outcome, err := s.sync.SyncMember(ctx, rm, staff, pc.UserID)
	if err != nil {
		return &outcome, apperrors.NewInternalError(err)
	}
	return &outcome, nil
}

// SyncGuild re-applies platform roles for the whole roster after refreshing the
// guild's role map.
func (s *MaintenanceService) SyncGuild(ctx context.Context, pc domain.PermissionContext, progress ProgressFunc) (BulkReport, error) {
	if err := s.authorize(ctx, pc, "sync"); err != nil {
		return BulkReport{GuildID: pc.GuildID}, err
	}
	if s.sync == nil || s.registry == nil {
		return BulkReport{GuildID: pc.GuildID}, errPlatformUnavailable
	}
	rm, err := s.registry.Refresh(ctx, pc.GuildID)
	if err != nil {
		return BulkReport{GuildID: pc.GuildID}, apperrors.NewInternalError(err)
	}
	report, err := s.sync.SyncGuild(ctx, rm, pc.UserID, s.interval, progress)
	if err != nil {
		return report, apperrors.MapError(err)
	}
	s.logger.Info("guild roles synchronized",
		zap.String("guild_id", pc.GuildID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, nil
}

// ScanConflicts lists members holding several rank roles.
func (s *MaintenanceService) ScanConflicts(ctx context.Context, pc domain.PermissionContext, progress ProgressFunc) (ScanReport, error) {
	if err := s.authorize(ctx, pc, "conflicts"); err != nil {
		return ScanReport{GuildID: pc.GuildID}, err
	}
	if s.conflicts == nil {
		return ScanReport{GuildID: pc.GuildID}, errPlatformUnavailable
	}
	report, err := s.conflicts.ScanGuild(ctx, pc.GuildID, progress)
	if err != nil {
		return report, apperrors.NewInternalError(err)
	}
	return report, nil
}

// ResolveConflicts repairs every conflict in the guild.
func (s *MaintenanceService) ResolveConflicts(ctx context.Context, pc domain.PermissionContext, progress ProgressFunc) (BulkReport, error) {
	if err := s.authorize(ctx, pc, "resolve"); err != nil {
		return BulkReport{GuildID: pc.GuildID}, err
	}
	if s.conflicts == nil {
		return BulkReport{GuildID: pc.GuildID}, errPlatformUnavailable
	}
	report, err := s.conflicts.ResolveGuild(ctx, pc.GuildID, pc.UserID, progress)
	if err != nil {
		return report, apperrors.NewInternalError(err)
	}
	return report, nil
}

// ResolveMember detects and repairs a conflict for one member. It returns nil
// when the member holds at most one rank role.
func (s *MaintenanceService) ResolveMember(ctx context.Context, pc domain.PermissionContext, userID string) (*ResolutionResult, error) {
	if err := s.authorize(ctx, pc, "resolve"); err != nil {
		return nil, err
	}
	if s.conflicts == nil {
		return nil, errPlatformUnavailable
	}
	conflict, err := s.conflicts.DetectMember(ctx, pc.GuildID, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if conflict == nil {
		return nil, nil
	}
	res := s.conflicts.Resolve(ctx, *conflict, pc.UserID)
	return &res, nil
}
