package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/observability"
	"github.com/spec-kit/firm-ops/internal/platform"
	"github.com/spec-kit/firm-ops/internal/repository"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// DetectConflict inspects the hierarchy roles held by member. It returns nil
// unless two or more ranks are held. record is the member's staff record, if any.
func DetectConflict(rm *RoleMap, member platform.Member, record *domain.Staff) *domain.RoleConflict {
	held := rm.Held(member.RoleIDs)
	if len(held) < 2 {
		return nil
	}
	return &domain.RoleConflict{
		GuildID:     rm.GuildID,
		UserID:      member.UserID,
		Conflicting: held,
		Highest:     held[0],
		Severity:    conflictSeverity(held, record),
	}
}

// conflictSeverity grades a conflict by the level gap between the two highest
// ranks held. Holding Managing Partner against a staff record of another rank is
// always critical.
func conflictSeverity(held []domain.RoleMapping, record *domain.Staff) domain.ConflictSeverity {
	highest := held[0]
	if highest.Staff == domain.StaffRoleManagingPartner && record != nil && record.Role != domain.StaffRoleManagingPartner {
		return domain.ConflictSeverityCritical
	}
	switch gap := highest.Level() - held[1].Level(); {
	case gap >= 3:
		return domain.ConflictSeverityHigh
	case gap == 2:
		return domain.ConflictSeverityMedium
	default:
		return domain.ConflictSeverityLow
	}
}

// ResolutionResult reports the repair of one conflict.
type ResolutionResult struct {
	UserID   string                  `json:"user_id"`
	Severity domain.ConflictSeverity `json:"severity"`
	Kept     string                  `json:"kept"`
	Removed  []string                `json:"removed"`
	Failed   []string                `json:"failed,omitempty"`
	Resolved bool                    `json:"resolved"`
	Error    string                  `json:"error,omitempty"`
}

// ScanReport lists the conflicts found in a guild.
type ScanReport struct {
	GuildID   string                `json:"guild_id"`
	Scanned   int                   `json:"scanned"`
	Conflicts []domain.RoleConflict `json:"conflicts"`
	Errors    []BulkItem            `json:"errors,omitempty"`
}

// RoleConflictService detects and repairs members holding several rank roles.
type RoleConflictService struct {
	client   platform.Client
	registry *RoleMapRegistry
	staff    repository.StaffRepository
	audit    auditTrail
	metrics  *observability.Metrics
	interval int
	logger   *zap.Logger
}

// RoleConflictDependencies bundles collaborators.
type RoleConflictDependencies struct {
	Client     platform.Client
	Registry   *RoleMapRegistry
	StaffRepo  repository.StaffRepository
	AuditRepo  repository.AuditLogRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
}

// NewRoleConflictService constructs the service. progressInterval controls how
// often bulk operations report progress.
func NewRoleConflictService(deps RoleConflictDependencies, progressInterval int, logger *zap.Logger) *RoleConflictService {
	if progressInterval <= 0 {
		progressInterval = 10
	}
	return &RoleConflictService{
		client:   deps.Client,
		registry: deps.Registry,
		staff:    deps.StaffRepo,
		audit:    auditTrail{repo: deps.AuditRepo, dispatcher: deps.Dispatcher, logger: logger},
		metrics:  deps.Metrics,
		interval: progressInterval,
		logger:   logger,
	}
}

// DetectMember checks a single member.
func (s *RoleConflictService) DetectMember(ctx context.Context, guildID, userID string) (*domain.RoleConflict, error) {
	rm, err := s.registry.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	member, err := s.client.Member(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, apperrors.NewNotFound("member", map[string]any{"user_id": userID})
		}
		return nil, err
	}
	conflict := DetectConflict(rm, *member, s.lookupRecord(ctx, guildID, userID))
	if conflict != nil {
		s.metrics.RecordConflictDetected(string(conflict.Severity))
	}
	return conflict, nil
}

func (s *RoleConflictService) lookupRecord(ctx context.Context, guildID, userID string) *domain.Staff {
	record, err := s.staff.FindByUser(ctx, guildID, userID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn("staff lookup failed during conflict detection", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return record
}

// Resolve removes every conflicting role except the highest. A partial failure
// leaves Resolved false and is not retried.
func (s *RoleConflictService) Resolve(ctx context.Context, conflict domain.RoleConflict, actorID string) ResolutionResult {
	result := ResolutionResult{
		UserID:   conflict.UserID,
		Severity: conflict.Severity,
		Kept:     conflict.Highest.RoleID,
		Removed:  []string{},
	}
	for _, m := range conflict.ToRemove() {
		if err := s.client.RemoveMemberRole(ctx, conflict.GuildID, conflict.UserID, m.RoleID); err != nil {
			s.logger.Warn("conflicting role removal failed",
				zap.String("guild_id", conflict.GuildID),
				zap.String("user_id", conflict.UserID),
				zap.String("role_id", m.RoleID),
				zap.Error(err))
			result.Failed = append(result.Failed, m.RoleID)
			continue
		}
		result.Removed = append(result.Removed, m.RoleID)
		s.metrics.RecordRoleMutation("remove")
	}
	result.Resolved = len(result.Failed) == 0
	if !result.Resolved {
		result.Error = fmt.Sprintf("failed to remove %d of %d conflicting roles", len(result.Failed), len(result.Failed)+len(result.Removed))
	}
	s.metrics.RecordConflictResolved(string(conflict.Severity), result.Resolved)

	s.logger.Info("role conflict resolved",
		zap.String("guild_id", conflict.GuildID),
		zap.String("user_id", conflict.UserID),
		zap.String("severity", string(conflict.Severity)),
		zap.String("kept", conflict.Highest.RoleName),
		zap.Strings("removed", result.Removed),
		zap.Bool("resolved", result.Resolved))
	s.audit.record(ctx, conflict.GuildID, domain.AuditRoleConflictFixed, actorID, conflict.UserID, map[string]any{
		"severity": conflict.Severity,
		"kept":     conflict.Highest.RoleName,
		"removed":  result.Removed,
		"failed":   result.Failed,
		"resolved": result.Resolved,
	})
	if len(result.Removed) > 0 {
		s.audit.publish(ctx, events.EventRoleConflictResolved, conflict.GuildID, conflict.UserID, actorID, events.RoleConflictResolvedPayload{
			Kept:     conflict.Highest.RoleName,
			Removed:  result.Removed,
			Severity: conflict.Severity,
		})
	}
	return result
}

// ScanGuild checks every guild member sequentially.
func (s *RoleConflictService) ScanGuild(ctx context.Context, guildID string, progress ProgressFunc) (ScanReport, error) {
	report := ScanReport{GuildID: guildID, Conflicts: []domain.RoleConflict{}}
	rm, err := s.registry.Get(ctx, guildID)
	if err != nil {
		return report, err
	}
	members, err := s.client.Members(ctx, guildID)
	if err != nil {
		return report, err
	}
	roster, err := s.rosterByUser(ctx, guildID)
	if err != nil {
		s.logger.Warn("roster unavailable; severities computed without staff records", zap.String("guild_id", guildID), zap.Error(err))
	}

	total := len(members)
	for i, member := range members {
		if !member.Bot {
			if conflict := DetectConflict(rm, member, roster[member.UserID]); conflict != nil {
				report.Conflicts = append(report.Conflicts, *conflict)
				s.metrics.RecordConflictDetected(string(conflict.Severity))
			}
		}
		report.Scanned++
		reportProgress(progress, s.interval, i+1, total)
	}
	return report, nil
}

// ResolveGuild scans the guild and resolves every conflict found. Per-member
// failures are recorded and do not stop the loop.
func (s *RoleConflictService) ResolveGuild(ctx context.Context, guildID, actorID string, progress ProgressFunc) (BulkReport, error) {
	scan, err := s.ScanGuild(ctx, guildID, nil)
	if err != nil {
		return BulkReport{GuildID: guildID}, err
	}
	report := BulkReport{GuildID: guildID, Total: len(scan.Conflicts), Items: []BulkItem{}}
	for _, conflict := range scan.Conflicts {
		res := s.Resolve(ctx, conflict, actorID)
		report.add(BulkItem{UserID: conflict.UserID, Success: res.Resolved, Detail: res, Error: res.Error})
		reportProgress(progress, s.interval, report.Processed, report.Total)
	}
	return report, nil
}

func (s *RoleConflictService) rosterByUser(ctx context.Context, guildID string) (map[string]*domain.Staff, error) {
	out := map[string]*domain.Staff{}
	status := domain.StaffStatusActive
	roster, err := s.staff.FindByGuild(ctx, guildID, repository.StaffFilter{Status: &status})
	if err != nil {
		return out, err
	}
	for i := range roster {
		out[roster[i].UserID] = &roster[i]
	}
	return out, nil
}
