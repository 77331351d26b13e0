package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/observability"
	"github.com/spec-kit/firm-ops/internal/platform"
	"github.com/spec-kit/firm-ops/internal/repository"
)

// SyncOutcome lists the platform mutations made for one member.
type SyncOutcome struct {
	UserID          string   `json:"user_id"`
	Added           []string `json:"added,omitempty"`
	Removed         []string `json:"removed,omitempty"`
	ChannelsGranted []string `json:"channels_granted,omitempty"`
	ChannelsRevoked []string `json:"channels_revoked,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Changed reports whether any mutation was made.
func (o SyncOutcome) Changed() bool {
	return len(o.Added)+len(o.Removed)+len(o.ChannelsGranted)+len(o.ChannelsRevoked) > 0
}

// RoleSyncService keeps a member's platform roles and staff channel access in
// line with their staff record.
type RoleSyncService struct {
	client   platform.Client
	staff    repository.StaffRepository
	channels []config.ChannelAccess
	audit    auditTrail
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// RoleSyncDependencies bundles collaborators.
type RoleSyncDependencies struct {
	Client    platform.Client
	StaffRepo repository.StaffRepository
	AuditRepo repository.AuditLogRepository
	Metrics   *observability.Metrics
}

// NewRoleSyncService constructs the service.
func NewRoleSyncService(cfg config.DiscordConfig, deps RoleSyncDependencies, logger *zap.Logger) *RoleSyncService {
	return &RoleSyncService{
		client:   deps.Client,
		staff:    deps.StaffRepo,
		channels: cfg.ChannelAccess,
		audit:    auditTrail{repo: deps.AuditRepo, logger: logger},
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// SyncMember makes the member hold exactly the platform role of their rank, or
// no hierarchy role when the record is not active. Running it again without a
// state change performs no mutation.
func (s *RoleSyncService) SyncMember(ctx context.Context, rm *RoleMap, staff *domain.Staff, actorID string) (SyncOutcome, error) {
	outcome := SyncOutcome{UserID: staff.UserID}
	if s.client == nil {
		return outcome, errors.New("chat platform is not configured")
	}

	member, err := s.client.Member(ctx, staff.GuildID, staff.UserID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, fmt.Errorf("load member %s: %w", staff.UserID, err)
	}

	var target *platform.Role
	if staff.IsActive() {
		if role, ok := rm.RoleFor(staff.Role); ok {
			target = &role
		} else {
			s.logger.Warn("rank has no mapped role",
				zap.String("guild_id", staff.GuildID),
				zap.String("role", staff.Role.String()))
		}
	}

	var errs []error
	for _, held := range rm.Held(member.RoleIDs) {
		if target != nil && held.RoleID == target.ID {
			continue
		}
		if err := s.client.RemoveMemberRole(ctx, staff.GuildID, staff.UserID, held.RoleID); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", held.RoleName, err))
			continue
		}
		outcome.Removed = append(outcome.Removed, held.RoleID)
		s.metrics.RecordRoleMutation("remove")
	}
	if target != nil && !member.HasRole(target.ID) {
		if err := s.client.AddMemberRole(ctx, staff.GuildID, staff.UserID, target.ID); err != nil {
			errs = append(errs, fmt.Errorf("add %s: %w", target.Name, err))
		} else {
			outcome.Added = append(outcome.Added, target.ID)
			s.metrics.RecordRoleMutation("add")
		}
	}

	var synced *string
	if target != nil && (member.HasRole(target.ID) || len(outcome.Added) > 0) {
		id := target.ID
		synced = &id
	}
	if !sameID(staff.DiscordRoleID, synced) {
		if err := s.staff.UpdateDiscordRole(ctx, staff.GuildID, staff.UserID, synced); err != nil {
			errs = append(errs, fmt.Errorf("persist role id: %w", err))
		} else {
			staff.DiscordRoleID = synced
		}
	}

	errs = append(errs, s.syncChannels(ctx, staff, &outcome)...)

	if outcome.Changed() {
		s.logger.Info("member roles synchronized",
			zap.String("guild_id", staff.GuildID),
			zap.String("user_id", staff.UserID),
			zap.Strings("added", outcome.Added),
			zap.Strings("removed", outcome.Removed))
		s.audit.record(ctx, staff.GuildID, domain.AuditRoleSynced, actorID, staff.UserID, map[string]any{
			"role":             staff.Role,
			"status":           staff.Status,
			"added":            outcome.Added,
			"removed":          outcome.Removed,
			"channels_granted": outcome.ChannelsGranted,
			"channels_revoked": outcome.ChannelsRevoked,
		})
	}

	if err := errors.Join(errs...); err != nil {
		outcome.Error = err.Error()
		return outcome, err
	}
	return outcome, nil
}

// syncChannels grants configured channels to active staff at or above the
// channel's level and revokes them otherwise.
func (s *RoleSyncService) syncChannels(ctx context.Context, staff *domain.Staff, outcome *SyncOutcome) []error {
	var errs []error
	for _, ch := range s.channels {
		want := staff.IsActive() && staff.Role.Level() >= ch.MinLevel
		current, err := s.client.MemberOverwrite(ctx, ch.ChannelID, staff.UserID)
		if err != nil {
			errs = append(errs, fmt.Errorf("read overwrite %s: %w", ch.ChannelID, err))
			continue
		}
		switch {
		case want && (current == nil || current.Allow&platform.StaffChannelAllow != platform.StaffChannelAllow):
			if err := s.client.SetMemberOverwrite(ctx, ch.ChannelID, staff.UserID, platform.StaffChannelAllow, 0); err != nil {
				errs = append(errs, fmt.Errorf("grant %s: %w", ch.ChannelID, err))
				continue
			}
			outcome.ChannelsGranted = append(outcome.ChannelsGranted, ch.ChannelID)
			s.metrics.RecordRoleMutation("channel_grant")
		case !want && current != nil:
			if err := s.client.DeleteMemberOverwrite(ctx, ch.ChannelID, staff.UserID); err != nil {
				errs = append(errs, fmt.Errorf("revoke %s: %w", ch.ChannelID, err))
				continue
			}
			outcome.ChannelsRevoked = append(outcome.ChannelsRevoked, ch.ChannelID)
			s.metrics.RecordRoleMutation("channel_revoke")
		}
	}
	return errs
}

// BulkItem is the outcome for one member of a bulk operation.
type BulkItem struct {
	UserID  string `json:"user_id"`
	Success bool   `json:"success"`
	Detail  any    `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BulkReport aggregates a bulk operation.
type BulkReport struct {
	GuildID   string     `json:"guild_id"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

func (r *BulkReport) add(item BulkItem) {
	r.Processed++
	if item.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.Items = append(r.Items, item)
}

// ProgressFunc is called every few processed members and once at the end.
type ProgressFunc func(processed, total int)

func reportProgress(progress ProgressFunc, interval, processed, total int) {
	if progress == nil {
		return
	}
	if processed == total || (interval > 0 && processed%interval == 0) {
		progress(processed, total)
	}
}

// SyncGuild synchronizes every staff record of the guild sequentially. A
// failing member is recorded and the loop continues.
func (s *RoleSyncService) SyncGuild(ctx context.Context, rm *RoleMap, actorID string, interval int, progress ProgressFunc) (BulkReport, error) {
	report := BulkReport{GuildID: rm.GuildID}
	roster, err := s.staff.FindByGuild(ctx, rm.GuildID, repository.StaffFilter{})
	if err != nil {
		return report, err
	}
	report.Total = len(roster)
	for i := range roster {
		outcome, err := s.SyncMember(ctx, rm, &roster[i], actorID)
		if err != nil && errors.Is(err, platform.ErrNotFound) && !roster[i].IsActive() {
			err = nil
		}
		item := BulkItem{UserID: roster[i].UserID, Success: err == nil, Detail: outcome}
		if err != nil {
			item.Error = err.Error()
			s.logger.Warn("member sync failed", zap.String("user_id", roster[i].UserID), zap.Error(err))
		}
		report.add(item)
		reportProgress(progress, interval, report.Processed, report.Total)
	}
	return report, nil
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
