package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/repository"
)

// auditTrail appends audit entries and publishes events. Failures are logged and
// never undo the action being recorded.
type auditTrail struct {
	repo       repository.AuditLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (a auditTrail) record(ctx context.Context, guildID string, action domain.AuditAction, actorID, targetID string, details map[string]any) {
	if a.repo == nil {
		return
	}
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	if err := a.repo.LogAction(ctx, entry); err != nil {
		a.logger.Error("audit write failed",
			zap.String("guild_id", guildID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (a auditTrail) publish(ctx context.Context, eventType events.EventType, guildID, userID, actorID string, payload any) {
	if a.dispatcher == nil {
		return
	}
	_ = a.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		GuildID:   guildID,
		UserID:    userID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
