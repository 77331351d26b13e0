package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/platform"
)

// NotificationService sends direct messages to members affected by domain events.
type NotificationService struct {
	client platform.Client
	logger *zap.Logger
	cfg    config.DiscordConfig
}

// NewNotificationService creates the service. A nil client turns every
// notification into a log line.
func NewNotificationService(client platform.Client, logger *zap.Logger, cfg config.DiscordConfig) *NotificationService {
	return &NotificationService{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// EventTypes lists the events that produce a notification. Conflict repairs are
// only announced when NotifyOnResolve is set.
func (n *NotificationService) EventTypes() []events.EventType {
	types := []events.EventType{
		events.EventStaffHired,
		events.EventStaffPromoted,
		events.EventStaffDemoted,
		events.EventStaffFired,
		events.EventApplicationReviewed,
	}
	if n.cfg.NotifyOnResolve {
		types = append(types, events.EventRoleConflictResolved)
	}
	return types
}

// Handle delivers the notification for one event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventStaffHired, events.EventStaffPromoted, events.EventStaffDemoted, events.EventStaffFired:
		return n.handleStaffChanged(ctx, event)
	case events.EventApplicationReviewed:
		return n.handleApplicationReviewed(ctx, event)
	case events.EventRoleConflictResolved:
		if !n.cfg.NotifyOnResolve {
			return nil
		}
		return n.handleConflictResolved(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleStaffChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StaffChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info(string(event.Type), zap.String("guild_id", event.GuildID), zap.String("user_id", event.UserID))
	return n.send(ctx, event, staffMessage(event.Type, payload))
}

func (n *NotificationService) handleApplicationReviewed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationReviewedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	msg := fmt.Sprintf("Your application for **%s** was %s.", payload.JobTitle, payload.Status)
	if payload.Status == domain.ApplicationStatusRejected && payload.Notes != "" {
		msg += "\nNotes: " + payload.Notes
	}
	return n.send(ctx, event, msg)
}

func (n *NotificationService) handleConflictResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleConflictResolvedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	msg := fmt.Sprintf("You held several firm ranks at once. You keep **%s**; %d conflicting role(s) were removed.",
		payload.Kept, len(payload.Removed))
	return n.send(ctx, event, msg)
}

func (n *NotificationService) send(ctx context.Context, event events.Event, content string) error {
	if n.client == nil {
		n.logger.Debug("notification skipped; no chat platform",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID))
		return nil
	}
	if err := n.client.SendDirectMessage(ctx, event.UserID, content); err != nil {
		return fmt.Errorf("notify %s: %w", event.UserID, err)
	}
	return nil
}

func staffMessage(t events.EventType, p events.StaffChangedPayload) string {
	var msg string
	switch t {
	case events.EventStaffHired:
		msg = fmt.Sprintf("Welcome to the firm! You have been hired as **%s**.", p.ToRole)
	case events.EventStaffPromoted:
		msg = fmt.Sprintf("Congratulations, you have been promoted from %s to **%s**.", p.FromRole, p.ToRole)
	case events.EventStaffDemoted:
		msg = fmt.Sprintf("You have been demoted from %s to **%s**.", p.FromRole, p.ToRole)
	case events.EventStaffFired:
		msg = fmt.Sprintf("Your employment as %s has ended.", p.FromRole)
	default:
		msg = fmt.Sprintf("Your staff record changed (%s).", t)
	}
	if p.Reason != "" {
		msg += "\nReason: " + p.Reason
	}
	return msg
}
