package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/platform/platformtest"
)

func TestNotificationsDirectMessageTheMember(t *testing.T) {
	fake := platformtest.New()
	n := NewNotificationService(fake, zap.NewNop(), config.DiscordConfig{})

	ctx := context.Background()
	require.NoError(t, n.Handle(ctx, events.Event{
		Type:    events.EventStaffPromoted,
		GuildID: guildID,
		UserID:  lawyerA,
		Payload: events.StaffChangedPayload{
			FromRole: domain.StaffRoleJuniorAssociate,
			ToRole:   domain.StaffRoleSeniorAssociate,
			Reason:   "great quarter",
		},
	}))
	require.NoError(t, n.Handle(ctx, events.Event{
		Type:    events.EventApplicationReviewed,
		GuildID: guildID,
		UserID:  newcomerID,
		Payload: events.ApplicationReviewedPayload{JobTitle: "Clerk", Status: domain.ApplicationStatusRejected, Notes: "try again"},
	}))

	require.Len(t, fake.DMs, 2)
	assert.Equal(t, lawyerA, fake.DMs[0].Target)
	assert.Contains(t, fake.DMs[0].Value, "promoted from Junior Associate to **Senior Associate**")
	assert.Contains(t, fake.DMs[0].Value, "Reason: great quarter")
	assert.Equal(t, newcomerID, fake.DMs[1].Target)
	assert.Contains(t, fake.DMs[1].Value, "Notes: try again")
}

func TestConflictNotificationsAreOptIn(t *testing.T) {
	event := events.Event{
		Type:    events.EventRoleConflictResolved,
		UserID:  lawyerA,
		Payload: events.RoleConflictResolvedPayload{Kept: "Senior Associate", Removed: []string{"role-para"}},
	}
	fake := platformtest.New()

	quiet := NewNotificationService(fake, zap.NewNop(), config.DiscordConfig{})
	assert.NotContains(t, quiet.EventTypes(), events.EventRoleConflictResolved)
	require.NoError(t, quiet.Handle(context.Background(), event))
	assert.Empty(t, fake.DMs)

	loud := NewNotificationService(fake, zap.NewNop(), config.DiscordConfig{NotifyOnResolve: true})
	assert.Contains(t, loud.EventTypes(), events.EventRoleConflictResolved)
	require.NoError(t, loud.Handle(context.Background(), event))
	require.Len(t, fake.DMs, 1)
	assert.Contains(t, fake.DMs[0].Value, "You keep **Senior Associate**; 1 conflicting role(s)")
}

func TestNotificationFailures(t *testing.T) {
	fake := platformtest.New()
	fake.Fail["dm:"+lawyerA] = errors.New("dms closed")
	n := NewNotificationService(fake, zap.NewNop(), config.DiscordConfig{})

	err := n.Handle(context.Background(), events.Event{
		Type:    events.EventStaffFired,
		UserID:  lawyerA,
		Payload: events.StaffChangedPayload{FromRole: domain.StaffRoleParalegal, ToRole: domain.StaffRoleParalegal},
	})
	assert.ErrorContains(t, err, "dms closed")

	err = n.Handle(context.Background(), events.Event{Type: events.EventStaffHired, UserID: lawyerB, Payload: "bogus"})
	assert.ErrorContains(t, err, "unexpected payload")
}

func TestNotificationsWithoutPlatformAreSkipped(t *testing.T) {
	n := NewNotificationService(nil, zap.NewNop(), config.DiscordConfig{})
	assert.NoError(t, n.Handle(context.Background(), events.Event{
		Type:    events.EventStaffHired,
		UserID:  lawyerA,
		Payload: events.StaffChangedPayload{ToRole: domain.StaffRoleParalegal},
	}))
}
