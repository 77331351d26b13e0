package events

import (
	"time"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStaffHired           EventType = "staff_hired"
	EventStaffPromoted        EventType = "staff_promoted"
	EventStaffDemoted         EventType = "staff_demoted"
	EventStaffFired           EventType = "staff_fired"
	EventRoleConflictResolved EventType = "role_conflict_resolved"
	EventApplicationReviewed  EventType = "application_reviewed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// StaffChangedPayload accompanies hire, promotion, demotion and fire events.
type StaffChangedPayload struct {
	FromRole domain.StaffRole `json:"from_role"`
	ToRole   domain.StaffRole `json:"to_role"`
	Reason   string           `json:"reason,omitempty"`
}

// RoleConflictResolvedPayload payload.
type RoleConflictResolvedPayload struct {
	Kept     string                  `json:"kept"`
	Removed  []string                `json:"removed"`
	Severity domain.ConflictSeverity `json:"severity"`
}

// ApplicationReviewedPayload payload.
type ApplicationReviewedPayload struct {
	JobTitle string                   `json:"job_title"`
	Status   domain.ApplicationStatus `json:"status"`
	Notes    string                   `json:"notes,omitempty"`
}
