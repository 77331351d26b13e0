package domain

import "time"

// StaffStatus represents employment states for a staff record.
type StaffStatus string

const (
	StaffStatusActive     StaffStatus = "active"
	StaffStatusInactive   StaffStatus = "inactive"
	StaffStatusTerminated StaffStatus = "terminated"
)

// PromotionAction classifies an entry in the promotion history.
type PromotionAction string

const (
	ActionPromotion PromotionAction = "promotion"
	ActionDemotion  PromotionAction = "demotion"
	ActionHire      PromotionAction = "hire"
	ActionFire      PromotionAction = "fire"
)

// PromotionRecord is an immutable entry in a staff member's history.
type PromotionRecord struct {
	ID          string
	FromRole    StaffRole
	ToRole      StaffRole
	ActorUserID string
	Reason      string
	ActionType  PromotionAction
	CreatedAt   time.Time
}

// Staff is one employee of the firm within a guild.
type Staff struct {
	ID               string
	GuildID          string
	UserID           string
	Username         string
	Role             StaffRole
	Status           StaffStatus
	HiredAt          time.Time
	HiredBy          string
	DiscordRoleID    *string
	PromotionHistory []PromotionRecord
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsActive reports whether the record counts toward role occupancy.
func (s *Staff) IsActive() bool {
	return s != nil && s.Status == StaffStatusActive
}

// CanTransitionTo reports whether the status change is allowed. Terminated is absorbing.
func (s StaffStatus) CanTransitionTo(next StaffStatus) bool {
	switch s {
	case StaffStatusActive:
		return next == StaffStatusInactive || next == StaffStatusTerminated
	case StaffStatusInactive:
		return next == StaffStatusActive || next == StaffStatusTerminated
	default:
		return false
	}
}
