// Package platform defines the chat platform operations the firm relies on.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a guild, member or channel does not exist.
var ErrNotFound = errors.New("platform object not found")

// Permission bits granted on staff channels. The values match Discord's
// VIEW_CHANNEL and SEND_MESSAGES flags.
const (
	PermissionViewChannel  int64 = 1 << 10
	PermissionSendMessages int64 = 1 << 11

	StaffChannelAllow = PermissionViewChannel | PermissionSendMessages
)

// Role is a guild role.
type Role struct {
	ID       string
	Name     string
	Position int
}

// Member is a guild member with the ids of the roles they hold.
type Member struct {
	UserID   string
	Username string
	RoleIDs  []string
	Bot      bool
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Overwrite is a member-level channel permission overwrite.
type Overwrite struct {
	TargetID string
	Allow    int64
	Deny     int64
}

// Client is the outbound boundary to the chat platform. Every call is
// independently fallible.
type Client interface {
	GuildRoles(ctx context.Context, guildID string) ([]Role, error)
	GuildOwnerID(ctx context.Context, guildID string) (string, error)
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
	MemberOverwrite(ctx context.Context, channelID, userID string) (*Overwrite, error)
	SetMemberOverwrite(ctx context.Context, channelID, userID string, allow, deny int64) error
	DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
}
