// Package discord adapts discordgo to the platform client and routes slash
// command interactions into the command registry.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/platform"
)

// membersPageSize is the maximum page size accepted by the members endpoint.
const membersPageSize = 1000

// Client implements platform.Client over a discordgo session.
type Client struct {
	session *discordgo.Session
	logger  *zap.Logger
}

var _ platform.Client = (*Client)(nil)

// NewSession creates a bot session. The session is not opened.
func NewSession(cfg config.DiscordConfig) (*discordgo.Session, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("discord bot token is not configured")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return session, nil
}

// NewClient wraps session.
func NewClient(session *discordgo.Session, logger *zap.Logger) *Client {
	return &Client{session: session, logger: logger}
}

func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]platform.Role, error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]platform.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, platform.Role{ID: r.ID, Name: r.Name, Position: r.Position})
	}
	return out, nil
}

func (c *Client) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	if g, err := c.session.State.Guild(guildID); err == nil && g.OwnerID != "" {
		return g.OwnerID, nil
	}
	g, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap(err)
	}
	return g.OwnerID, nil
}

func (c *Client) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err)
	}
	out := toMember(m)
	return &out, nil
}

func (c *Client) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	var (
		out   []platform.Member
		after string
	)
	for {
		page, err := c.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap(err)
		}
		for _, m := range page {
			out = append(out, toMember(m))
		}
		if len(page) < membersPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return wrap(c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return wrap(c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (c *Client) MemberOverwrite(ctx context.Context, channelID, userID string) (*platform.Overwrite, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err)
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeMember && ow.ID == userID {
			return &platform.Overwrite{TargetID: ow.ID, Allow: ow.Allow, Deny: ow.Deny}, nil
		}
	}
	return nil, nil
}

func (c *Client) SetMemberOverwrite(ctx context.Context, channelID, userID string, allow, deny int64) error {
	return wrap(c.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, allow, deny, discordgo.WithContext(ctx)))
}

func (c *Client) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	return wrap(c.session.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx)))
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return wrap(err)
	}
	if _, err := c.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return wrap(err)
	}
	return nil
}

func toMember(m *discordgo.Member) platform.Member {
	out := platform.Member{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
		out.Bot = m.User.Bot
	}
	return out
}

// wrap maps 404 responses to platform.ErrNotFound.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	return err
}
