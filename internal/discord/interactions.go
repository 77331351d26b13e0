package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/command"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/platform"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// maxMessageLength is the content limit of an interaction reply.
const maxMessageLength = 2000

// Executor runs a command.
type Executor interface {
	Execute(ctx context.Context, req command.Request) (*command.Response, error)
}

// InteractionRouter turns slash command interactions into command requests.
type InteractionRouter struct {
	executor Executor
	client   platform.Client
	timeout  time.Duration
	logger   *zap.Logger
}

func NewInteractionRouter(executor Executor, client platform.Client, timeout time.Duration, logger *zap.Logger) *InteractionRouter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InteractionRouter{executor: executor, client: client, timeout: timeout, logger: logger}
}

// Handle is registered with session.AddHandler.
func (r *InteractionRouter) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		r.reply(s, i, "Firm commands can only be used inside a server.")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		r.logger.Warn("interaction defer failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req := r.buildRequest(ctx, i)
	resp, err := r.executor.Execute(ctx, req)
	content := formatReply(resp, err)
	if _, editErr := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); editErr != nil {
		r.logger.Warn("interaction reply failed", zap.String("command", req.Key()), zap.Error(editErr))
	}
}

func (r *InteractionRouter) buildRequest(ctx context.Context, i *discordgo.InteractionCreate) command.Request {
	data := i.ApplicationCommandData()
	entity, operation, params := flattenOptions(data.Name, data.Options)

	pc := domain.PermissionContext{
		GuildID:       i.GuildID,
		UserID:        i.Member.User.ID,
		MemberRoleIDs: append([]string(nil), i.Member.Roles...),
		IsAdmin:       i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	if r.client != nil {
		owner, err := r.client.GuildOwnerID(ctx, i.GuildID)
		if err != nil {
			r.logger.Warn("guild owner lookup failed", zap.String("guild_id", i.GuildID), zap.Error(err))
		}
		pc.IsGuildOwner = owner != "" && owner == pc.UserID
	}
	return command.Request{Entity: entity, Operation: operation, Permission: pc, Params: params}
}

// flattenOptions maps "/name sub opt:value" to entity name, operation sub and
// the sub-command's options.
func flattenOptions(name string, options []*discordgo.ApplicationCommandInteractionDataOption) (string, string, map[string]any) {
	params := map[string]any{}
	operation := ""
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			operation = opt.Name
			for _, sub := range opt.Options {
				params[sub.Name] = sub.Value
			}
			continue
		}
		params[opt.Name] = opt.Value
	}
	return name, operation, params
}

func formatReply(resp *command.Response, err error) string {
	var b strings.Builder
	if err != nil {
		de := apperrors.ToDomainError(err)
		b.WriteString("Error: " + de.Message)
		if de.Code == apperrors.CodeInternal {
			b.Reset()
			b.WriteString("Error: something went wrong, please try again later.")
		}
		if bypass, _ := de.Details["bypass_available"].(bool); bypass {
			b.WriteString("\nYou may retry with `bypass: true`.")
		}
		return truncate(b.String())
	}
	if resp == nil {
		return "Done."
	}
	b.WriteString(resp.Message)
	if resp.Validation != nil {
		for _, w := range resp.Validation.Warnings() {
			b.WriteString("\nWarning: " + w.Message)
		}
		for _, info := range resp.Validation.Infos() {
			b.WriteString("\nNote: " + info.Message)
		}
	}
	return truncate(b.String())
}

func truncate(s string) string {
	if len(s) <= maxMessageLength {
		return s
	}
	return s[:maxMessageLength-3] + "..."
}

func (r *InteractionRouter) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		r.logger.Warn("interaction reply failed", zap.Error(err))
	}
}

// RegisterCommands overwrites the guild's slash commands with the firm set.
func RegisterCommands(s *discordgo.Session, guildID string) error {
	if s.State == nil || s.State.User == nil {
		return fmt.Errorf("session is not open")
	}
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, SlashCommands())
	return err
}
