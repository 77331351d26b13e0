package discord

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/command"
	"github.com/spec-kit/firm-ops/internal/platform/platformtest"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

func hireInteraction(userID string, perms int64) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "guild-1",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: userID},
			Roles:       []string{"role-sp"},
			Permissions: perms,
		},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "staff",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "hire",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "user_id", Type: discordgo.ApplicationCommandOptionUser, Value: "123456789012345678"},
					{Name: "role", Type: discordgo.ApplicationCommandOptionString, Value: "Paralegal"},
					{Name: "bypass", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
				},
			}},
		},
	}}
}

func TestBuildRequest(t *testing.T) {
	fake := platformtest.New()
	fake.Owners["guild-1"] = "owner"
	router := NewInteractionRouter(command.NewRegistry(), fake, time.Second, zap.NewNop())

	req := router.buildRequest(context.Background(), hireInteraction("owner", 0))
	assert.Equal(t, "staff:hire", req.Key())
	assert.Equal(t, "123456789012345678", req.String("user_id"))
	assert.True(t, req.Bypass())
	assert.True(t, req.Permission.IsGuildOwner)
	assert.False(t, req.Permission.IsAdmin)
	assert.Equal(t, []string{"role-sp"}, req.Permission.MemberRoleIDs)

	req = router.buildRequest(context.Background(), hireInteraction("moderator", discordgo.PermissionAdministrator))
	assert.False(t, req.Permission.IsGuildOwner)
	assert.True(t, req.Permission.IsAdmin)
}

func TestFlattenOptionsWithoutSubCommand(t *testing.T) {
	entity, operation, params := flattenOptions("ping", []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "limit", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(5)},
	})
	assert.Equal(t, "ping", entity)
	assert.Empty(t, operation)
	assert.Equal(t, map[string]any{"limit": float64(5)}, params)
}

func TestFormatReply(t *testing.T) {
	res := validation.NewResult()
	res.AddWarning(validation.CodeCaseLimitApproaching, "client has 3 active cases", nil)
	res.AddInfo(validation.CodeCaseClosing, "closing releases 2 assignments", nil)
	got := formatReply(&command.Response{Message: "Opened case 2026-0001.", Validation: &res}, nil)
	assert.Equal(t, "Opened case 2026-0001.\nWarning: client has 3 active cases\nNote: closing releases 2 assignments", got)

	assert.Equal(t, "Done.", formatReply(nil, nil))

	limit := apperrors.NewRoleLimit("Paralegal limit reached (10/10)", map[string]any{"bypass_available": true})
	assert.Equal(t, "Error: Paralegal limit reached (10/10)\nYou may retry with `bypass: true`.", formatReply(nil, limit))

	internal := apperrors.NewInternalError(assert.AnError)
	assert.Equal(t, "Error: something went wrong, please try again later.", formatReply(nil, internal))
}

func TestFormatReplyTruncates(t *testing.T) {
	got := formatReply(&command.Response{Message: strings.Repeat("x", 2500)}, nil)
	assert.Len(t, got, maxMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSlashCommandsMatchRegistry(t *testing.T) {
	reg := command.NewRegistry()
	command.RegisterFirmCommands(reg, command.Services{})
	registered := map[string]bool{}
	for _, key := range reg.Commands() {
		registered[key] = true
	}

	for _, cmd := range SlashCommands() {
		require.NotEmpty(t, cmd.Options, cmd.Name)
		for _, sub := range cmd.Options {
			require.Equal(t, discordgo.ApplicationCommandOptionSubCommand, sub.Type)
			assert.True(t, registered[cmd.Name+":"+sub.Name], "slash command %s %s has no handler", cmd.Name, sub.Name)
		}
	}
}
