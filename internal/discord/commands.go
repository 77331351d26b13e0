package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/firm-ops/internal/domain"
)

func sub(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func opt(kind discordgo.ApplicationCommandOptionType, name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: kind, Name: name, Description: description, Required: required}
}

func choices(o *discordgo.ApplicationCommandOption, values ...string) *discordgo.ApplicationCommandOption {
	for _, v := range values {
		o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}
	return o
}

func roleOption(required bool) *discordgo.ApplicationCommandOption {
	labels := make([]string, 0, domain.MaxRoleLevel)
	for _, r := range domain.AllStaffRoles() {
		labels = append(labels, r.String())
	}
	return choices(opt(discordgo.ApplicationCommandOptionString, "role", "Firm rank", required), labels...)
}

// SlashCommands returns the firm's application command definitions. Each
// top-level command is an entity; its sub-commands are operations.
func SlashCommands() []*discordgo.ApplicationCommand {
	user := func(name, description string) *discordgo.ApplicationCommandOption {
		return opt(discordgo.ApplicationCommandOptionUser, name, description, true)
	}
	reason := opt(discordgo.ApplicationCommandOptionString, "reason", "Reason for the record", false)
	bypass := opt(discordgo.ApplicationCommandOptionBoolean, "bypass", "Override a bypassable limit (owner/admin only)", false)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "staff",
			Description: "Manage firm staff",
			Options: []*discordgo.ApplicationCommandOption{
				sub("hire", "Hire a member",
					user("user_id", "Member to hire"),
					opt(discordgo.ApplicationCommandOptionString, "username", "Game username", true),
					roleOption(true), reason, bypass),
				sub("promote", "Promote a staff member", user("user_id", "Staff member"), roleOption(false), reason, bypass),
				sub("demote", "Demote a staff member", user("user_id", "Staff member"), roleOption(false), reason, bypass),
				sub("fire", "Terminate a staff member", user("user_id", "Staff member"), reason, bypass),
				sub("set-status", "Put a staff member on leave or bring them back",
					user("user_id", "Staff member"),
					choices(opt(discordgo.ApplicationCommandOptionString, "status", "New status", true), "active", "inactive"),
					reason, bypass),
				sub("info", "Show a staff record", user("user_id", "Staff member")),
				sub("list", "List the roster", roleOption(false)),
			},
		},
		{
			Name:        "case",
			Description: "Manage client cases",
			Options: []*discordgo.ApplicationCommandOption{
				sub("create", "Open a case",
					user("client_id", "Client"),
					opt(discordgo.ApplicationCommandOptionString, "client_username", "Client game username", true),
					opt(discordgo.ApplicationCommandOptionString, "title", "Case title", true),
					opt(discordgo.ApplicationCommandOptionString, "description", "Case details", false),
					choices(opt(discordgo.ApplicationCommandOptionString, "priority", "Priority", false), "low", "medium", "high", "urgent")),
				sub("assign", "Assign a lawyer",
					opt(discordgo.ApplicationCommandOptionString, "case_id", "Case id", true),
					user("lawyer_id", "Lawyer"),
					opt(discordgo.ApplicationCommandOptionBoolean, "lead", "Make lead attorney", false)),
				sub("auto-assign", "Assign the least busy eligible lawyer",
					opt(discordgo.ApplicationCommandOptionString, "case_id", "Case id", true)),
				sub("close", "Close a case",
					opt(discordgo.ApplicationCommandOptionString, "case_id", "Case id", true),
					choices(opt(discordgo.ApplicationCommandOptionString, "result", "Outcome", true), "win", "loss", "settlement", "dismissed"),
					opt(discordgo.ApplicationCommandOptionString, "notes", "Result notes", false),
					bypass),
				sub("list", "List cases"),
			},
		},
		{
			Name:        "job",
			Description: "Job postings",
			Options: []*discordgo.ApplicationCommandOption{
				sub("post", "Post a job",
					opt(discordgo.ApplicationCommandOptionString, "title", "Job title", true),
					roleOption(true),
					opt(discordgo.ApplicationCommandOptionString, "description", "Job description", false)),
				sub("close", "Close a job", opt(discordgo.ApplicationCommandOptionString, "job_id", "Job id", true)),
				sub("apply", "Apply for a job",
					opt(discordgo.ApplicationCommandOptionString, "job_id", "Job id", true),
					opt(discordgo.ApplicationCommandOptionString, "username", "Game username", true)),
				sub("list", "List open jobs"),
			},
		},
		{
			Name:        "application",
			Description: "Job applications",
			Options: []*discordgo.ApplicationCommandOption{
				sub("review", "Accept or reject an application",
					opt(discordgo.ApplicationCommandOptionString, "application_id", "Application id", true),
					choices(opt(discordgo.ApplicationCommandOptionString, "decision", "Decision", true), "accepted", "rejected"),
					opt(discordgo.ApplicationCommandOptionString, "notes", "Notes for the applicant", false),
					bypass),
			},
		},
		{
			Name:        "role",
			Description: "Rank role maintenance",
			Options: []*discordgo.ApplicationCommandOption{
				sub("sync", "Re-apply a member's rank role", user("user_id", "Staff member")),
				sub("sync-all", "Re-apply rank roles for the whole roster"),
				sub("conflicts", "List members holding several rank roles"),
				sub("resolve", "Remove conflicting rank roles",
					opt(discordgo.ApplicationCommandOptionUser, "user_id", "Only this member", false)),
			},
		},
		{
			Name:        "consistency",
			Description: "Firm data checks",
			Options:     []*discordgo.ApplicationCommandOption{sub("check", "Run every consistency check")},
		},
		{
			Name:        "audit",
			Description: "Audit log",
			Options: []*discordgo.ApplicationCommandOption{
				sub("list", "Show recent audit entries",
					opt(discordgo.ApplicationCommandOptionInteger, "limit", "How many entries", false)),
			},
		},
	}
}
