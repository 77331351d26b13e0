package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-ops/internal/api/dto"
	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/command"
)

// CommandHandler runs firm commands over HTTP with the same registry the chat
// interactions use.
type CommandHandler struct {
	registry *command.Registry
	auth     *auth.AuthMiddleware
}

// NewCommandHandler constructs handler.
func NewCommandHandler(registry *command.Registry, authMiddleware *auth.AuthMiddleware) *CommandHandler {
	return &CommandHandler{registry: registry, auth: authMiddleware}
}

// List handles GET /guilds/:guildID/commands.
func (h *CommandHandler) List(c *fiber.Ctx) error {
	keys := h.registry.Commands()
	out := make([]dto.CommandInfo, 0, len(keys))
	for _, k := range keys {
		entity, operation, _ := strings.Cut(k, ":")
		out = append(out, dto.CommandInfo{Entity: entity, Operation: operation})
	}
	return c.JSON(fiber.Map{"data": out})
}

// Execute handles POST /guilds/:guildID/commands/:entity/:operation. The JSON
// body holds the command parameters.
func (h *CommandHandler) Execute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	params := map[string]any{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	ctx := c.UserContext()
	req := command.Request{
		Entity:     c.Params("entity"),
		Operation:  c.Params("operation"),
		Permission: h.auth.PermissionContext(ctx, principal),
		Params:     params,
	}
	resp, err := h.registry.Execute(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.CommandResponse{
			Command:    req.Key(),
			Message:    resp.Message,
			Data:       resp.Data,
			Validation: resp.Validation,
		},
	})
}
