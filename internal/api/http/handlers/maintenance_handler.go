package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/service"
)

// MaintenanceHandler exposes guild-wide checks and role repairs.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
	auth        *auth.AuthMiddleware
}

// NewMaintenanceHandler constructs handler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService, authMiddleware *auth.AuthMiddleware) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance, auth: authMiddleware}
}

func (h *MaintenanceHandler) permission(c *fiber.Ctx) (domain.PermissionContext, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.PermissionContext{}, fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return h.auth.PermissionContext(c.UserContext(), principal), nil
}

// Consistency handles GET /guilds/:guildID/consistency.
func (h *MaintenanceHandler) Consistency(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	res, err := h.maintenance.Consistency(c.UserContext(), pc)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}

// AuditLog handles GET /guilds/:guildID/audit?limit=n.
func (h *MaintenanceHandler) AuditLog(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	entries, err := h.maintenance.AuditLog(c.UserContext(), pc, c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// SyncGuild handles POST /guilds/:guildID/roles/sync.
func (h *MaintenanceHandler) SyncGuild(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	report, err := h.maintenance.SyncGuild(c.UserContext(), pc, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// SyncMember handles POST /guilds/:guildID/members/:userID/roles/sync.
func (h *MaintenanceHandler) SyncMember(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	outcome, err := h.maintenance.SyncMember(c.UserContext(), pc, c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": outcome})
}

// Conflicts handles GET /guilds/:guildID/roles/conflicts.
func (h *MaintenanceHandler) Conflicts(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	report, err := h.maintenance.ScanConflicts(c.UserContext(), pc, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ResolveConflicts handles POST /guilds/:guildID/roles/conflicts/resolve. A
// user_id query parameter limits the repair to one member.
func (h *MaintenanceHandler) ResolveConflicts(c *fiber.Ctx) error {
	pc, err := h.permission(c)
	if err != nil {
		return err
	}
	if userID := c.Query("user_id"); userID != "" {
		res, err := h.maintenance.ResolveMember(c.UserContext(), pc, userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": res})
	}
	report, err := h.maintenance.ResolveConflicts(c.UserContext(), pc, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
