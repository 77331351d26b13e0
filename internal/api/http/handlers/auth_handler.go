package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-ops/internal/api/dto"
	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/service"
)

// AuthHandler exposes token issuance.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.APIKey == "" {
		return fiber.NewError(http.StatusBadRequest, "api_key required")
	}

	meta, token, err := h.authService.IssueToken(c.UserContext(), service.TokenRequest{
		APIKey:  req.APIKey,
		GuildID: req.GuildID,
		UserID:  req.UserID,
		Subject: domain.SubjectType(req.Subject),
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     token,
			TokenID:   meta.ID,
			Subject:   string(meta.Subject),
			GuildID:   meta.GuildID,
			ExpiresAt: meta.ExpiresAt,
		},
	})
}
