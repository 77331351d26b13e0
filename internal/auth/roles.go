package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireGuild ensures the token is scoped to the :guildID route parameter.
func RequireGuild() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.GuildID != c.Params("guildID") {
			return fiber.NewError(http.StatusForbidden, "token is not valid for this guild")
		}
		return c.Next()
	}
}
