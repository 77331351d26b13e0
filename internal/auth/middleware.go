package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/platform"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	UserID      string
	GuildID     string
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	client platform.Client
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware. client may be nil; guild ownership
// is then never granted.
func NewAuthMiddleware(tokens *TokenManager, client platform.Client, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, client: client, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		m.logger.Debug("token rejected", zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		SubjectType: claims.Kind,
		UserID:      claims.UserID(),
		GuildID:     claims.GuildID(),
	})
	return c.Next()
}

// PermissionContext derives the caller's permission context. Operators act as
// administrators; guild ownership is confirmed with the platform.
func (m *AuthMiddleware) PermissionContext(ctx context.Context, p *Principal) domain.PermissionContext {
	pc := domain.PermissionContext{
		GuildID: p.GuildID,
		UserID:  p.UserID,
		IsAdmin: p.SubjectType == domain.SubjectTypeOperator,
	}
	if m.client == nil {
		return pc
	}
	owner, err := m.client.GuildOwnerID(ctx, p.GuildID)
	if err != nil {
		m.logger.Warn("guild owner lookup failed", zap.String("guild_id", p.GuildID), zap.Error(err))
		return pc
	}
	pc.IsGuildOwner = owner == p.UserID
	if member, err := m.client.Member(ctx, p.GuildID, p.UserID); err == nil {
		pc.MemberRoleIDs = member.RoleIDs
	}
	return pc
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
