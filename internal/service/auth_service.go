package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/domain"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// TokenRequest asks for an access token acting as UserID within GuildID.
type TokenRequest struct {
	APIKey  string
	GuildID string
	UserID  string
	Subject domain.SubjectType
}

// AuthService issues operations API tokens to holders of the operator API key.
type AuthService struct {
	tokenMgr   *auth.TokenManager
	apiKeyHash string
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.TokenIssuer, cfg.AccessTokenTTLMinutes),
		apiKeyHash: cfg.APIKeyHash,
		logger:     logger,
	}
}

// IssueToken verifies the API key and signs a guild-scoped token. An empty
// subject means OPERATOR.
func (s *AuthService) IssueToken(_ context.Context, req TokenRequest) (*domain.Token, string, error) {
	if s.apiKeyHash == "" {
		return nil, "", apperrors.NewUnauthorized("token issuance is disabled")
	}
	if err := auth.CompareSecret(s.apiKeyHash, req.APIKey); err != nil {
		if errors.Is(err, auth.ErrSecretMismatch) {
			s.logger.Warn("rejected token request", zap.String("guild_id", req.GuildID))
		} else {
			s.logger.Error("operator API key hash is unusable", zap.Error(err))
		}
		return nil, "", apperrors.NewUnauthorized("invalid credentials")
	}
	if strings.TrimSpace(req.GuildID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, "", apperrors.NewValidationError("guild_id and user_id are required", nil)
	}
	subject := req.Subject
	if subject == "" {
		subject = domain.SubjectTypeOperator
	}
	if subject != domain.SubjectTypeOperator && subject != domain.SubjectTypeMember {
		return nil, "", apperrors.NewValidationError("unknown subject", map[string]any{"subject": subject})
	}
	meta, token, err := s.tokenMgr.GenerateToken(req.UserID, subject, req.GuildID)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	s.logger.Info("access token issued",
		zap.String("guild_id", req.GuildID),
		zap.String("user_id", req.UserID),
		zap.String("subject", string(subject)))
	return meta, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
