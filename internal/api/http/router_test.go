package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/firm-ops/internal/api/http/handlers"
	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/command"
	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/observability"
	"github.com/spec-kit/firm-ops/internal/repository/memory"
	"github.com/spec-kit/firm-ops/internal/service"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

const testAPIKey = "operator-key"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	hash, err := auth.HashSecret(testAPIKey, bcrypt.MinCost)
	require.NoError(t, err)

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 5, APIKeyHash: hash}, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), nil, logger)

	commands := command.NewRegistry(command.Recover(logger))
	commands.Register("staff", "list", func(_ context.Context, req command.Request) (*command.Response, error) {
		return &command.Response{Message: "roster for " + req.Permission.GuildID}, nil
	})
	commands.Register("staff", "fire", func(context.Context, command.Request) (*command.Response, error) {
		return nil, apperrors.NewForbidden("senior staff only")
	})

	store := memory.NewStore()
	validator := validation.NewService(logger, nil,
		validation.NewCrossEntityStrategy(validation.NewCrossEntityValidator(validation.CrossEntityDependencies{
			StaffRepo:       store.Staff,
			CaseRepo:        store.Cases,
			JobRepo:         store.Jobs,
			ApplicationRepo: store.Applications,
		}, logger)),
		validation.NewBusinessStrategy(validation.NewBusinessRuleValidator(store.Staff, store.Cases, config.RulesConfig{MaxClientCases: 5}, logger)),
	)
	maintenance := service.NewMaintenanceService(service.MaintenanceDependencies{
		Validator: validator,
		StaffRepo: store.Staff,
		AuditRepo: store.Audit,
	}, 0, logger)

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("firm-ops", "test", nil, nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Commands:       handlers.NewCommandHandler(commands, authMiddleware),
		Maintenance:    handlers.NewMaintenanceHandler(maintenance, authMiddleware),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func issueToken(t *testing.T, app *fiber.App, guildID string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/auth/token", "",
		`{"api_key":"`+testAPIKey+`","guild_id":"`+guildID+`","user_id":"100"}`)
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "OPERATOR", data["subject"])
	return data["token"].(string)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthWithoutDependencies(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = do(t, app, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["redis"])
	assert.Equal(t, "disabled", deps["discord"])
}

func TestTokenIssuance(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/auth/token", "", `{"api_key":"nope","guild_id":"g","user_id":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))

	status, body = do(t, app, http.MethodPost, "/auth/token", "", `{"guild_id":"g"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(body))
}

func TestGuildRoutesRequireScopedToken(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/guilds/g1/commands", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))

	token := issueToken(t, app, "g1")
	status, body = do(t, app, http.MethodGet, "/guilds/g2/commands", token, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(body))

	status, body = do(t, app, http.MethodGet, "/guilds/g1/commands", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)
}

func TestExecuteCommand(t *testing.T) {
	app := newTestApp(t)
	token := issueToken(t, app, "g1")

	status, body := do(t, app, http.MethodPost, "/guilds/g1/commands/staff/list", token, "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "staff:list", data["command"])
	assert.Equal(t, "roster for g1", data["message"])

	status, body = do(t, app, http.MethodPost, "/guilds/g1/commands/staff/fire", token, `{"user_id":"2"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(body))

	status, body = do(t, app, http.MethodPost, "/guilds/g1/commands/staff/promote", token, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))

	status, _ = do(t, app, http.MethodPost, "/guilds/g1/commands/staff/list", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMaintenanceRoutes(t *testing.T) {
	app := newTestApp(t)
	token := issueToken(t, app, "g1")

	status, body := do(t, app, http.MethodGet, "/guilds/g1/consistency", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body["data"])

	status, body = do(t, app, http.MethodGet, "/guilds/g1/audit?limit=5", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])

	status, _ = do(t, app, http.MethodPost, "/guilds/g1/roles/sync", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = do(t, app, http.MethodGet, "/guilds/g1/roles/conflicts", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
