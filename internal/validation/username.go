package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/persistence"
)

// UsernameResult is the outcome of a third-party username lookup.
type UsernameResult struct {
	IsValid bool   `json:"is_valid"`
	UserID  int64  `json:"user_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UsernameChecker verifies that a game account exists.
type UsernameChecker interface {
	ValidateUsername(ctx context.Context, username string) (UsernameResult, error)
}

// HTTPUsernameChecker resolves usernames against the public users API and caches
// answers in Redis.
type HTTPUsernameChecker struct {
	baseURL string
	client  *http.Client
	cache   *persistence.Cache[UsernameResult]
	logger  *zap.Logger
}

// NewHTTPUsernameChecker builds a checker. A nil cache disables caching.
func NewHTTPUsernameChecker(cfg config.UsernameCheckConfig, cache *persistence.Cache[UsernameResult], logger *zap.Logger) *HTTPUsernameChecker {
	return &HTTPUsernameChecker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout()},
		cache:   cache,
		logger:  logger,
	}
}

type usernameLookupRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

type usernameLookupResponse struct {
	Data []struct {
		RequestedUsername string `json:"requestedUsername"`
		ID                int64  `json:"id"`
		Name              string `json:"name"`
	} `json:"data"`
}

// ValidateUsername reports whether username resolves to an account. Transport
// failures are returned as errors; callers treat them as advisory.
func (c *HTTPUsernameChecker) ValidateUsername(ctx context.Context, username string) (UsernameResult, error) {
	key := strings.ToLower(username)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		return *cached, nil
	} else if !errors.Is(err, persistence.ErrCacheMiss) {
		c.logger.Warn("username cache read failed", zap.Error(err))
	}

	body, err := json.Marshal(usernameLookupRequest{Usernames: []string{username}, ExcludeBannedUsers: true})
	if err != nil {
		return UsernameResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/usernames/users", bytes.NewReader(body))
	if err != nil {
		return UsernameResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return UsernameResult{}, fmt.Errorf("username lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UsernameResult{}, fmt.Errorf("username lookup: unexpected status %d", resp.StatusCode)
	}

	var decoded usernameLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return UsernameResult{}, fmt.Errorf("username lookup decode: %w", err)
	}

	result := UsernameResult{Error: "username not found"}
	for _, entry := range decoded.Data {
		if strings.EqualFold(entry.Name, username) || strings.EqualFold(entry.RequestedUsername, username) {
			result = UsernameResult{IsValid: true, UserID: entry.ID}
			break
		}
	}
	if err := c.cache.Set(ctx, key, result); err != nil {
		c.logger.Warn("username cache write failed", zap.Error(err))
	}
	return result, nil
}

// UsernameAsResult converts a lookup into advisory issues. Neither an unknown
// name nor a lookup failure blocks the operation.
func UsernameAsResult(field, username string, lookup UsernameResult, lookupErr error) Result {
	res := NewResult()
	ctx := map[string]any{"username": username}
	switch {
	case lookupErr != nil:
		res.Add(Issue{Severity: SeverityWarning, Code: CodeUsernameUnverified, Field: field,
			Message: "could not verify username; continuing without verification", Context: ctx})
	case !lookup.IsValid:
		msg := lookup.Error
		if msg == "" {
			msg = "username not found"
		}
		res.Add(Issue{Severity: SeverityWarning, Code: CodeUsernameUnverified, Field: field,
			Message: fmt.Sprintf("%s: %s", username, msg), Context: ctx})
	default:
		res.SetMeta("external_user_id", lookup.UserID)
	}
	return res
}
