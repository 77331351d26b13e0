package auth

import (
	"errors"
	"slices"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// TokenManager signs and verifies guild-scoped operations API tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a manager. A non-positive ttl means one hour.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims is the token payload. The registered subject is the acting platform
// user and the audience is the single guild the token is valid for.
type Claims struct {
	Kind domain.SubjectType `json:"kind"`
	jwt.RegisteredClaims
}

// UserID returns the acting platform user.
func (c *Claims) UserID() string { return c.Subject }

// GuildID returns the guild the token is scoped to.
func (c *Claims) GuildID() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// GenerateToken signs a token for userID acting in guildID.
func (tm *TokenManager) GenerateToken(userID string, kind domain.SubjectType, guildID string) (*domain.Token, string, error) {
	now := time.Now()
	meta := &domain.Token{
		ID:        uuid.NewString(),
		SubjectID: userID,
		Subject:   kind,
		GuildID:   guildID,
		IssuedAt:  now,
		ExpiresAt: now.Add(tm.ttl),
	}
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        meta.ID,
			Issuer:    tm.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{guildID},
			ExpiresAt: jwt.NewNumericDate(meta.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return nil, "", err
	}
	return meta, signed, nil
}

// ParseToken verifies the signature, issuer and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || len(claims.Audience) != 1 {
		return nil, errors.New("token must name one user and one guild")
	}
	if !slices.Contains([]domain.SubjectType{domain.SubjectTypeOperator, domain.SubjectTypeMember}, claims.Kind) {
		return nil, errors.New("unknown token kind")
	}
	return claims, nil
}
