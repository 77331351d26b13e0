package dto

import "time"

// TokenRequest payload for POST /auth/token.
type TokenRequest struct {
	APIKey  string `json:"api_key"`
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Subject   string    `json:"subject"`
	GuildID   string    `json:"guild_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
