package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Auth          AuthConfig
	Discord       DiscordConfig
	Rules         RulesConfig
	UsernameCheck UsernameCheckConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32

	// StatementTimeoutMs bounds every statement; zero leaves the server default.
	StatementTimeoutMs int
	ApplicationName    string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
}

// AuthConfig defines operations API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	TokenIssuer           string
	AccessTokenTTLMinutes int
	APIKeyHash            string
	BcryptCost            int
}

// ChannelAccess grants a channel to every staff member at or above MinLevel.
type ChannelAccess struct {
	ChannelID string
	MinLevel  int
}

// DiscordConfig configures the chat platform connection.
type DiscordConfig struct {
	BotToken        string
	GuildIDs        []string
	NotifyOnResolve bool
	ChannelAccess   []ChannelAccess

	// ConflictScanMinutes schedules background conflict scans; zero disables them.
	ConflictScanMinutes int
	AutoResolve         bool
}

// ConflictScanInterval returns the background scan period, or zero when disabled.
func (d DiscordConfig) ConflictScanInterval() time.Duration {
	if d.ConflictScanMinutes <= 0 {
		return 0
	}
	return time.Duration(d.ConflictScanMinutes) * time.Minute
}

// RulesConfig holds tunable business limits.
type RulesConfig struct {
	MaxClientCases       int
	CaseWarningThreshold int
	ProgressInterval     int
}

// UsernameCheckConfig configures the third-party username lookup.
type UsernameCheckConfig struct {
	Enabled         bool
	BaseURL         string
	TimeoutSeconds  int
	CacheTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	channels, err := parseChannelAccess(os.Getenv("DISCORD_CHANNEL_ACCESS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISCORD_CHANNEL_ACCESS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "firm-ops"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                os.Getenv("POSTGRES_DSN"),
			MaxConns:           int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:           int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:      getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:      getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			StatementTimeoutMs: getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_MS", 5000),
			ApplicationName:    getEnv("APP_NAME", "firm-ops"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			Namespace: getEnv("REDIS_NAMESPACE", "firm-ops"),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("APP_NAME", "firm-ops"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenIssuer:           getEnv("AUTH_TOKEN_ISSUER", "firm-ops"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			APIKeyHash:            os.Getenv("AUTH_API_KEY_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Discord: DiscordConfig{
			BotToken:        os.Getenv("DISCORD_BOT_TOKEN"),
			GuildIDs:        getEnvAsList("DISCORD_GUILD_IDS"),
			NotifyOnResolve: getEnvAsBool("DISCORD_NOTIFY_ON_RESOLVE", false),
			ChannelAccess:   channels,

			ConflictScanMinutes: getEnvAsInt("DISCORD_CONFLICT_SCAN_MINUTES", 0),
			AutoResolve:         getEnvAsBool("DISCORD_CONFLICT_AUTO_RESOLVE", false),
		},
		Rules: RulesConfig{
			MaxClientCases:       getEnvAsInt("RULES_MAX_CLIENT_CASES", 5),
			CaseWarningThreshold: getEnvAsInt("RULES_CASE_WARNING_THRESHOLD", 3),
			ProgressInterval:     getEnvAsInt("RULES_PROGRESS_INTERVAL", 10),
		},
		UsernameCheck: UsernameCheckConfig{
			Enabled:         getEnvAsBool("USERNAME_CHECK_ENABLED", true),
			BaseURL:         getEnv("USERNAME_CHECK_BASE_URL", "https://users.roblox.com"),
			TimeoutSeconds:  getEnvAsInt("USERNAME_CHECK_TIMEOUT_SECONDS", 5),
			CacheTTLMinutes: getEnvAsInt("USERNAME_CHECK_CACHE_TTL_MINUTES", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP timeout for username lookups.
func (u UsernameCheckConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long a lookup result stays cached.
func (u UsernameCheckConfig) CacheTTL() time.Duration {
	if u.CacheTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(u.CacheTTLMinutes) * time.Minute
}

// parseChannelAccess reads "channelID:minLevel" pairs separated by commas.
func parseChannelAccess(raw string) ([]ChannelAccess, error) {
	var out []ChannelAccess
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("entry %q must be channel:level", item)
		}
		level, err := strconv.Atoi(parts[1])
		if err != nil || level < 1 || level > 6 {
			return nil, fmt.Errorf("entry %q has invalid level", item)
		}
		out = append(out, ChannelAccess{ChannelID: strings.TrimSpace(parts[0]), MinLevel: level})
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
