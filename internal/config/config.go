package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Refresh binding policies.
const (
	BindingStrict = "strict"
	BindingLedger = "ledger"
)

// Revocation ledger backends.
const (
	RevocationRedis    = "redis"
	RevocationPostgres = "postgres"
	RevocationMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Revocation   RevocationConfig
	RateLimit    RateLimitConfig
	Admin        AdminConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	FrontendURL           string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessSecret          string
	RefreshSecret         string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	BcryptCost            int
	RefreshCookieName     string
	RefreshBinding        string
}

// RevocationConfig selects where revoked refresh tokens are recorded.
type RevocationConfig struct {
	Backend   string
	KeyPrefix string
}

// RateLimitConfig holds sliding window limits per route group.
type RateLimitConfig struct {
	LoginLimit           int
	LoginWindowMinutes   int
	RefreshLimit         int
	RefreshWindowMinutes int
	AdminLimit           int
	AdminWindowMinutes   int
	SweepIntervalSeconds int
}

// AdminConfig describes the seeded administrator account.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	EmailFrom string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "research-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:3001"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessSecret:          getEnv("JWT_ACCESS_SECRET", devAccessSecret),
			RefreshSecret:         getEnv("JWT_REFRESH_SECRET", devRefreshSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 7*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RefreshCookieName:     getEnv("AUTH_REFRESH_COOKIE_NAME", "refreshToken"),
			RefreshBinding:        strings.ToLower(getEnv("AUTH_REFRESH_BINDING", BindingStrict)),
		},
		Revocation: RevocationConfig{
			Backend:   strings.ToLower(getEnv("REVOCATION_BACKEND", RevocationRedis)),
			KeyPrefix: getEnv("REVOCATION_KEY_PREFIX", "revoked"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit:           getEnvAsInt("RATE_LIMIT_LOGIN", 20),
			LoginWindowMinutes:   getEnvAsInt("RATE_LIMIT_LOGIN_WINDOW_MINUTES", 60),
			RefreshLimit:         getEnvAsInt("RATE_LIMIT_REFRESH", 30),
			RefreshWindowMinutes: getEnvAsInt("RATE_LIMIT_REFRESH_WINDOW_MINUTES", 15),
			AdminLimit:           getEnvAsInt("RATE_LIMIT_ADMIN", 100),
			AdminWindowMinutes:   getEnvAsInt("RATE_LIMIT_ADMIN_WINDOW_MINUTES", 60),
			SweepIntervalSeconds: getEnvAsInt("RATE_LIMIT_SWEEP_INTERVAL_SECONDS", 300),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "System Administrator"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("EMAIL_FROM", "noreply@example.com"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set"))
	} else if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if c.App.IsProduction() && (c.Auth.AccessSecret == devAccessSecret || c.Auth.RefreshSecret == devRefreshSecret) {
		errs = append(errs, errors.New("development JWT secrets are not allowed in production"))
	}
	switch c.Auth.RefreshBinding {
	case BindingStrict, BindingLedger:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_REFRESH_BINDING %q", c.Auth.RefreshBinding))
	}
	switch c.Revocation.Backend {
	case RevocationRedis, RevocationPostgres, RevocationMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown REVOCATION_BACKEND %q", c.Revocation.Backend))
	}
	if c.Revocation.Backend == RevocationPostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("REVOCATION_BACKEND=postgres requires POSTGRES_DSN"))
	}
	if _, err := url.Parse(c.App.FrontendURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid FRONTEND_URL: %w", err))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production cookie and error settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CookieDomain returns the frontend host the refresh cookie is scoped to.
// Loopback hosts yield an empty domain so the browser uses host-only cookies.
func (a AppConfig) CookieDomain() string {
	u, err := url.Parse(a.FrontendURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" || strings.EqualFold(host, "localhost") {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return ""
	}
	return host
}

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// SweepInterval returns how often idle limiter state and expired ledger rows are purged.
func (r RateLimitConfig) SweepInterval() time.Duration {
	if r.SweepIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.SweepIntervalSeconds) * time.Second
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
