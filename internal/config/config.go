package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"session-service/internal/db"
	"session-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis
	Redis db.RedisConfig

	// Sessions
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	RememberTTL        time.Duration `env:"SESSION_REMEMBER_TTL" envDefault:"720h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	CleanupInterval    time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"15m"`
	StatsCacheDuration time.Duration `env:"SESSION_STATS_CACHE" envDefault:"30s"`

	// JWT
	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"/app/secrets/jwt_private.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"/app/secrets/jwt_public.pem"`
	JWTIssuer         string        `env:"JWT_ISSUER" envDefault:"session-service"`
	JWTAudience       string        `env:"JWT_AUDIENCE" envDefault:"portal"`
	JWTKID            string        `env:"JWT_KID" envDefault:"session-key"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"2h"`

	// Shared key of the login collaborator, session issuing is disabled when empty
	ServiceKey string `env:"SERVICE_API_KEY"`

	// Audit trail, disabled when empty
	DatabaseURL string `env:"DATABASE_URL"`
}

// Load reads an optional .env file and parses the environment into AppConfig.
func Load() (AppConfig, error) {
	// the .env file is optional, system env vars win
	_ = godotenv.Load()
	return Parse()
}

// Parse builds AppConfig from the current process environment only.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return AppConfig{}, fmt.Errorf("parse config: SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.Redis.DB < 0 {
		return AppConfig{}, fmt.Errorf("parse config: REDIS_DB must not be negative, got %d", cfg.Redis.DB)
	}
	return cfg, nil
}

// JWT returns the key and claim settings for the token manager.
func (c AppConfig) JWT() jwt.Config {
	return jwt.Config{
		PrivPath: c.JWTPrivateKeyPath,
		PubPath:  c.JWTPublicKeyPath,
		Issuer:   c.JWTIssuer,
		Audience: c.JWTAudience,
		TTL:      c.AccessTokenTTL,
		KID:      c.JWTKID,
	}
}

func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func (c AppConfig) AuditEnabled() bool {
	return c.DatabaseURL != ""
}
