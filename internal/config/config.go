package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	JWTSigningKey       string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer           string        `mapstructure:"JWT_ISSUER"`
	TokenTTL            time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	AuditSpoolDir       string        `mapstructure:"AUDIT_SPOOL_DIR"`
	AuditReplayInterval time.Duration `mapstructure:"AUDIT_REPLAY_INTERVAL"`
	CacheTTL            time.Duration `mapstructure:"CACHE_TTL"`
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// devSigningKey signs tokens when ENV=development and no key is set.
const devSigningKey = "itrust-development-signing-key-do-not-use"

const minSigningKeyLen = 32

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_ISSUER", "itrust")
	v.SetDefault("TOKEN_TTL", "8h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AUDIT_SPOOL_DIR", "./data/audit-spool")
	v.SetDefault("AUDIT_REPLAY_INTERVAL", "30s")
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUDIT_SPOOL_DIR", "AUDIT_REPLAY_INTERVAL",
		"CACHE_TTL", "MIGRATIONS_DIR", "BODY_LIMIT", "REQUEST_TIMEOUT",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Unmarshal splits on commas but keeps the surrounding spaces.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		if cfg.JWTSigningKey == "" {
			cfg.JWTSigningKey = devSigningKey
		}
		log.Warn().Msg("server is running in DEVELOPMENT mode; set ENV=production and JWT_SIGNING_KEY for real deployments")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// a real signing key of at least 32 bytes is required.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if c.JWTSigningKey == devSigningKey {
			return fmt.Errorf("JWT_SIGNING_KEY must not be the development key when ENV=%q", c.Env)
		}
	}
	if len(c.JWTSigningKey) < minSigningKeyLen {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.JWTSigningKey))
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
