package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        int
	Environment string

	DBDriver string
	DBDSN    string

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	RefreshTokenTTL     time.Duration
	VerificationCodeTTL time.Duration
	ReaperInterval      time.Duration

	CookieSecure bool
	CORSOrigins  []string

	RedisAddr        string
	APIRateLimitRPM  int
	AuthRateLimitRPM int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELMetricsExportInterval time.Duration
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
}

// Load builds the configuration from the environment, applying defaults and
// validating the result. An optional .env file is consulted first without
// overriding variables already set.
func Load() (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envString("APP_ENV", "development"),

		DBDriver: envString("DB_DRIVER", "sqlite"),
		DBDSN:    envString("DB_DSN", "file:workbridge.db?cache=shared"),

		JWTSecret:      envString("JWT_SECRET", ""),
		JWTIssuer:      envString("JWT_ISSUER", "workbridge-auth"),
		AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		RefreshTokenTTL:     envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		VerificationCodeTTL: envDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
		ReaperInterval:      envDuration("TOKEN_REAPER_INTERVAL", time.Hour),

		CookieSecure: envBool("COOKIE_SECURE", true),
		CORSOrigins:  envList("CORS_ORIGINS", []string{"http://localhost:4200"}),

		RedisAddr:        envString("REDIS_ADDR", ""),
		APIRateLimitRPM:  envInt("API_RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM: envInt("AUTH_RATE_LIMIT_RPM", 30),

		OTELServiceName:           envString("OTEL_SERVICE_NAME", "workbridge-auth"),
		OTELEnvironment:           envString("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        envBool("OTEL_METRICS_ENABLED", false),
		OTELMetricsExportInterval: envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
		OTELTracingEnabled:        envBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           envBool("OTEL_LOGS_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.VerificationCodeTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("TOKEN_REAPER_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
