package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pmstrings "propmaster/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	Auth    AuthConfig
	Session SessionConfig
	Redis   RedisConfig
	Audit   AuditConfig

	// DatabaseURL points at the profiles database. Empty selects the
	// in-memory role store.
	DatabaseURL string
}

// AuthConfig selects the identity provider transport.
type AuthConfig struct {
	// URL of a GoTrue compatible auth API. Empty selects the in-process fake.
	URL    string
	APIKey string
	// DevSigningKey signs access tokens issued by the fake provider.
	DevSigningKey string
}

// SessionConfig tunes the controller and the provider's refresh loop.
type SessionConfig struct {
	RefreshMargin        time.Duration
	RefreshInterval      time.Duration
	ProfileMissingPolicy string
}

// RedisConfig holds Redis connection settings. Empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig enables the Kafka audit sink when Brokers is non-empty.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// Load reads an optional .env file and then the environment.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := Server{
		Addr:        getenv("PROPMASTER_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "text"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Auth: AuthConfig{
			URL:    strings.TrimRight(os.Getenv("AUTH_URL"), "/"),
			APIKey: os.Getenv("AUTH_API_KEY"),
			// Use a default for development - the fake provider is never used in production
			DevSigningKey: getenv("DEV_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Session: SessionConfig{
			RefreshMargin:        duration("SESSION_REFRESH_MARGIN", time.Minute),
			RefreshInterval:      duration("SESSION_REFRESH_INTERVAL", 15*time.Second),
			ProfileMissingPolicy: getenv("SESSION_PROFILE_MISSING_POLICY", "reset"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Brokers: pmstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:   getenv("AUDIT_TOPIC", "propmaster.audit"),
		},
	}

	switch cfg.Session.ProfileMissingPolicy {
	case "reset", "retry-once":
	default:
		errs = append(errs, fmt.Sprintf("SESSION_PROFILE_MISSING_POLICY: unknown policy %q", cfg.Session.ProfileMissingPolicy))
	}
	if cfg.Session.RefreshInterval > cfg.Session.RefreshMargin {
		errs = append(errs, "SESSION_REFRESH_INTERVAL must not exceed SESSION_REFRESH_MARGIN")
	}

	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
