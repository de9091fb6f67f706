// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Presence backends.
const (
	PresenceBackendMemory = "memory"
	PresenceBackendRedis  = "redis"
)

// Config holds the runtime configuration of the chat server.
type Config struct {
	Port               string
	DBPath             string
	DBDebug            bool
	SeedDemo           bool
	JWTSecretKey       string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	PresenceBackend    string
	RedisAddr          string
	RedisPassword      string
	PresenceTTL        time.Duration
	HeartbeatInterval  time.Duration
	MessageRate        int
	MessageBurst       int
	CORSAllowedOrigins string
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Port:               "3000",
		DBPath:             "tasklink.db",
		JWTSecretKey:       "your-secret-key-change-in-production",
		JWTIssuer:          "tasklink",
		AccessTokenTTL:     15 * time.Minute,
		PresenceBackend:    PresenceBackendMemory,
		RedisAddr:          "localhost:6379",
		PresenceTTL:        24 * time.Hour,
		HeartbeatInterval:  30 * time.Second,
		MessageRate:        10,
		MessageBurst:       20,
		CORSAllowedOrigins: "http://localhost:3000,http://localhost:5173",
	}
}

// Load reads an optional .env file and then the process environment.
// Unparsable values keep their defaults and are reported in the returned error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Default(), fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	setString(getenv, "PORT", &cfg.Port)
	setString(getenv, "DB_PATH", &cfg.DBPath)
	setString(getenv, "JWT_SECRET_KEY", &cfg.JWTSecretKey)
	setString(getenv, "JWT_ISSUER", &cfg.JWTIssuer)
	setString(getenv, "REDIS_ADDR", &cfg.RedisAddr)
	setString(getenv, "REDIS_PASSWORD", &cfg.RedisPassword)
	setString(getenv, "CORS_ALLOWED_ORIGINS", &cfg.CORSAllowedOrigins)

	if v := getenv("PRESENCE_BACKEND"); v != "" {
		switch backend := strings.ToLower(v); backend {
		case PresenceBackendMemory, PresenceBackendRedis:
			cfg.PresenceBackend = backend
		default:
			errs = append(errs, fmt.Errorf("PRESENCE_BACKEND: unknown backend %q", v))
		}
	}

	errs = appendErr(errs, setBool(getenv, "DB_DEBUG", &cfg.DBDebug))
	errs = appendErr(errs, setBool(getenv, "SEED_DEMO", &cfg.SeedDemo))
	errs = appendErr(errs, setDuration(getenv, "JWT_ACCESS_TTL", &cfg.AccessTokenTTL))
	errs = appendErr(errs, setDuration(getenv, "PRESENCE_TTL", &cfg.PresenceTTL))
	errs = appendErr(errs, setDuration(getenv, "HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval))
	errs = appendErr(errs, setInt(getenv, "MESSAGE_RATE", &cfg.MessageRate))
	errs = appendErr(errs, setInt(getenv, "MESSAGE_BURST", &cfg.MessageBurst))

	return cfg, errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setBool(getenv func(string) string, key string, dst *bool) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	*dst = d
	return nil
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	*dst = n
	return nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
