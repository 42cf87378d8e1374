package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default request deadlines against the backend API. The admin and long
// deadlines exist because the hosted backend cold-starts and password
// hashing on login can take tens of seconds.
const (
	DefaultTimeout = 30 * time.Second
	AdminTimeout   = 60 * time.Second
	LongTimeout    = 120 * time.Second
)

// Config captures everything the gateway needs from the environment.
type Config struct {
	Addr string

	// Backend is the upstream registration/payment API base URL,
	// including any path prefix (e.g. https://api.example.com/api).
	BackendBaseURL string
	DefaultTimeout time.Duration
	AdminTimeout   time.Duration
	LongTimeout    time.Duration

	// SnapshotBackend selects the registration snapshot store:
	// "memory", "sqlite", or "redis".
	SnapshotBackend string
	SQLitePath      string
	RedisURL        string

	// SessionBackend selects the admin session store: "memory" or "file".
	SessionBackend string
	SessionPath    string
	// SessionSecret seals session entries at rest in the file store.
	SessionSecret string
	SessionTTL    time.Duration

	// Receipt labels rendered on every receipt view model.
	Institution string
	EventName   string
}

// Load builds a Config from the environment. A .env file in the working
// directory is honored when present so local runs match deployments.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("REGPAY_ADDR", ":8080"),
		BackendBaseURL:  strings.TrimRight(envOr("BACKEND_BASE_URL", "http://localhost:5000/api"), "/"),
		DefaultTimeout:  durationOr("REQUEST_TIMEOUT", DefaultTimeout),
		AdminTimeout:    durationOr("ADMIN_TIMEOUT", AdminTimeout),
		LongTimeout:     durationOr("LONG_TIMEOUT", LongTimeout),
		SnapshotBackend: envOr("SNAPSHOT_BACKEND", "sqlite"),
		SQLitePath:      envOr("SNAPSHOT_SQLITE_PATH", "regpay.db"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SessionBackend:  envOr("SESSION_BACKEND", "file"),
		SessionPath:     envOr("SESSION_PATH", ".regpay-session"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      durationOr("SESSION_TTL", 24*time.Hour),
		Institution:     envOr("RECEIPT_INSTITUTION", "FOSLA Academy"),
		EventName:       envOr("RECEIPT_EVENT", "Scholarship Screening"),
	}
	if cfg.SessionSecret == "" {
		// Development fallback; deployments must override.
		cfg.SessionSecret = "dev-session-secret-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
