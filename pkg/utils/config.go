package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("ANISYNC_JWT_SECRET")
	if secret == "" {
		// dev default (change for production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("ANISYNC_JWT_ISSUER")
	if issuer == "" {
		issuer = "anisync"
	}

	ttl := 24 * time.Hour
	if h := envInt("ANISYNC_JWT_TTL_HOURS", 0); h > 0 {
		ttl = time.Duration(h) * time.Hour
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: ttl,
	}
}

// SyncConfig tunes the upstream client and the job dispatcher. Defaults match
// the Jikan public ceiling (3 req/s) and a small single-process deployment.
type SyncConfig struct {
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
	RequestTimeout    time.Duration
	Workers           int
	QueueSize         int
}

func LoadSyncConfig() SyncConfig {
	cfg := SyncConfig{
		RequestsPerSecond: 3,
		Burst:             3,
		MaxAttempts:       5,
		RequestTimeout:    10 * time.Second,
		Workers:           4,
		QueueSize:         256,
	}

	if v := envFloat("ANISYNC_RATE_LIMIT", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := envInt("ANISYNC_RATE_BURST", 0); v > 0 {
		cfg.Burst = v
	}
	if v := envInt("ANISYNC_MAX_ATTEMPTS", 0); v > 0 {
		cfg.MaxAttempts = v
	}
	if v := envInt("ANISYNC_REQUEST_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}
	if v := envInt("ANISYNC_SYNC_WORKERS", 0); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("ANISYNC_QUEUE_SIZE", 0); v > 0 {
		cfg.QueueSize = v
	}
	return cfg
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
