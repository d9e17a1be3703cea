// Package config collects process configuration from HERON_-prefixed
// environment variables. Everything has a development default except
// the session secret, which must be provided.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string // HTTP listen address
	GRPCAddr    string // gRPC health listen address; empty disables it
	Environment string // "production" switches logging to JSON

	PGDSN string

	SessionSecret []byte
	SessionName   string
	SessionMaxAge int // seconds
	SecureCookies bool

	RateLimitRPS   float64
	RateLimitBurst int

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	EmailTokenTTL  time.Duration
}

// Load reads the environment. It fails fast on a missing session
// secret rather than signing cookies with an empty key.
func Load() (Config, error) {
	secret := os.Getenv("HERON_SESSION_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("HERON_SESSION_SECRET is required")
	}

	cfg := Config{
		Addr:           envOr("HERON_ADDR", ":8080"),
		GRPCAddr:       os.Getenv("HERON_GRPC_ADDR"),
		Environment:    envOr("HERON_ENV", "development"),
		PGDSN:          os.Getenv("HERON_PG_DSN"),
		SessionSecret:  []byte(secret),
		SessionName:    envOr("HERON_SESSION_NAME", "heron_session"),
		SessionMaxAge:  envInt("HERON_SESSION_MAX_AGE", 86400*14),
		RateLimitRPS:   envFloat("HERON_RATE_RPS", 50),
		RateLimitBurst: envInt("HERON_RATE_BURST", 100),
		VerifyTokenTTL: envDuration("HERON_VERIFY_TOKEN_TTL", 48*time.Hour),
		ResetTokenTTL:  envDuration("HERON_RESET_TOKEN_TTL", 2*time.Hour),
		EmailTokenTTL:  envDuration("HERON_EMAIL_TOKEN_TTL", 24*time.Hour),
	}
	cfg.SecureCookies = cfg.Environment == "production"
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
