package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean.
type Server struct {
	Addr              string
	DatabaseURL       string
	RedisURL          string
	JWTSigningKey     string
	AdminPasswordHash string

	ApplyRateLimit  int
	ApplyRateWindow time.Duration

	// TrustProxy enables X-Forwarded-For as the rate-limit key. Only set it
	// when the server sits behind a proxy that overwrites the header.
	TrustProxy bool
}

// FromEnv builds a Server config from environment variables with development
// defaults. An empty DatabaseURL selects the in-memory stores; an empty
// RedisURL selects the in-memory rate limiter.
func FromEnv() Server {
	addr := os.Getenv("ASTRO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	adminHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if adminHash == "" {
		// bcrypt hash of "admin" for local development
		adminHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	}

	limit := 5
	if raw := os.Getenv("APPLY_RATE_LIMIT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	return Server{
		Addr:              addr,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSigningKey:     jwtSigningKey,
		AdminPasswordHash: adminHash,
		ApplyRateLimit:    limit,
		ApplyRateWindow:   time.Minute,
		TrustProxy:        os.Getenv("TRUST_PROXY") == "true",
	}
}
