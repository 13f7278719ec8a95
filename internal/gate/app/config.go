package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
)

type Config struct {
	Pepper         string // Required: secret key for credential digests (min 24 chars)
	AdminKeyHash   string // Optional: argon2id PHC hash of the static admin key
	AdminJWTSecret string // Optional: HS256 secret for admin bearer tokens

	DatabaseFile string // Optional: path to SQLite database file (default: ./gate.db)

	RedisAddr         string // Optional: distributed rate-limit backend; empty disables it
	RedisTimeout      time.Duration
	RateLimitRequired bool // Deny instead of degrading when Redis fails

	SessionTTL       time.Duration // Session lifetime (default: 30 days)
	KeyTTL           time.Duration // Access key lifetime; 0 means keys do not expire
	ActivityThrottle time.Duration // Min gap between last-activity writes (default: 1h)

	// Rate limit profiles
	RedeemLimit   RateLimitProfile
	RegisterLimit RateLimitProfile
	APILimit      RateLimitProfile
	AdminLimit    RateLimitProfile

	SecureCookies        bool
	Env                  string // Environment (dev, staging, prod) (default: dev)
	LogLevel             string // Log level (debug, info, warn, error) (default: info)
	LogFormat            string // Log format (json, text) (default: json)
	Port                 int    // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// RateLimitProfile is one env-overridable limit/window pair.
type RateLimitProfile struct {
	Limit  int
	Window time.Duration
}

// Policy converts a profile to a limiter policy under the given prefix.
func (p RateLimitProfile) Policy(prefix string) ratelimit.Policy {
	return ratelimit.Policy{Limit: p.Limit, Window: p.Window, Prefix: prefix}
}

func LoadConfig() Config {
	return Config{
		Pepper:         os.Getenv("GATE_PEPPER"),
		AdminKeyHash:   os.Getenv("GATE_ADMIN_KEY_HASH"),
		AdminJWTSecret: os.Getenv("GATE_ADMIN_JWT_SECRET"),

		DatabaseFile: getEnvOrDefault("GATE_DATABASE_FILE", "gate.db"),

		RedisAddr:         os.Getenv("GATE_REDIS_ADDR"),
		RedisTimeout:      getEnvDurationOrDefault("GATE_REDIS_TIMEOUT", 250*time.Millisecond),
		RateLimitRequired: getEnvBoolOrDefault("RATE_LIMIT_REQUIRE_REDIS", false),

		SessionTTL:       getEnvDurationOrDefault("GATE_SESSION_TTL", 30*24*time.Hour),
		KeyTTL:           getEnvDurationOrDefault("GATE_KEY_TTL", 0),
		ActivityThrottle: getEnvDurationOrDefault("GATE_ACTIVITY_THROTTLE", time.Hour),

		// Profiles match the production deployment this replaces.
		RedeemLimit:   loadProfile("REDEEM", RateLimitProfile{Limit: 50, Window: 10 * time.Minute}),
		RegisterLimit: loadProfile("REGISTER", RateLimitProfile{Limit: 20, Window: 15 * time.Minute}),
		APILimit:      loadProfile("API", RateLimitProfile{Limit: 100, Window: time.Hour}),
		AdminLimit:    loadProfile("ADMIN", RateLimitProfile{Limit: 30, Window: time.Minute}),

		SecureCookies:        getEnvBoolOrDefault("GATE_SECURE_COOKIES", true),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects configurations that would run the gate in a weakened
// state. Called from New so misconfiguration fails at startup.
func (c Config) Validate() error {
	if len(c.Pepper) < cryptox.MinPepperLength {
		return fmt.Errorf("GATE_PEPPER must be at least %d characters", cryptox.MinPepperLength)
	}
	if c.RateLimitRequired && c.RedisAddr == "" {
		return fmt.Errorf("RATE_LIMIT_REQUIRE_REDIS is set but GATE_REDIS_ADDR is empty")
	}
	return nil
}

func loadProfile(name string, fallback RateLimitProfile) RateLimitProfile {
	p := fallback
	if v := os.Getenv("RATELIMIT_" + name + "_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if v := os.Getenv("RATELIMIT_" + name + "_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.Window = d
		}
	}
	return p
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
