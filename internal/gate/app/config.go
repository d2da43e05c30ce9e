package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment surface of the gate. Values are read once
// at startup and injected into components; nothing reads the environment
// after LoadConfig returns.
type Config struct {
	APIURL    string  // Required: MultiFactor API base URL
	APIKey    string  // Required: API key (also the assertion audience)
	APISecret string  // Required: API secret (also the assertion signing key)
	APIProxy  string  // Optional: HTTP proxy for API traffic
	APIMaxRPS float64 // Optional: outbound API request ceiling (default: 10)

	DirectoryDomains      []string      // Required: domains tried in order
	DirectoryBindDN       string        // Optional: service bind DN (anonymous bind when empty)
	DirectoryBindPassword string        // Optional
	DirectoryTimeout      time.Duration // Optional: per-operation LDAP timeout (default: 10s)
	DirectoryMaxQueries   int64         // Optional: concurrent LDAP query cap (default: 8)
	DirectoryCacheTTL     time.Duration // Optional: profile + membership TTL (default: 15m)

	SecondFactorGroup     string   // Optional: 2FA applies to members only; empty means everyone
	IdentityAttribute     string   // Optional: attribute overriding the 2FA identity
	PhoneAttributes       []string // Optional: probed in order for the user's phone
	SystemAccountPrefixes []string // Optional: extra exempt prefixes on top of the defaults

	BypassWhenAPIUnreachable bool          // Optional: default true
	APILifeCheckInterval     time.Duration // Optional: bypass window length (default: 15m)
	AllowTTL                 time.Duration // Optional: cached allow verdict (default: 45s)
	DenyTTL                  time.Duration // Optional: cached deny verdict (default: 60s)

	RedisAddr string // Optional: shared cache; in-process memory cache when empty

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Memory cache purge interval (default: 1m)
}

func LoadConfig() (Config, error) {
	cfg := Config{
		APIURL:    os.Getenv("GATE_API_URL"),
		APIKey:    os.Getenv("GATE_API_KEY"),
		APISecret: os.Getenv("GATE_API_SECRET"),
		APIProxy:  os.Getenv("GATE_API_PROXY"),
		APIMaxRPS: getEnvFloatOrDefault("GATE_API_MAX_RPS", 10),

		DirectoryDomains:      getEnvList("GATE_DIRECTORY_DOMAINS"),
		DirectoryBindDN:       os.Getenv("GATE_DIRECTORY_BIND_DN"),
		DirectoryBindPassword: os.Getenv("GATE_DIRECTORY_BIND_PASSWORD"),
		DirectoryTimeout:      getEnvDurationOrDefault("GATE_DIRECTORY_TIMEOUT", 10*time.Second),
		DirectoryMaxQueries:   int64(getEnvIntOrDefault("GATE_DIRECTORY_MAX_QUERIES", 8)),
		DirectoryCacheTTL:     getEnvDurationOrDefault("GATE_DIRECTORY_CACHE_TTL", 15*time.Minute),

		SecondFactorGroup:     os.Getenv("GATE_2FA_GROUP"),
		IdentityAttribute:     os.Getenv("GATE_IDENTITY_ATTRIBUTE"),
		PhoneAttributes:       getEnvList("GATE_PHONE_ATTRIBUTES"),
		SystemAccountPrefixes: getEnvList("GATE_SYSTEM_ACCOUNT_PREFIXES"),

		BypassWhenAPIUnreachable: getEnvBoolOrDefault("GATE_BYPASS_WHEN_API_UNREACHABLE", true),
		APILifeCheckInterval:     getEnvDurationOrDefault("GATE_API_LIFE_CHECK_INTERVAL", 15*time.Minute),
		AllowTTL:                 getEnvDurationOrDefault("GATE_ALLOW_TTL", 45*time.Second),
		DenyTTL:                  getEnvDurationOrDefault("GATE_DENY_TTL", 60*time.Second),

		RedisAddr: os.Getenv("GATE_REDIS_ADDR"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Minute),
	}

	if len(cfg.PhoneAttributes) == 0 {
		cfg.PhoneAttributes = []string{"mobile", "telephoneNumber"}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("config: GATE_API_URL is required")
	}
	if c.APIKey == "" {
		return errors.New("config: GATE_API_KEY is required")
	}
	if c.APISecret == "" {
		return errors.New("config: GATE_API_SECRET is required")
	}
	if len(c.DirectoryDomains) == 0 {
		return errors.New("config: GATE_DIRECTORY_DOMAINS must name at least one domain")
	}
	if c.AllowTTL <= 0 || c.DenyTTL <= 0 {
		return errors.New("config: verdict TTLs must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return errors.New("config: SHUTDOWN_GRACE_PERIOD must be positive")
	}
	// The janitor ticker panics on a non-positive interval.
	if c.HousekeepingInterval <= 0 {
		return errors.New("config: HOUSEKEEPING_INTERVAL must be positive")
	}
	return nil
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
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

	// Bare integers are read as minutes, matching older deployments.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvList splits a semicolon-separated variable, dropping empty items.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ";") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
