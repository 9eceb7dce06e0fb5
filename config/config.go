package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Runner    RunnerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs, and
	// therefore max concurrent rendered query runs).
	MaxPages int // default: 10

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth enables anti-bot-detection evasions on every page.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types never fetched during a run.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// RunnerConfig controls query execution behavior.
type RunnerConfig struct {
	// DefaultTimeout is the per-run deadline applied by the API layer.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for a single page load.
	NavigationTimeout time.Duration // default: 15s

	// FetchTimeout is the deadline for one static-page fetch.
	FetchTimeout time.Duration // default: 30s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached result sets.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PAGEQUERY_HOST", "0.0.0.0"),
			Port: envIntOr("PAGEQUERY_PORT", 8080),
			Mode: envOr("PAGEQUERY_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PAGEQUERY_HEADLESS", true),
			MaxPages:     envIntOr("PAGEQUERY_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("PAGEQUERY_PROXY"),
			NoSandbox:    envBoolOr("PAGEQUERY_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PAGEQUERY_BROWSER_BIN"),
			Stealth:      envBoolOr("PAGEQUERY_STEALTH", false),
			BlockedResourceTypes: envSliceOr("PAGEQUERY_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Runner: RunnerConfig{
			DefaultTimeout:    envDurationOr("PAGEQUERY_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("PAGEQUERY_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("PAGEQUERY_NAV_TIMEOUT", 15*time.Second),
			FetchTimeout:      envDurationOr("PAGEQUERY_FETCH_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGEQUERY_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PAGEQUERY_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGEQUERY_RATE_RPS", 5.0),
			Burst:             envIntOr("PAGEQUERY_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PAGEQUERY_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("PAGEQUERY_LOG_LEVEL", "info"),
			Format: envOr("PAGEQUERY_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
