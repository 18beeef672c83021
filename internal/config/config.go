package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	Backend  BackendConfig
	Session  SessionConfig
	Checkout CheckoutConfig

	// DisplayConfigPath overrides the console.yml lookup directories.
	DisplayConfigPath string
}

type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	BreakerFailures    uint32
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerOpenTimeout time.Duration
}

type SessionConfig struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("SESSION_COOKIE_SECURE", false)
	}

	return Config{
		AppName:      getenv("APP_SERVICE", "console"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Backend: BackendConfig{
			BaseURL:            strings.TrimSpace(getenv("BACKEND_BASE_URL", "http://localhost:8000")),
			Token:              strings.TrimSpace(getenv("BACKEND_TOKEN", "")),
			Timeout:            getenvDuration("BACKEND_TIMEOUT", 15*time.Second),
			BreakerFailures:    uint32(getenvInt64("BACKEND_BREAKER_FAILURES", 5)),
			BreakerMaxRequests: uint32(getenvInt64("BACKEND_BREAKER_MAX_REQUESTS", 1)),
			BreakerInterval:    getenvDuration("BACKEND_BREAKER_INTERVAL", 0),
			BreakerOpenTimeout: getenvDuration("BACKEND_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			TTL:          getenvDuration("SESSION_TTL", 30*time.Minute),
			CookieName:   getenv("SESSION_COOKIE_NAME", "console_session"),
			CookieSecure: cookieSecure,
		},
		Checkout: CheckoutConfig{
			SuccessURL: strings.TrimSpace(getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/console/my-modules?checkout=success")),
			CancelURL:  strings.TrimSpace(getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/console/choose-plan?checkout=canceled")),
		},
		DisplayConfigPath: strings.TrimSpace(getenv("CONSOLE_CONFIG_PATH", "")),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("30s") or plain seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
