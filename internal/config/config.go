// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the auto.de listing source.
const (
	defaultBaseURL   = "https://www.auto.de/search?pageNumber=%d&activeSort=NEWEST_OFFERS_FIRST"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the application configuration. It is read once at startup and
// immutable for the process lifetime.
type Config struct {
	BaseURL    string
	SourceName string
	UserAgent  string

	MaxPages          int
	RequestTimeout    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxRetries        int
	RetryDelay        time.Duration

	DatabasePath    string
	DeleteOlderThan time.Duration

	MainLoopInterval time.Duration
	CheckRobotsTxt   bool
	MaxCycleFailures int

	TelegramAPIKey string
	TelegramChatID int64

	LogLevel string
}

// Load reads configuration from the environment, with a .env file as a
// fallback source when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:        getEnv("BASE_URL", defaultBaseURL),
		SourceName:     getEnv("SOURCE_NAME", "autode"),
		UserAgent:      getEnv("USER_AGENT", defaultUserAgent),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/carwatch.db"),
		TelegramAPIKey: os.Getenv("TELEGRAM_API_KEY"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.CheckRobotsTxt, err = getEnvBool("CHECK_ROBOTS_TXT", true); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = getEnvInt("MAX_PAGES", 5); err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvInt("REQUEST_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getEnvInt("RATE_LIMIT_REQUESTS", 10); err != nil {
		return nil, err
	}
	rateWindow, err := getEnvInt("RATE_LIMIT_WINDOW", 60)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getEnvInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	retryDelay, err := getEnvInt("RETRY_DELAY", 2)
	if err != nil {
		return nil, err
	}
	retentionDays, err := getEnvInt("DELETE_OLD_CARS_DAYS", 7)
	if err != nil {
		return nil, err
	}
	loopInterval, err := getEnvInt("MAIN_LOOP_INTERVAL", 300)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCycleFailures, err = getEnvInt("MAX_CYCLE_FAILURES", 3); err != nil {
		return nil, err
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
	}

	cfg.RequestTimeout = time.Duration(requestTimeout) * time.Second
	cfg.RateLimitWindow = time.Duration(rateWindow) * time.Second
	cfg.RetryDelay = time.Duration(retryDelay) * time.Second
	cfg.DeleteOlderThan = time.Duration(retentionDays) * 24 * time.Hour
	cfg.MainLoopInterval = time.Duration(loopInterval) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasTelegram reports whether Telegram alerting is configured. Missing
// credentials degrade alerting to log-only; they are not a startup error.
func (c *Config) HasTelegram() bool {
	return c.TelegramAPIKey != "" && c.TelegramChatID != 0
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("BASE_URL must not be empty")
	case c.MaxPages < 1:
		return fmt.Errorf("MAX_PAGES must be at least 1")
	case c.RequestTimeout < 5*time.Second:
		return fmt.Errorf("REQUEST_TIMEOUT must be at least 5 seconds")
	case c.RateLimitRequests < 1:
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	case c.RateLimitWindow <= 0:
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	case c.MaxRetries < 1:
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	case c.RetryDelay <= 0:
		return fmt.Errorf("RETRY_DELAY must be positive")
	case c.DeleteOlderThan <= 0:
		return fmt.Errorf("DELETE_OLD_CARS_DAYS must be at least 1")
	case c.MainLoopInterval <= 0:
		return fmt.Errorf("MAIN_LOOP_INTERVAL must be at least 1 second")
	case c.MaxCycleFailures < 1:
		return fmt.Errorf("MAX_CYCLE_FAILURES must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
