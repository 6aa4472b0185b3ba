// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	FrontendURL       string
	DBPath            string
	SessionTTL        time.Duration
	Session           SessionConfig
	Stream            StreamConfig
	RateLimit         RateLimitConfig
	SSE               SSEConfig
	ProvidersFile     string
	Providers         []ProviderConfig
	AttemptTimeout    time.Duration
	CleanupDelayScale float64
	ConversationLog   ConversationLogConfig
}

// SessionConfig bounds each conversation.
type SessionConfig struct {
	RequestLimit  int
	HistoryWindow int
}

// StreamConfig controls the word-by-word reveal.
type StreamConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// RateLimitConfig limits chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// SSEConfig controls the chat event stream.
type SSEConfig struct {
	MaxRequestBodySize int64
	KeepAlive          time.Duration
	RetryDelay         time.Duration
	ReplayBuffer       int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables and, when set, the
// providers file.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/lovecleanup.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		Session: SessionConfig{
			RequestLimit:  getEnvInt("SESSION_REQUEST_LIMIT", 50),
			HistoryWindow: getEnvInt("HISTORY_WINDOW", 20),
		},
		Stream: StreamConfig{
			MinDelay: getEnvDuration("STREAM_MIN_DELAY", 30*time.Millisecond),
			MaxDelay: getEnvDuration("STREAM_MAX_DELAY", 70*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			MaxRequestBodySize: int64(getEnvInt("SSE_MAX_BODY_BYTES", 64*1024)),
			KeepAlive:          getEnvDuration("SSE_KEEPALIVE", 15*time.Second),
			RetryDelay:         getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
			ReplayBuffer:       getEnvInt("SSE_REPLAY_BUFFER", 100),
		},
		ProvidersFile:     getEnv("PROVIDERS_FILE", ""),
		AttemptTimeout:    getEnvDuration("PROVIDER_ATTEMPT_TIMEOUT", 45*time.Second),
		CleanupDelayScale: getEnvFloat("CLEANUP_DELAY_SCALE", 1),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if cfg.ProvidersFile != "" {
		providers, err := LoadProvidersFile(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		cfg.Providers = providers
	} else {
		cfg.Providers = DefaultProviders()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Session.RequestLimit <= 0 {
		return fmt.Errorf("SESSION_REQUEST_LIMIT must be > 0")
	}
	if c.Session.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be > 0")
	}
	if c.Stream.MinDelay < 0 || c.Stream.MaxDelay < c.Stream.MinDelay {
		return fmt.Errorf("STREAM_MIN_DELAY must be >= 0 and <= STREAM_MAX_DELAY")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.SSE.MaxRequestBodySize <= 0 {
		return fmt.Errorf("SSE_MAX_BODY_BYTES must be > 0")
	}
	if c.CleanupDelayScale < 0 {
		return fmt.Errorf("CLEANUP_DELAY_SCALE must be >= 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("provider %d: %w", i, err))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("provider %q declared twice", p.Name))
		}
		seen[p.Name] = true
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
