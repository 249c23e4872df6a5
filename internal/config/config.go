// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dstarenko/ideascope/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	SessionTTL      time.Duration
	JanitorInterval time.Duration
	RateLimit       RateLimitConfig
	LLM             llm.Config
	ConversationLog ConversationLogConfig
}

// RateLimitConfig controls per-user request throttling on chat turns.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	llmCfg := llm.DefaultConfig(getEnv("LLM_API_KEY", ""))
	llmCfg.BaseURL = getEnv("LLM_BASE_URL", llmCfg.BaseURL)
	llmCfg.Model = getEnv("LLM_MODEL", llmCfg.Model)
	llmCfg.Timeout = time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", int(llmCfg.Timeout.Seconds()))) * time.Second
	llmCfg.MaxTokens = getEnvInt("LLM_MAX_TOKENS", llmCfg.MaxTokens)
	llmCfg.Temperature = getEnvFloat("LLM_TEMPERATURE", llmCfg.Temperature)
	llmCfg.MinRequestGap = time.Duration(getEnvInt("LLM_MIN_REQUEST_GAP_MS", int(llmCfg.MinRequestGap.Milliseconds()))) * time.Millisecond

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/ideascope.db"),
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_MINUTES", 24*60)) * time.Minute,
		JanitorInterval: time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 5),
		},
		LLM: llmCfg,
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
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
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY cannot be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
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
