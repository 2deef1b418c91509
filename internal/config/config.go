package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Document store configuration
	StorageBackend   string // "azure", "sqlite" or "memory"
	StorageAccount   string
	StorageContainer string
	SQLitePath       string

	// Retrieval configuration
	QueryTimeout time.Duration
	DefaultLimit int
	SessionTTL   time.Duration

	// LLM configuration
	GeminiAPIKey string
	GeminiModel  string

	// Admin endpoints
	AdminAPIKey string

	// Enrichment configuration
	ScraperMode           string // "static" or "browser"
	EnrichmentConcurrency int
	EnableRefresh         bool

	// Schedule configuration
	ReportSchedule string // "daily" or "weekly"

	// Mention sources
	RedditClientID     string
	RedditClientSecret string
	Subreddits         []string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		StorageBackend:   getEnv("STORAGE_BACKEND", "sqlite"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "tool-radar"),
		SQLitePath:       getEnv("SQLITE_PATH", "tool-radar.db"),

		QueryTimeout: getDurationEnv("QUERY_TIMEOUT", 3*time.Second),
		DefaultLimit: getIntEnv("DEFAULT_LIMIT", 20),
		SessionTTL:   getDurationEnv("SESSION_TTL", 30*time.Minute),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		ScraperMode:           getEnv("SCRAPER_MODE", "static"),
		EnrichmentConcurrency: getIntEnv("ENRICHMENT_CONCURRENCY", 4),
		EnableRefresh:         getBoolEnv("ENABLE_REFRESH", true),

		ReportSchedule: getEnv("REPORT_SCHEDULE", "daily"),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		Subreddits: getSliceEnv("REDDIT_SUBREDDITS", []string{
			"artificial",
			"ChatGPT",
			"StableDiffusion",
			"MachineLearning",
			"OpenAI",
			"AITools",
		}),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LLMEnabled reports whether the optional assistant features can reach Gemini
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is 'azure'")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND is 'sqlite'")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'azure', 'sqlite' or 'memory'")
	}

	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.ScraperMode != "static" && c.ScraperMode != "browser" {
		return fmt.Errorf("SCRAPER_MODE must be 'static' or 'browser'")
	}

	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}

	if c.DefaultLimit <= 0 {
		return fmt.Errorf("DEFAULT_LIMIT must be positive")
	}

	if c.EnrichmentConcurrency <= 0 {
		c.EnrichmentConcurrency = 1
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
