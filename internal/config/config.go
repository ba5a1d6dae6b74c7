package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
	Email     EmailConfig
	AI        AIConfig
	Cron      CronConfig
	Outbox    OutboxConfig
	Retention RetentionConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type EmailConfig struct {
	// ResendAPIKey empty means demo mode: sends are logged, not delivered.
	ResendAPIKey    string
	From            string
	NotifyRecipient string
}

type AIConfig struct {
	// GeminiAPIKey empty means analyses fall back to the default template.
	GeminiAPIKey string
	Model        string
}

type CronConfig struct {
	Secret     string
	DigestSpec string
}

type OutboxConfig struct {
	Workers      int
	BufferSize   int
	PollInterval time.Duration
}

type RetentionConfig struct {
	Days int
}

type RateLimitConfig struct {
	RPS   int
	Burst int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "localhost"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Environment: getEnv("APP_ENV", "development"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/beacon-monitor.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Email: EmailConfig{
			ResendAPIKey:    getEnv("RESEND_API_KEY", ""),
			From:            getEnv("EMAIL_FROM", ""),
			NotifyRecipient: getEnv("NOTIFY_RECIPIENT", "compliance-team@beacon-compliance.com"),
		},
		AI: AIConfig{
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Cron: CronConfig{
			Secret:     getEnv("CRON_SECRET", ""),
			DigestSpec: getEnv("DIGEST_CRON_SPEC", "0 8 * * *"),
		},
		Outbox: OutboxConfig{
			Workers:      getEnvInt("OUTBOX_WORKERS", 2),
			BufferSize:   getEnvInt("OUTBOX_BUFFER_SIZE", 20),
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 30*time.Second),
		},
		Retention: RetentionConfig{
			Days: getEnvInt("RETENTION_DAYS", 30),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvInt("RATE_LIMIT_RPS", 20),
			Burst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Outbox.Workers < 1 {
		return fmt.Errorf("outbox workers must be at least 1")
	}
	if c.Outbox.PollInterval < time.Second {
		return fmt.Errorf("outbox poll interval must be at least 1 second")
	}
	if c.Retention.Days < 1 {
		return fmt.Errorf("retention days must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
