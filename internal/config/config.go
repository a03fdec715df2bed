package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v2"

	"homly-notify/internal/httpclient"
)

// Config is the root configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Admin        AdminConfig        `yaml:"admin"`
	Notification NotificationConfig `yaml:"notification"`
	Retention    RetentionConfig    `yaml:"retention"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowOrigins     []string `yaml:"allow_origins"`
	AllowMethods     []string `yaml:"allow_methods"`
	AllowHeaders     []string `yaml:"allow_headers"`
	ExposeHeaders    []string `yaml:"expose_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"` // seconds
}

// DatabaseConfig points at the notification history database.
type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// TriggerToken is the shared secret callers send in X-Trigger-Token.
	// Empty disables the trigger endpoints.
	TriggerToken string `yaml:"trigger_token"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	Rate    int  `yaml:"rate"`  // requests per second
	Burst   int  `yaml:"burst"`
}

type AdminConfig struct {
	Username      string        `yaml:"username"`
	PasswordHash  string        `yaml:"password_hash"` // bcrypt
	TokenSecret   string        `yaml:"token_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

type NotificationConfig struct {
	Telegram       TelegramConfig          `yaml:"telegram"`
	PlatformName   string                  `yaml:"platform_name"`
	CurrencySymbol string                  `yaml:"currency_symbol"`
	Timezone       string                  `yaml:"timezone"`
	HTTP           httpclient.ClientConfig `yaml:"http"`
}

// TelegramConfig holds the bot credentials. Empty or placeholder values
// are valid and disable delivery.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	BaseURL  string `yaml:"base_url"`
}

// RetentionConfig controls pruning of the notification history.
type RetentionConfig struct {
	MaxAge      time.Duration `yaml:"max_age"`
	PruneDelay  time.Duration `yaml:"prune_delay"`
	PrunePeriod time.Duration `yaml:"prune_period"`
}

// LoadConfig layers defaults, the optional YAML file at configPath, and
// environment overrides, then validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:          true,
				AllowOrigins:     []string{"*"},
				AllowMethods:     []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Trigger-Token"},
				ExposeHeaders:    []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           3600,
			},
		},
		Database: DatabaseConfig{
			Path:            "./notifications.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				Rate:    10,
				Burst:   20,
			},
		},
		Admin: AdminConfig{
			Username:      "admin",
			PasswordHash:  "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", // bcrypt of "admin123"
			TokenSecret:   "default-secret-key-change-in-production-min-32-characters",
			TokenDuration: 24 * time.Hour,
		},
		Notification: NotificationConfig{
			Telegram: TelegramConfig{
				BotToken: "REPLACE_TOKEN",
				ChatID:   "REPLACE_ID",
				BaseURL:  "https://api.telegram.org",
			},
			PlatformName:   "Homly",
			CurrencySymbol: "₹",
			Timezone:       "Asia/Kolkata",
			HTTP:           httpclient.DefaultConfig(),
		},
		Retention: RetentionConfig{
			MaxAge:      30 * 24 * time.Hour,
			PruneDelay:  time.Minute,
			PrunePeriod: 6 * time.Hour,
		},
	}
}

func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func overrideFromEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		config.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		config.Admin.PasswordHash = v
	}
	if v := os.Getenv("ADMIN_TOKEN_SECRET"); v != "" {
		config.Admin.TokenSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Admin.TokenDuration = d
		}
	}

	if v := os.Getenv("NOTIFY_TRIGGER_TOKEN"); v != "" {
		config.Security.TriggerToken = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Notification.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		config.Notification.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_API_BASE_URL"); v != "" {
		config.Notification.Telegram.BaseURL = v
	}
	if v := os.Getenv("NOTIFY_TIMEZONE"); v != "" {
		config.Notification.Timezone = v
	}
}

// Location resolves the display timezone for scheduled delivery times.
func (n NotificationConfig) Location() (*time.Location, error) {
	if n.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(n.Timezone)
}

// Validate checks the configuration. Telegram credentials are not
// required: a deployment without them runs with notifications skipped.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid server read_timeout: %v (must be positive)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid server write_timeout: %v (must be positive)", c.Server.WriteTimeout)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("invalid database max_open_conns: %d (must be positive)", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("invalid database max_idle_conns: %d (must be non-negative)", c.Database.MaxIdleConns)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %s (must be 'json' or 'text')", c.Logging.Format)
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Rate <= 0 {
			return fmt.Errorf("invalid rate_limit rate: %d (must be positive when enabled)", c.Security.RateLimit.Rate)
		}
		if c.Security.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate_limit burst: %d (must be positive when enabled)", c.Security.RateLimit.Burst)
		}
	}

	if t := c.Security.TriggerToken; t != "" && len(t) < 16 {
		return fmt.Errorf("security trigger_token must be at least 16 characters long")
	}

	if c.Admin.Username == "" {
		return fmt.Errorf("admin username is required")
	}
	if c.Admin.PasswordHash == "" {
		return fmt.Errorf("admin password_hash is required")
	}
	if len(c.Admin.TokenSecret) < 32 {
		return fmt.Errorf("admin token_secret must be at least 32 characters long")
	}
	if c.Admin.TokenDuration <= 0 {
		return fmt.Errorf("invalid admin token_duration: %v (must be positive)", c.Admin.TokenDuration)
	}

	if _, err := c.Notification.Location(); err != nil {
		return fmt.Errorf("invalid notification timezone %q: %w", c.Notification.Timezone, err)
	}

	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("invalid retention max_age: %v (must be non-negative)", c.Retention.MaxAge)
	}
	if c.Retention.MaxAge > 0 && c.Retention.PrunePeriod <= 0 {
		return fmt.Errorf("invalid retention prune_period: %v (must be positive when max_age is set)", c.Retention.PrunePeriod)
	}

	return nil
}
