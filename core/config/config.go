package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// BotConfig holds identity and role settings of the bot.
type BotConfig struct {
	Name string `yaml:"name" envconfig:"BOT_NAME"`
	// OwnerID overrides the owner stored in persistence when set.
	OwnerID string       `yaml:"owner_id" envconfig:"BOT_OWNER_ID"`
	Replies RepliesConfig `yaml:"replies"`
}

// RepliesConfig overrides canned user-facing replies. Empty values keep defaults.
type RepliesConfig struct {
	Unrecognized string `yaml:"unrecognized"`
	Denied       string `yaml:"denied"`
	Cooldown     string `yaml:"cooldown"`
	Failure      string `yaml:"failure"`
	Blacklisted  string `yaml:"blacklisted"`
	Welcome      string `yaml:"welcome"`
}

// TelegramConfig holds transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_PATH"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig configures the flood guard applied to every inbound message
// before it reaches the classifier. Zero interval disables it.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst      int `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver   string         `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Dir      string         `yaml:"dir" envconfig:"STORAGE_DIR"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// AuditConfig controls the append-only message and command log.
type AuditConfig struct {
	Dir        string `yaml:"dir" envconfig:"AUDIT_DIR"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DispatchConfig tunes command execution.
type DispatchConfig struct {
	HandlerTimeoutSeconds int `yaml:"handler_timeout_seconds" envconfig:"DISPATCH_HANDLER_TIMEOUT_SECONDS"`
	CooldownSweepSeconds  int `yaml:"cooldown_sweep_seconds" envconfig:"DISPATCH_COOLDOWN_SWEEP_SECONDS"`
}

// HTTPConfig configures the registration endpoint. Empty listen disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"

	// StorageJSON keeps roles, blacklist and rules in JSON files.
	StorageJSON = "json"
	// StoragePostgres keeps them in postgres tables.
	StoragePostgres = "postgres"
)

// Config aggregates the whole application configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// Load reads configuration from a YAML file, an optional .env file and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Bot.Name) == "" {
		cfg.Bot.Name = "Orbit Bot"
	}
	cfg.Bot.OwnerID = strings.TrimSpace(cfg.Bot.OwnerID)

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = StorageJSON
	}
	switch driver {
	case StorageJSON:
		if strings.TrimSpace(cfg.Storage.Dir) == "" {
			cfg.Storage.Dir = "data"
		}
	case StoragePostgres:
		db := &cfg.Storage.Database
		if db.Host == "" || db.Name == "" {
			return fmt.Errorf("storage.database.host and storage.database.name are required for postgres")
		}
		if db.Port == "" {
			db.Port = "5432"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.MaxConnections <= 0 {
			db.MaxConnections = 5
		}
		if db.MigrationsDir == "" {
			db.MigrationsDir = "migrations"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: json, postgres", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	if cfg.Audit.MaxSizeMB <= 0 {
		cfg.Audit.MaxSizeMB = 10
	}
	if cfg.Audit.MaxBackups < 0 || cfg.Audit.MaxAgeDays < 0 {
		return fmt.Errorf("audit.max_backups and audit.max_age_days must be >= 0")
	}

	if cfg.Dispatch.HandlerTimeoutSeconds < 0 {
		return fmt.Errorf("dispatch.handler_timeout_seconds must be >= 0")
	}
	if cfg.Dispatch.HandlerTimeoutSeconds == 0 {
		cfg.Dispatch.HandlerTimeoutSeconds = 30
	}
	if cfg.Dispatch.CooldownSweepSeconds <= 0 {
		cfg.Dispatch.CooldownSweepSeconds = 300
	}
	return nil
}
