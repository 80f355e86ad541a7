package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/stylebot/core/catalog"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS" validate:"gte=0"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT" validate:"gte=0,lte=65535"`
	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json kv text pretty"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting.
// ExcludeUpdates accepts update kinds that bypass limiting: "message", "photo", "command".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS" validate:"gte=0"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// InferenceConfig points at the model-inference backend.
type InferenceConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"INFERENCE_BASE_URL" validate:"required,url"`
	Token          string `yaml:"token" envconfig:"INFERENCE_TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"INFERENCE_TIMEOUT_SECONDS" validate:"gte=0"`
	ImageSize      int    `yaml:"image_size" envconfig:"INFERENCE_IMAGE_SIZE" validate:"gte=0,lte=2048"`
}

// SessionConfig controls the in-memory session store.
// IdleTTLSeconds of 0 keeps sessions for the process lifetime.
type SessionConfig struct {
	IdleTTLSeconds    int `yaml:"idle_ttl_seconds" envconfig:"SESSION_IDLE_TTL_SECONDS" validate:"gte=0"`
	SweepEverySeconds int `yaml:"sweep_every_seconds" envconfig:"SESSION_SWEEP_EVERY_SECONDS" validate:"gte=0"`
}

// DatabaseConfig holds the optional Postgres connection for the run journal.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"DB_ENABLED"`
	Host           string `yaml:"host" envconfig:"DB_HOST" validate:"required_if=Enabled true"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME" validate:"required_if=Enabled true"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS" validate:"gte=0"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// BotConfig carries conversation-level options.
type BotConfig struct {
	// FixedTechnology skips the technology choice when set.
	FixedTechnology string `yaml:"fixed_technology" envconfig:"BOT_FIXED_TECHNOLOGY"`
	Contacts        string `yaml:"contacts"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateMessage identifies plain text messages for rate limit exclusions.
	UpdateMessage = "message"
	// UpdatePhoto identifies photo and image document uploads.
	UpdatePhoto = "photo"
	// UpdateCommand identifies slash commands.
	UpdateCommand = "command"
)

const (
	defaultInferenceTimeoutSeconds = 60
	defaultImageSize               = 256
	defaultSweepEverySeconds       = 300
	defaultMigrationsDir           = "migrations"
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig       `yaml:"telegram"`
	Webhook   WebhookConfig        `yaml:"webhook"`
	Logging   LoggingConfig        `yaml:"logging"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	Inference InferenceConfig      `yaml:"inference"`
	Session   SessionConfig        `yaml:"session"`
	Database  DatabaseConfig       `yaml:"database"`
	Bot       BotConfig            `yaml:"bot"`
	Catalog   []catalog.Technology `yaml:"catalog" ignored:"true"`
}

var validate = validator.New()

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, overlays environment variables and normalizes the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
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

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

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
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateMessage: {},
		UpdatePhoto:   {},
		UpdateCommand: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: message, photo, command", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	cfg.Inference.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Inference.BaseURL), "/")
	if cfg.Inference.TimeoutSeconds == 0 {
		cfg.Inference.TimeoutSeconds = defaultInferenceTimeoutSeconds
	}
	if cfg.Inference.ImageSize == 0 {
		cfg.Inference.ImageSize = defaultImageSize
	}
	if cfg.Session.IdleTTLSeconds > 0 && cfg.Session.SweepEverySeconds == 0 {
		cfg.Session.SweepEverySeconds = defaultSweepEverySeconds
	}
	if cfg.Database.Enabled {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = defaultMigrationsDir
		}
	}
	cfg.Bot.FixedTechnology = strings.ToLower(strings.TrimSpace(cfg.Bot.FixedTechnology))
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = catalog.DefaultTechnologies()
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Timeout returns the inference timeout as a duration.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
