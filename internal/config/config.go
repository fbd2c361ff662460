// Package config provides configuration loading, validation, and management
// for the skill bot. It reads a YAML file, overlays environment variables,
// applies defaults for optional fields, and validates the result.
package config

import (
	"slices"
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig              `mapstructure:"log"`
	Telegram  TelegramConfig            `mapstructure:"telegram"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Denylist  DenylistConfig            `mapstructure:"denylist"`
	Credits   CreditsConfig             `mapstructure:"credits"`
	Scheduler SchedulerConfig           `mapstructure:"scheduler"`
	Messages  MessagesConfig            `mapstructure:"messages"`
	Providers map[string]ProviderConfig `mapstructure:"providers" validate:"required,dive"`
	Skills    []SkillConfig             `mapstructure:"skills"    validate:"required,min=1,dive"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and the administrator list.
type TelegramConfig struct {
	Token    string  `mapstructure:"token"     validate:"required"`
	AdminIDs []int64 `mapstructure:"admin_ids" validate:"dive,gt=0"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig describes where generated images are stored and how long they
// are kept before the cache_cleanup task removes them.
type CacheConfig struct {
	Dir    string        `mapstructure:"dir"     validate:"required"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"min=0"`
	// MaxImageBytes caps a single downloaded image.
	MaxImageBytes int64 `mapstructure:"max_image_bytes" validate:"gte=0"`
}

// DenylistConfig lists forbidden substrings, inline and/or from a YAML file
// with a top-level "sensitive_words" list.
type DenylistConfig struct {
	Words []string `mapstructure:"words"`
	File  string   `mapstructure:"file"`
}

// CreditsConfig controls account bootstrap.
type CreditsConfig struct {
	// InitialBalance is granted once when an account is first seen.
	InitialBalance int64 `mapstructure:"initial_balance" validate:"gte=0"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing reply templates. Templates containing
// verbs are rendered with fmt; the expected arguments are noted per field.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	HelpHeader    string `mapstructure:"help_header"    validate:"required"`
	NotAuthorized string `mapstructure:"not_authorized" validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
	// HelpLine: command, price, description.
	HelpLine string `mapstructure:"help_line" validate:"required"`
	// Balance: balance.
	Balance string `mapstructure:"balance" validate:"required"`

	Acknowledged      string `mapstructure:"acknowledged"       validate:"required"`
	ContentViolation  string `mapstructure:"content_violation"  validate:"required"`
	LedgerUnavailable string `mapstructure:"ledger_unavailable" validate:"required"`
	WaivedSuccess     string `mapstructure:"waived_success"     validate:"required"`
	ImageGenerated    string `mapstructure:"image_generated"    validate:"required"`
	// InsufficientCredit: price.
	InsufficientCredit string `mapstructure:"insufficient_credit" validate:"required"`
	// ChargedSuccess: price, remaining balance.
	ChargedSuccess string `mapstructure:"charged_success" validate:"required"`
	// Answer: skill label.
	Answer string `mapstructure:"answer" validate:"required"`
	// ModelFooter: model name.
	ModelFooter string `mapstructure:"model_footer" validate:"required"`
	// RefundedFailure: refunded amount, diagnostic.
	RefundedFailure string `mapstructure:"refunded_failure" validate:"required"`
	// WaivedFailure: diagnostic.
	WaivedFailure string `mapstructure:"waived_failure" validate:"required"`
	// RefundFailed: diagnostic.
	RefundFailed string `mapstructure:"refund_failed" validate:"required"`
	// RefundAlert: user id, amount, invocation id, error.
	RefundAlert string `mapstructure:"refund_alert" validate:"required"`

	GrantUsage     string `mapstructure:"grant_usage"     validate:"required"`
	WhitelistUsage string `mapstructure:"whitelist_usage" validate:"required"`
	// GrantDone: amount, user id, new balance.
	GrantDone string `mapstructure:"grant_done" validate:"required"`
	// WhitelistDone: user id, state.
	WhitelistDone string `mapstructure:"whitelist_done" validate:"required"`
}

// Provider kinds understood by the provider factory.
const (
	KindOpenAIChat       = "openai-chat"
	KindOpenAICompletion = "openai-completion"
	KindDashScopeImageV1 = "dashscope-image-v1"
	KindDashScopeImageV2 = "dashscope-image-v2"
	KindGemini           = "gemini"
)

// ProviderConfig describes one vendor endpoint. Several skills may share a
// provider. APIKey is normally supplied through the environment.
type ProviderConfig struct {
	Kind       string        `mapstructure:"kind"        validate:"required,oneof=openai-chat openai-completion dashscope-image-v1 dashscope-image-v2 gemini"`
	BaseURL    string        `mapstructure:"base_url"    validate:"omitempty,url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"omitempty,min=1s,max=10m"`
	MaxRetries uint          `mapstructure:"max_retries" validate:"lte=5"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"min=0,max=1m"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker wrapped around a provider.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// SkillConfig is the static definition of one paid command.
type SkillConfig struct {
	Name        string `mapstructure:"name"        validate:"required"`
	Command     string `mapstructure:"command"     validate:"required,max=32"`
	Label       string `mapstructure:"label"`
	Description string `mapstructure:"description"`
	Help        string `mapstructure:"help"        validate:"required"`
	Price       int64  `mapstructure:"price"       validate:"gte=0"`
	Provider    string `mapstructure:"provider"    validate:"required"`

	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"      validate:"gte=0"`
	Temperature    float32       `mapstructure:"temperature"     validate:"min=0,max=2"`
	Size           string        `mapstructure:"size"`
	Seed           int           `mapstructure:"seed"            validate:"gte=0"`
	Guidance       float64       `mapstructure:"guidance"        validate:"gte=0"`
	NegativePrompt string        `mapstructure:"negative_prompt"`
	Timeout        time.Duration `mapstructure:"timeout"         validate:"omitempty,min=1s,max=10m"`
}

// DisplayLabel returns the label shown in replies, falling back to the name.
func (s SkillConfig) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// IsAdmin reports whether userID is a configured administrator.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Telegram.AdminIDs, userID)
}

// Skill returns the skill registered under command.
func (c *Config) Skill(command string) (SkillConfig, bool) {
	for _, s := range c.Skills {
		if s.Command == command {
			return s, true
		}
	}
	return SkillConfig{}, false
}
