package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// SKILLBOT_TELEGRAM_TOKEN or SKILLBOT_PROVIDERS_ZHIPU_API_KEY.
const EnvPrefix = "SKILLBOT"

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional when path does not exist)
// 3. SKILLBOT_* and legacy provider environment variables
func LoadConfig(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	startTime := time.Now()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	applyProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Info("Configuration loaded",
		"path", path,
		"skills", len(cfg.Skills),
		"providers", len(cfg.Providers),
		"admins", len(cfg.Telegram.AdminIDs),
		"duration_ms", time.Since(startTime).Milliseconds())
	return cfg, nil
}

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("cache.dir", DefaultCacheDir)
	v.SetDefault("cache.max_age", DefaultCacheMaxAge)
	v.SetDefault("cache.max_image_bytes", DefaultCacheMaxImageBytes)

	v.SetDefault("credits.initial_balance", 0)

	for name, task := range DefaultSchedulerTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	for name, p := range defaultProviders {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"kind", p.Kind)
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"timeout", DefaultProviderTimeout)
		v.SetDefault(prefix+"max_retries", DefaultProviderMaxRetries)
		v.SetDefault(prefix+"retry_delay", DefaultProviderRetryDelay)
	}

	m := DefaultMessages
	v.SetDefault("messages.welcome", m.Welcome)
	v.SetDefault("messages.help_header", m.HelpHeader)
	v.SetDefault("messages.help_line", m.HelpLine)
	v.SetDefault("messages.balance", m.Balance)
	v.SetDefault("messages.not_authorized", m.NotAuthorized)
	v.SetDefault("messages.general_error", m.GeneralError)
	v.SetDefault("messages.acknowledged", m.Acknowledged)
	v.SetDefault("messages.insufficient_credit", m.InsufficientCredit)
	v.SetDefault("messages.content_violation", m.ContentViolation)
	v.SetDefault("messages.ledger_unavailable", m.LedgerUnavailable)
	v.SetDefault("messages.charged_success", m.ChargedSuccess)
	v.SetDefault("messages.waived_success", m.WaivedSuccess)
	v.SetDefault("messages.answer", m.Answer)
	v.SetDefault("messages.model_footer", m.ModelFooter)
	v.SetDefault("messages.image_generated", m.ImageGenerated)
	v.SetDefault("messages.refunded_failure", m.RefundedFailure)
	v.SetDefault("messages.waived_failure", m.WaivedFailure)
	v.SetDefault("messages.refund_failed", m.RefundFailed)
	v.SetDefault("messages.refund_alert", m.RefundAlert)
	v.SetDefault("messages.grant_usage", m.GrantUsage)
	v.SetDefault("messages.grant_done", m.GrantDone)
	v.SetDefault("messages.whitelist_usage", m.WhitelistUsage)
	v.SetDefault("messages.whitelist_done", m.WhitelistDone)
}

// applyProviderDefaults gives providers defined only in the config file the
// same request deadline as the built-in catalogue. Viper defaults cannot cover
// map entries whose names are not known in advance.
func applyProviderDefaults(cfg *Config) {
	for name, p := range cfg.Providers {
		if p.Timeout <= 0 {
			p.Timeout = DefaultProviderTimeout
			cfg.Providers[name] = p
		}
	}
}

// bindEnv binds every provider key to its SKILLBOT_ variable first and the
// legacy variable second, so the prefixed name wins when both are set.
func bindEnv(v *viper.Viper) error {
	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	for _, key := range []string{"telegram.token", "database.path"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate runs struct validation and cross-field checks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]string, len(c.Skills)+len(ReservedCommands))
	for _, cmd := range ReservedCommands {
		seen[cmd] = "built-in"
	}
	for _, s := range c.Skills {
		if other, dup := seen[s.Command]; dup {
			return fmt.Errorf("skills %q and %q share command %q", other, s.Name, s.Command)
		}
		seen[s.Command] = s.Name

		p, ok := c.Providers[s.Provider]
		if !ok {
			return fmt.Errorf("skill %q references unknown provider %q", s.Name, s.Provider)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %q used by skill %q has no api_key", s.Provider, s.Name)
		}
	}
	return nil
}
