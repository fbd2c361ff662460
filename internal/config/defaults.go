package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "skillbot.db"

	DefaultCacheDir    = "resources/cache"
	DefaultCacheMaxAge = 24 * time.Hour

	DefaultCacheMaxImageBytes = 20 << 20

	DefaultProviderTimeout    = 2 * time.Minute
	DefaultProviderMaxRetries = 2
	DefaultProviderRetryDelay = time.Second
)

// defaultProviders is the built-in vendor catalogue. Any field can be
// overridden from the config file or environment; a provider is only
// instantiated when a skill references it.
var defaultProviders = map[string]ProviderConfig{
	"zhipu": {
		Kind:    KindOpenAIChat,
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
	},
	"qwen": {
		Kind:    KindOpenAIChat,
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
	},
	"kimi": {
		Kind:    KindOpenAICompletion,
		BaseURL: "https://api.moonshot.cn/v1",
	},
	"flux": {
		Kind:    KindDashScopeImageV1,
		BaseURL: "https://dashscope.aliyuncs.com/api/v1/services/aigc/text2image/image-synthesis",
	},
	"wanx": {
		Kind:    KindDashScopeImageV2,
		BaseURL: "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation",
	},
	"gemini": {
		Kind: KindGemini,
	},
}

// legacyEnv maps provider settings to the environment variables used by the
// original plugin deployment, so existing docker-compose files keep working.
var legacyEnv = map[string][]string{
	"providers.zhipu.api_key":  {"BM_API_KEY"},
	"providers.zhipu.base_url": {"BM_API_BASE"},
	"providers.kimi.api_key":   {"KIMI_API_KEY"},
	"providers.kimi.base_url":  {"KIMI_API_BASE"},
	"providers.qwen.api_key":   {"DASHSCOPE_API_KEY"},
	"providers.qwen.base_url":  {"QWEN_API_BASE"},
	"providers.flux.api_key":   {"DASHSCOPE_API_KEY"},
	"providers.flux.base_url":  {"FLUX_API_BASE"},
	"providers.wanx.api_key":   {"DASHSCOPE_API_KEY"},
	"providers.gemini.api_key": {"GEMINI_API_KEY"},
}

// ReservedCommands are handled by the bot itself and cannot name a skill.
var ReservedCommands = []string{"start", "help", "balance", "grant", "whitelist"}

// DefaultMessages are the built-in reply templates.
var DefaultMessages = MessagesConfig{
	Welcome:       "👋 Welcome! Send /help to see the available skills and their prices.",
	HelpHeader:    "Available skills:",
	HelpLine:      "/%s (%d credits) %s",
	Balance:       "💰 Your balance: %d credits.",
	NotAuthorized: "🚫 You are not authorized to use this command.",
	GeneralError:  "❌ An error occurred. Please try again later.",

	Acknowledged:       "👍 Request received and processing, please do not send the command again.",
	InsufficientCredit: "⚠️ Not enough credits, %d required.",
	ContentViolation:   "⚠️ Your request contains forbidden content.",
	LedgerUnavailable:  "⚠️ The credit service is unavailable, please try again later.",
	ChargedSuccess:     "👍 %d credits deducted, %d credits remaining.",
	WaivedSuccess:      "👍 You are whitelisted, no credits were deducted.",
	Answer:             "%s answer:",
	ModelFooter:        "⚙️ Model: %s",
	ImageGenerated:     "🎉 Image generated.",
	RefundedFailure:    "⚠️ An error occurred, %d credits have been refunded.\n%s",
	WaivedFailure:      "⚠️ An error occurred.\n%s",
	RefundFailed:       "⚠️ An error occurred and your credits could not be refunded automatically. An administrator has been notified.\n%s",
	RefundAlert:        "🚨 Refund failed: user %d, amount %d, invocation %s: %s",

	GrantUsage:     "Usage: /grant <user_id> <amount>",
	GrantDone:      "✅ Granted %d credits to %d, new balance %d.",
	WhitelistUsage: "Usage: /whitelist <user_id> on|off",
	WhitelistDone:  "✅ Whitelist for %d set to %s.",
}

// DefaultSchedulerTasks are enabled unless overridden.
var DefaultSchedulerTasks = map[string]TaskConfig{
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	"cache_cleanup":   {Enabled: true, Schedule: "0 30 * * * *"},
}
