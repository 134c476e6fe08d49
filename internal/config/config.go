// Package config loads application configuration from CLI flags, the
// environment, and an optional .env file.
package config

import (
	"crypto/subtle"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	LogPaths    string // -log-paths: comma-separated list of log files
	OutputDir   string // -output-dir: directory for report artifacts
	NoNotify    bool   // -no-notify: skip Telegram notifications for this run
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version
}

// ParseCLI parses command-line arguments and returns CLIOptions
func ParseCLI() *CLIOptions {
	opts := &CLIOptions{}

	flag.StringVar(&opts.LogPaths, "log-paths", "", "Comma-separated list of log files to analyze (overrides LOG_PATHS)")
	flag.StringVar(&opts.OutputDir, "output-dir", "", "Directory for report artifacts (overrides OUTPUT_DIR)")
	flag.BoolVar(&opts.NoNotify, "no-notify", false, "Skip Telegram notifications for this run")
	flag.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	// Custom usage message
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Log Triage AI - LLM-assisted log analysis and triage\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nExamples:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  %s -log-paths /var/log/app.log\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -log-paths /var/log/app.log,/var/log/worker.log -output-dir ./reports\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -no-notify\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(os.Stderr, "CLI arguments override environment variables.\n")
	}

	flag.Parse()

	return opts
}

// PrintUsage prints the command-line usage information
func PrintUsage() {
	flag.Usage()
}

// Config holds all application configuration
type Config struct {
	// LLM Provider Selection
	LLMProvider string // "anthropic" (default) or "ollama"

	// Anthropic/Claude Settings (used when LLMProvider = "anthropic")
	AnthropicAPIKey string
	ClaudeModel     string

	// Ollama Settings (used when LLMProvider = "ollama")
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3.3:latest"

	// Input
	LogPaths []string // log files to analyze

	// Output
	OutputDir string // directory for report artifacts

	// Signature normalization
	SignatureStripNumbers bool
	SignatureStripPaths   bool
	SignatureMaxLength    int
	MaxExamplesPerGroup   int

	// Prompting
	MaxPromptGroups int

	// Parallelism
	ParallelFiles int

	// Telegram
	EnableNotifications    bool
	TelegramBotToken       string
	TelegramArchiveChannel int64
	TelegramAlertsChannel  int64 // Optional

	// Application
	LogLevel       string
	EnableDatabase bool
	DatabasePath   string

	// Proxy
	HTTPProxy  string
	HTTPSProxy string

	// AI Settings
	AITimeoutSeconds int
	AIMaxTokens      int
}

// Load loads configuration from .env file and environment variables
// Priority: .env file > OS environment variables
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	// Set up viper first to read OS environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env file to override OS environment variables
	// godotenv.Load() sets OS env vars from .env, which viper will then read
	_ = godotenv.Load()

	// Set defaults
	setDefaults()

	config := &Config{
		// LLM Provider settings
		LLMProvider:     viper.GetString("LLM_PROVIDER"),
		AnthropicAPIKey: viper.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:     viper.GetString("CLAUDE_MODEL"),
		OllamaBaseURL:   viper.GetString("OLLAMA_BASE_URL"),
		OllamaModel:     viper.GetString("OLLAMA_MODEL"),

		// Input and output
		LogPaths:  splitPaths(viper.GetString("LOG_PATHS")),
		OutputDir: viper.GetString("OUTPUT_DIR"),

		// Signature normalization
		SignatureStripNumbers: viper.GetBool("SIGNATURE_STRIP_NUMBERS"),
		SignatureStripPaths:   viper.GetBool("SIGNATURE_STRIP_PATHS"),
		SignatureMaxLength:    viper.GetInt("SIGNATURE_MAX_LENGTH"),
		MaxExamplesPerGroup:   viper.GetInt("MAX_EXAMPLES_PER_GROUP"),

		// Prompting
		MaxPromptGroups: viper.GetInt("MAX_PROMPT_GROUPS"),

		// Parallelism
		ParallelFiles: viper.GetInt("PARALLEL_FILES"),

		// Telegram settings
		EnableNotifications:    viper.GetBool("ENABLE_NOTIFICATIONS"),
		TelegramBotToken:       viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramArchiveChannel: viper.GetInt64("TELEGRAM_CHANNEL_ARCHIVE_ID"),
		TelegramAlertsChannel:  viper.GetInt64("TELEGRAM_CHANNEL_ALERTS_ID"),

		// Application settings
		LogLevel:         viper.GetString("LOG_LEVEL"),
		EnableDatabase:   viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:     viper.GetString("DATABASE_PATH"),
		HTTPProxy:        viper.GetString("HTTP_PROXY"),
		HTTPSProxy:       viper.GetString("HTTPS_PROXY"),
		AITimeoutSeconds: viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:      viper.GetInt("AI_MAX_TOKENS"),
	}

	// Apply CLI overrides (highest priority)
	if cli != nil {
		if cli.LogPaths != "" {
			config.LogPaths = splitPaths(cli.LogPaths)
		}
		if cli.OutputDir != "" {
			config.OutputDir = cli.OutputDir
		}
		if cli.NoNotify {
			config.EnableNotifications = false
		}
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// splitPaths splits a comma-separated path list, dropping empty entries
func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// setDefaults sets default configuration values
func setDefaults() {
	// LLM Provider defaults
	viper.SetDefault("LLM_PROVIDER", "anthropic")
	viper.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	viper.SetDefault("OLLAMA_MODEL", "llama3.3:latest")

	// Input and output defaults
	viper.SetDefault("OUTPUT_DIR", "./outputs/log_analyzer")

	// Signature defaults
	viper.SetDefault("SIGNATURE_STRIP_NUMBERS", true)
	viper.SetDefault("SIGNATURE_STRIP_PATHS", true)
	viper.SetDefault("SIGNATURE_MAX_LENGTH", 64)
	viper.SetDefault("MAX_EXAMPLES_PER_GROUP", 3)
	viper.SetDefault("MAX_PROMPT_GROUPS", 20)
	viper.SetDefault("PARALLEL_FILES", 4)

	// Application defaults
	viper.SetDefault("ENABLE_NOTIFICATIONS", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENABLE_DATABASE", true)
	viper.SetDefault("DATABASE_PATH", "./data/runs.db")
	viper.SetDefault("AI_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AI_MAX_TOKENS", 8000)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate LLM Provider
	if err := c.validateLLMProvider(); err != nil {
		return err
	}

	// Validate input
	if len(c.LogPaths) == 0 {
		return fmt.Errorf("LOG_PATHS is required (comma-separated list of log files)")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	// Validate signature settings
	if c.SignatureMaxLength < 16 || c.SignatureMaxLength > 512 {
		return fmt.Errorf("SIGNATURE_MAX_LENGTH must be between 16 and 512")
	}
	if c.MaxExamplesPerGroup < 1 || c.MaxExamplesPerGroup > 10 {
		return fmt.Errorf("MAX_EXAMPLES_PER_GROUP must be between 1 and 10")
	}
	if c.MaxPromptGroups < 1 || c.MaxPromptGroups > 100 {
		return fmt.Errorf("MAX_PROMPT_GROUPS must be between 1 and 100")
	}
	if c.ParallelFiles < 1 || c.ParallelFiles > 64 {
		return fmt.Errorf("PARALLEL_FILES must be between 1 and 64")
	}

	// Validate Telegram settings only when notifications are enabled
	if c.EnableNotifications {
		if err := c.validateTelegram(); err != nil {
			return err
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	// Validate AI settings
	if c.AITimeoutSeconds < 30 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 30 and 600")
	}
	if c.AIMaxTokens < 1000 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 1000 and 16000")
	}

	return nil
}

// validateTelegram validates the Telegram notification settings
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when ENABLE_NOTIFICATIONS=true")
	}
	telegramTokenRegex := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}

	if c.TelegramArchiveChannel == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID is required when ENABLE_NOTIFICATIONS=true")
	}
	if c.TelegramArchiveChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID must be a supergroup/channel ID (starts with -100)")
	}

	if c.TelegramAlertsChannel != 0 && c.TelegramAlertsChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID must be a supergroup/channel ID (starts with -100)")
	}

	return nil
}

// HasAlertsChannel returns true if alerts channel is configured
func (c *Config) HasAlertsChannel() bool {
	return c.TelegramAlertsChannel != 0
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// constantTimePrefixMatch checks if s starts with prefix using constant-time comparison.
// This prevents timing attacks that could leak information about the string content.
// Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	// Compare only the prefix portion using constant-time comparison
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}

// validateLLMProvider validates LLM provider configuration
func (c *Config) validateLLMProvider() error {
	if !ai.IsValidProviderType(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'anthropic' or 'ollama' (got: %s)", c.LLMProvider)
	}

	switch {
	case c.IsAnthropic():
		// Validate Anthropic API Key
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		// Use constant-time comparison to prevent timing attacks
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when LLM_PROVIDER=anthropic")
		}

	case c.IsOllama():
		// Validate Ollama settings
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=ollama")
		}
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required when LLM_PROVIDER=ollama")
		}
		// Validate URL format (basic check)
		if !strings.HasPrefix(c.OllamaBaseURL, "http://") && !strings.HasPrefix(c.OllamaBaseURL, "https://") {
			return fmt.Errorf("OLLAMA_BASE_URL must start with 'http://' or 'https://'")
		}
	}

	return nil
}

// IsOllama returns true if the LLM provider is Ollama
func (c *Config) IsOllama() bool {
	return c.LLMProvider == "ollama"
}

// IsAnthropic returns true if the LLM provider is Anthropic
func (c *Config) IsAnthropic() bool {
	return c.LLMProvider == "anthropic"
}

// GetLLMModel returns the model name for the current LLM provider
func (c *Config) GetLLMModel() string {
	if c.IsOllama() {
		return c.OllamaModel
	}
	return c.ClaudeModel
}
