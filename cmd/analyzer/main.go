package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegiv/go-logger"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	"github.com/olegiv/logtriage-ai-go/internal/config"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
	"github.com/olegiv/logtriage-ai-go/internal/logging"
	"github.com/olegiv/logtriage-ai-go/internal/notification"
	"github.com/olegiv/logtriage-ai-go/internal/pipeline"
	"github.com/olegiv/logtriage-ai-go/internal/report"
	"github.com/olegiv/logtriage-ai-go/internal/storage"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// retentionDays is how long run history and dedup state are kept
const retentionDays = 90

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI arguments first
	cli := config.ParseCLI()

	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	if cli.ShowVersion {
		fmt.Printf("logtriage-analyzer %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Load configuration with CLI overrides
	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// Initialize logger with credential sanitization
	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     "./logs",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    true,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Strs("log_paths", cfg.LogPaths).Msg("Starting Log Triage AI")
	log.Info().Str("provider", cfg.LLMProvider).Str("model", cfg.GetLLMModel()).Msg("Configured AI model")

	if err := runAnalyzer(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		return exitFailure
	}

	log.Info().Msg("Analysis completed successfully")
	return exitSuccess
}

func runAnalyzer(ctx context.Context, cfg *config.Config, log *logging.SecureLogger) error {
	startTime := time.Now()

	log.Info().Msg("Initializing components...")

	// 1. Initialize storage (if enabled)
	var store *storage.Storage
	var err error

	if cfg.EnableDatabase {
		store, err = storage.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func(store *storage.Storage) {
			err = store.Close()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}(store)
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
	}

	// 2. Initialize LLM provider
	provider, err := createProvider(ctx, cfg)
	if err != nil {
		return err
	}

	modelInfo := provider.GetModelInfo()
	log.Info().
		Str("provider", provider.GetProviderName()).
		Str("model", modelInfo["model"].(string)).
		Int("max_tokens", modelInfo["max_tokens"].(int)).
		Msg("LLM provider initialized")

	// 3. Initialize Telegram client (if enabled)
	var telegramClient *notification.TelegramClient
	if cfg.EnableNotifications {
		telegramClient, err = notification.NewTelegramClient(
			cfg.TelegramBotToken,
			cfg.TelegramArchiveChannel,
			cfg.TelegramAlertsChannel,
		)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		defer func(telegramClient *notification.TelegramClient) {
			err = telegramClient.Close()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to close Telegram client")
			}
		}(telegramClient)

		botInfo := telegramClient.GetBotInfo()
		log.Info().
			Str("username", botInfo["username"].(string)).
			Msg("Telegram bot initialized")
	}

	// 4. Build the pipeline
	writer, err := report.NewWriter(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize report writer: %w", err)
	}

	synth := ai.NewSynthesizer(provider, ai.NewPromptBuilder(cfg.MaxPromptGroups), cfg.AITimeoutSeconds)

	p := pipeline.New(log, synth, writer, pipeline.Config{
		SignatureOptions: grouping.Options{
			StripNumbers: cfg.SignatureStripNumbers,
			StripPaths:   cfg.SignatureStripPaths,
			MaxLength:    cfg.SignatureMaxLength,
		},
		MaxExamplesPerGroup: cfg.MaxExamplesPerGroup,
		ParallelFiles:       cfg.ParallelFiles,
	})

	// 5. Run the analysis
	log.Info().Int("files", len(cfg.LogPaths)).Msg("Analyzing log files...")

	result, err := p.Run(ctx, cfg.LogPaths)
	if err != nil {
		return err
	}

	log.Info().
		Int("events", result.Report.Summary.TotalEvents).
		Int("groups", len(result.Groups)).
		Int("findings", len(result.Findings)).
		Msg("Analysis completed")

	if result.Stats != nil {
		log.Info().
			Float64("cost_usd", result.Stats.CostUSD).
			Float64("duration_s", result.Stats.DurationSeconds).
			Msg("LLM call statistics")

		log.Debug().
			Int("input_tokens", result.Stats.InputTokens).
			Int("output_tokens", result.Stats.OutputTokens).
			Int("cache_creation_tokens", result.Stats.CacheCreationTokens).
			Int("cache_read_tokens", result.Stats.CacheReadTokens).
			Msg("Token usage details")
	}

	// 6. Save run history (if enabled)
	if store != nil {
		run := &storage.Run{
			Timestamp:        time.Now(),
			SourceFiles:      result.FilesRead,
			TotalEvents:      result.Report.Summary.TotalEvents,
			TotalGroups:      len(result.Groups),
			FindingCount:     len(result.Findings),
			OverallErrorRate: result.Report.Summary.OverallErrorRate,
		}
		if result.Stats != nil {
			run.InputTokens = result.Stats.InputTokens
			run.OutputTokens = result.Stats.OutputTokens
			run.CostUSD = result.Stats.CostUSD
		}

		if err := store.SaveRun(run); err != nil {
			log.Warn().Err(err).Msg("Failed to save run to database")
		} else {
			log.Info().Int64("id", run.ID).Msg("Run saved to database")
		}

		deleted, err := store.CleanupOldRuns(retentionDays)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to cleanup old runs")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Msg("Old runs cleaned up")
		}
	}

	// 7. Send Telegram notifications
	if telegramClient != nil {
		// Without an alerts channel there is nowhere to alert, so skip
		// the selection and leave the dedup state untouched.
		var alertFindings []report.Finding
		if cfg.HasAlertsChannel() {
			alertFindings = selectAlertFindings(result.Findings, store, log)
		}

		log.Info().Int("alerts", len(alertFindings)).Msg("Sending Telegram notifications...")
		if err := telegramClient.SendReport(result.Report, result.Stats, alertFindings); err != nil {
			return fmt.Errorf("failed to send Telegram notification: %w", err)
		}
	}

	totalDuration := time.Since(startTime)
	log.Info().
		Float64("total_duration_s", totalDuration.Seconds()).
		Str("json", result.JSONPath).
		Str("markdown", result.MarkdownPath).
		Msg("All operations completed successfully")

	return nil
}

// createProvider creates the configured LLM provider
func createProvider(ctx context.Context, cfg *config.Config) (ai.Provider, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		proxyURL := cfg.GetProxyURL(true) // HTTPS proxy for API calls
		client, err := ai.NewClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, proxyURL, cfg.AITimeoutSeconds, cfg.AIMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Claude client: %w", err)
		}
		return client, nil

	case "ollama":
		client, err := ai.NewOllamaClient(ai.OllamaConfig{
			BaseURL:        cfg.OllamaBaseURL,
			Model:          cfg.OllamaModel,
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Ollama client: %w", err)
		}
		if err := client.CheckConnection(ctx); err != nil {
			return nil, fmt.Errorf("ollama connection check failed: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// selectAlertFindings returns the error findings that have not been
// alerted today. Without a database every error finding alerts.
func selectAlertFindings(findings []report.Finding, store *storage.Storage, log *logging.SecureLogger) []report.Finding {
	var alerts []report.Finding
	for _, f := range findings {
		if f.ErrorRate == 0 {
			continue
		}

		if store != nil {
			alreadyReported, err := store.CheckAndSet(f.Signature)
			if err != nil {
				log.Warn().Err(err).Str("signature", f.Signature).Msg("Dedup check failed, alerting anyway")
			} else if alreadyReported {
				log.Debug().Str("signature", f.Signature).Msg("Signature already alerted today, skipping")
				continue
			}
		}

		alerts = append(alerts, f)
	}
	return alerts
}
