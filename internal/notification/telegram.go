// Package notification delivers analysis reports to Telegram channels.
package notification

import (
	"fmt"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	internalerrors "github.com/olegiv/logtriage-ai-go/internal/errors"
	"github.com/olegiv/logtriage-ai-go/internal/report"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same channel
	// to avoid Telegram rate limits
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of retry attempts for sending messages
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
	// maxFindingsInMessage caps how many findings are listed per message
	maxFindingsInMessage = 10
)

// severityEmoji maps finding severities to message markers
var severityEmoji = map[string]string{
	"critical": "🔴",
	"high":     "🟠",
	"medium":   "🟡",
	"low":      "🟢",
}

// TelegramClient handles Telegram notifications
type TelegramClient struct {
	bot             *tgbotapi.BotAPI
	archiveChannel  int64
	alertsChannel   int64
	hostname        string
	lastMessageTime time.Time // tracks last message for rate limiting
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(botToken string, archiveChannel, alertsChannel int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		// Sanitize error to prevent bot token from appearing in error messages
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	// Get hostname for reports
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:            bot,
		archiveChannel: archiveChannel,
		alertsChannel:  alertsChannel,
		hostname:       hostname,
	}, nil
}

// SendReport sends the full report to the archive channel and, when
// alertFindings is non-empty, a focused alert to the alerts channel.
// alertFindings is the subset of findings that survived per-day
// deduplication.
func (t *TelegramClient) SendReport(rep *report.Report, stats *ai.Stats, alertFindings []report.Finding) error {
	message := t.formatMessage(rep, stats)

	if err := t.sendToChannel(t.archiveChannel, message); err != nil {
		return fmt.Errorf("failed to send to archive channel: %w", err)
	}

	if t.alertsChannel != 0 && len(alertFindings) > 0 {
		alert := t.formatAlert(alertFindings)
		if err := t.sendToChannel(t.alertsChannel, alert); err != nil {
			return fmt.Errorf("failed to send to alerts channel: %w", err)
		}
	}

	return nil
}

// formatMessage formats the report into a Telegram message
func (t *TelegramClient) formatMessage(rep *report.Report, stats *ai.Stats) string {
	var msg strings.Builder

	// Header
	msg.WriteString("🔍 *Log Analysis Report*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n\n", escapeMarkdown(rep.GeneratedAt.Format("2006-01-02 15:04:05"))))

	// Summary
	msg.WriteString("📊 *Summary*\n")
	msg.WriteString(fmt.Sprintf("• Events\\: %d\n", rep.Summary.TotalEvents))
	msg.WriteString(fmt.Sprintf("• Groups\\: %d\n", rep.Summary.TotalGroups))
	msg.WriteString(fmt.Sprintf("• Error Rate\\: %s\n", escapeMarkdown(fmt.Sprintf("%.1f%%", rep.Summary.OverallErrorRate*100))))

	if stats != nil {
		msg.WriteString(fmt.Sprintf("• Cost\\: %s\n", escapeMarkdown(fmt.Sprintf("$%.4f", stats.CostUSD))))
		msg.WriteString(fmt.Sprintf("• Duration\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", stats.DurationSeconds))))
	}
	msg.WriteString("\n")

	// Top root causes
	if len(rep.Summary.TopRootCauses) > 0 {
		msg.WriteString("💡 *Top Root Causes*\n")
		for i, cause := range rep.Summary.TopRootCauses {
			msg.WriteString(fmt.Sprintf("%d\\. %s\n", i+1, escapeMarkdown(cause)))
		}
		msg.WriteString("\n")
	}

	// Findings
	if len(rep.Findings) > 0 {
		msg.WriteString(fmt.Sprintf("📋 *Findings* \\(%d\\)\n", len(rep.Findings)))
		msg.WriteString(formatFindingList(rep.Findings))
	} else {
		msg.WriteString("✅ No findings\n")
	}

	return msg.String()
}

// formatAlert formats the deduplicated alert findings
func (t *TelegramClient) formatAlert(findings []report.Finding) string {
	var msg strings.Builder

	msg.WriteString("🚨 *New Log Findings*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n\n", escapeMarkdown(t.hostname)))
	msg.WriteString(formatFindingList(findings))

	return msg.String()
}

// formatFindingList renders findings as a numbered list, capped to keep
// messages readable.
func formatFindingList(findings []report.Finding) string {
	var msg strings.Builder

	shown := findings
	if len(shown) > maxFindingsInMessage {
		shown = shown[:maxFindingsInMessage]
	}

	for i, f := range shown {
		marker := severityEmoji[f.Severity]
		if marker == "" {
			marker = "⚪"
		}
		msg.WriteString(fmt.Sprintf("%d\\. %s %s\n", i+1, marker, escapeMarkdown(f.Signature)))
		msg.WriteString(fmt.Sprintf("   events\\: %d, error rate\\: %s\n",
			f.TotalEvents, escapeMarkdown(fmt.Sprintf("%.1f%%", f.ErrorRate*100))))
		msg.WriteString(fmt.Sprintf("   %s\n", escapeMarkdown(f.ProbableRootCause)))
	}

	if omitted := len(findings) - len(shown); omitted > 0 {
		msg.WriteString(fmt.Sprintf("\\.\\.\\. and %d more\n", omitted))
	}

	return msg.String()
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(channelID int64, message string) error {
	// Split message if it exceeds Telegram's limit
	messages := t.splitMessage(message)

	for _, msg := range messages {
		t.waitForRateLimit()

		msgConfig := tgbotapi.NewMessage(channelID, msg)
		msgConfig.ParseMode = "MarkdownV2"

		if err := t.sendWithRetry(msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = time.Now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages
func (t *TelegramClient) waitForRateLimit() {
	if t.lastMessageTime.IsZero() {
		return
	}

	elapsed := time.Since(t.lastMessageTime)
	if elapsed < minMessageInterval {
		time.Sleep(minMessageInterval - elapsed)
	}
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err

		// Check if this is a rate limit error (429)
		if isRateLimitError(err) {
			// Wait longer for rate limit errors
			retryAfter := extractRetryAfter(err)
			if retryAfter > 0 {
				time.Sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
		}

		// Exponential backoff for other errors
		if attempt < maxRetries {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s, 8s...
			time.Sleep(delay)
		}
	}

	// Sanitize error to prevent credentials from appearing in error messages
	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	// Telegram API errors typically include retry_after in the message
	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()

	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	// Default to a conservative wait time if we can't extract the value
	return 30
}

// splitMessage splits a long message into multiple messages
func (t *TelegramClient) splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	lines := strings.Split(message, "\n")
	var currentMsg strings.Builder

	for _, line := range lines {
		// If adding this line would exceed the limit
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			// Save current message
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			// If a single line is too long, split it
			if len(line) > maxMessageLength {
				for i := 0; i < len(line); i += maxMessageLength {
					end := i + maxMessageLength
					if end > len(line) {
						end = len(line)
					}
					messages = append(messages, line[i:end])
				}
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	// Add remaining content
	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	// Characters that need to be escaped in MarkdownV2
	// See: https://core.telegram.org/bots/api#markdownv2-style
	specialChars := []string{
		"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	}

	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}

	return result
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":        t.bot.Self.UserName,
		"archive_channel": t.archiveChannel,
		"alerts_channel":  t.alertsChannel,
		"hostname":        t.hostname,
	}
}

// Close closes the Telegram client
func (t *TelegramClient) Close() error {
	t.bot.StopReceivingUpdates()
	return nil
}
