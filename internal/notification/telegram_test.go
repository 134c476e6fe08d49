package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	"github.com/olegiv/logtriage-ai-go/internal/report"
)

func testReport() *report.Report {
	return &report.Report{
		GeneratedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		SourceFiles: []string{"/var/log/app.log"},
		Summary: report.Summary{
			TotalEvents:      42,
			TotalGroups:      3,
			OverallErrorRate: 0.5,
			TopRootCauses:    []string{"Null reference in request handler"},
		},
		Findings: []report.Finding{
			{
				Signature:         "failed to process request nullpointerexception at path",
				TotalEvents:       2,
				ErrorRate:         1.0,
				ProbableRootCause: "Null reference in request handler",
				Severity:          "high",
			},
			{
				Signature:         "request served in n ms",
				TotalEvents:       40,
				ErrorRate:         0.0,
				ProbableRootCause: "Routine request handling",
				Severity:          "low",
			},
		},
	}
}

func TestFormatMessage(t *testing.T) {
	client := &TelegramClient{hostname: "test-server"}

	stats := &ai.Stats{
		InputTokens:     1000,
		OutputTokens:    500,
		CostUSD:         0.008604,
		DurationSeconds: 9.96,
	}

	message := client.formatMessage(testReport(), stats)

	for _, want := range []string{
		"Log Analysis Report",
		"test\\-server",
		"Events\\: 42",
		"Groups\\: 3",
		"Null reference in request handler",
		"Findings",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}

	// MarkdownV2 requires escaping of . and %
	if strings.Contains(message, "50.0%") {
		t.Error("percentages must be MarkdownV2-escaped")
	}
}

func TestFormatMessageNilStats(t *testing.T) {
	client := &TelegramClient{hostname: "test-server"}

	message := client.formatMessage(testReport(), nil)

	if strings.Contains(message, "Cost") {
		t.Error("message must omit cost line without stats")
	}
	if !strings.Contains(message, "Events\\: 42") {
		t.Error("message must still include the summary")
	}
}

func TestFormatMessageNoFindings(t *testing.T) {
	client := &TelegramClient{hostname: "test-server"}

	rep := testReport()
	rep.Findings = nil
	rep.Summary = report.Summary{}

	message := client.formatMessage(rep, nil)
	if !strings.Contains(message, "No findings") {
		t.Errorf("message should state there were no findings:\n%s", message)
	}
}

func TestFormatAlert(t *testing.T) {
	client := &TelegramClient{hostname: "test-server"}

	alert := client.formatAlert(testReport().Findings[:1])

	for _, want := range []string{
		"New Log Findings",
		"🟠",
		"failed to process request nullpointerexception at path",
		"events\\: 2",
	} {
		if !strings.Contains(alert, want) {
			t.Errorf("alert missing %q:\n%s", want, alert)
		}
	}
}

func TestFormatFindingListCap(t *testing.T) {
	findings := make([]report.Finding, maxFindingsInMessage+5)
	for i := range findings {
		findings[i] = report.Finding{Signature: "sig", ProbableRootCause: "cause", Severity: "low"}
	}

	list := formatFindingList(findings)
	if !strings.Contains(list, "and 5 more") {
		t.Errorf("list should note omitted findings:\n%s", list)
	}
}

func TestSplitMessage(t *testing.T) {
	client := &TelegramClient{}

	short := "short message"
	if got := client.splitMessage(short); len(got) != 1 || got[0] != short {
		t.Errorf("short message should not be split: %v", got)
	}

	long := strings.Repeat("line of log output\n", 500)
	parts := client.splitMessage(long)
	if len(parts) < 2 {
		t.Error("long message should be split into multiple parts")
	}
	for i, p := range parts {
		if len(p) > maxMessageLength {
			t.Errorf("part %d exceeds max length: %d", i, len(p))
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"dots...", "dots\\.\\.\\."},
		{"rate: 50%", "rate\\: 50%"},
		{"a_b*c", "a\\_b\\*c"},
	}

	for _, tt := range tests {
		if got := escapeMarkdown(tt.input); got != tt.expected {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		expected int
	}{
		{"explicit value", "Too Many Requests: retry after 30", 30},
		{"different value", "telegram: retry after 7", 7},
		{"no value falls back", "Too Many Requests", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &testError{msg: tt.errMsg}
			if got := extractRetryAfter(err); got != tt.expected {
				t.Errorf("extractRetryAfter(%q) = %d, want %d", tt.errMsg, got, tt.expected)
			}
		})
	}

	if got := extractRetryAfter(nil); got != 0 {
		t.Errorf("extractRetryAfter(nil) = %d, want 0", got)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
