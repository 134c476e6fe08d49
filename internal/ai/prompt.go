package ai

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/olegiv/logtriage-ai-go/internal/events"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
)

// DefaultMaxPromptGroups caps how many groups are included in the user
// prompt. Groups arrive sorted by count, so the cap keeps the noisiest
// signatures and drops the long tail.
const DefaultMaxPromptGroups = 20

// PromptBuilder renders aggregated groups into LLM prompts.
type PromptBuilder struct {
	maxGroups int
}

// NewPromptBuilder creates a prompt builder. maxGroups <= 0 selects the
// default cap.
func NewPromptBuilder(maxGroups int) *PromptBuilder {
	if maxGroups <= 0 {
		maxGroups = DefaultMaxPromptGroups
	}
	return &PromptBuilder{maxGroups: maxGroups}
}

// GetSystemPrompt returns the system prompt that fixes the response contract.
func (b *PromptBuilder) GetSystemPrompt() string {
	return `You are a senior site reliability engineer analyzing aggregated application log data. Your role is to identify probable root causes for recurring log patterns and assess their severity.

**Input Format:**

You will receive a list of log groups. Each group has:
- A signature: a normalized template of the log message with variable parts (numbers, paths, IPs, timestamps) replaced by placeholders
- An event count and per-level breakdown
- Up to 3 verbatim example lines

**Analysis Principles:**
- Be accurate and fact-based - only reason from the signatures and examples given
- Prefer concrete causes (resource exhaustion, dependency failure, code defect) over vague ones
- Exception class names in examples are strong root-cause evidence
- Severity reflects both error rate and operational impact

**Output Requirements:**

You MUST respond with a valid JSON array (and ONLY JSON) in this exact format:

[
  {
    "signature_ref": "the exact signature string of the group",
    "total_events": 0,
    "error_rate": 0.0,
    "probable_root_cause": "1-2 sentence specific root cause hypothesis",
    "severity": "low|medium|high|critical"
  }
]

Include one object per group. signature_ref must match a provided signature exactly. An empty array is acceptable only if no groups were provided.`
}

// BuildUserPrompt renders the groups into the user prompt. totalEvents is
// the event count across all groups, including any omitted by the cap.
func (b *PromptBuilder) BuildUserPrompt(groups []*grouping.Group, totalEvents int) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "AGGREGATED LOG GROUPS (%d groups, %d events total):\n\n", len(groups), totalEvents)

	included := groups
	if len(included) > b.maxGroups {
		included = included[:b.maxGroups]
	}

	for i, g := range included {
		fmt.Fprintf(&prompt, "Group %d:\n", i+1)
		fmt.Fprintf(&prompt, "  signature: %s\n", SanitizeLogContent(g.Signature))
		fmt.Fprintf(&prompt, "  count: %d\n", g.Count)

		levels := make([]string, 0, len(g.LevelCounts))
		for _, lvl := range events.Levels() {
			if n, ok := g.LevelCounts[lvl]; ok && n > 0 {
				levels = append(levels, fmt.Sprintf("%s=%d", lvl, n))
			}
		}
		fmt.Fprintf(&prompt, "  levels: %s\n", strings.Join(levels, " "))

		if tokens := g.Tokens(); len(tokens) > 0 {
			fmt.Fprintf(&prompt, "  exception_tokens: %s\n", strings.Join(tokens, ", "))
		}

		prompt.WriteString("  examples:\n")
		for _, ex := range g.Examples {
			fmt.Fprintf(&prompt, "    %s\n", SanitizeLogContent(ex))
		}
		prompt.WriteString("\n")
	}

	if omitted := len(groups) - len(included); omitted > 0 {
		fmt.Fprintf(&prompt, "(%d more groups omitted; they are lower-volume variants of the above)\n\n", omitted)
	}

	prompt.WriteString("Analyze the groups above and provide your assessment as a JSON array as specified.")

	return prompt.String()
}

// promptInjectionPatterns contains regex patterns for common prompt injection attempts
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*prompt\s*:`),
	regexp.MustCompile(`(?i)\bASSISTANT\s*:`),
	regexp.MustCompile(`(?i)\bHUMAN\s*:`),
	regexp.MustCompile(`(?i)\bUSER\s*:`),
	regexp.MustCompile(`(?i)\bSYSTEM\s*:`),
}

// SanitizeLogContent sanitizes log content before it enters a prompt.
// This removes:
// - Non-printable characters (except newlines, tabs, carriage returns)
// - Common prompt injection patterns
// - Excessive whitespace
func SanitizeLogContent(content string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(content))

	for _, r := range content {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	for _, pattern := range promptInjectionPatterns {
		result = pattern.ReplaceAllString(result, "[FILTERED]")
	}

	// Normalize excessive newlines (more than 3 consecutive)
	excessiveNewlines := regexp.MustCompile(`\n{4,}`)
	result = excessiveNewlines.ReplaceAllString(result, "\n\n\n")

	return result
}
