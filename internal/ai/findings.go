package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	internalerrors "github.com/olegiv/logtriage-ai-go/internal/errors"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
)

// CandidateFinding is one entry of the model's JSON array response. All
// fields are untrusted until reconciled against the aggregated groups.
type CandidateFinding struct {
	SignatureRef      string  `json:"signature_ref"`
	TotalEvents       int     `json:"total_events"`
	ErrorRate         float64 `json:"error_rate"`
	ProbableRootCause string  `json:"probable_root_cause"`
	Severity          string  `json:"severity"`
}

// Maximum allowed JSON response size (1MB) to prevent memory exhaustion
const maxJSONResponseSize = 1024 * 1024

// ParseCandidateFindings extracts the JSON array of candidate findings
// from a raw model response. A response with no parseable array yields an
// empty slice and no error: malformed model output degrades the analysis,
// it does not fail the run.
func ParseCandidateFindings(response string) []CandidateFinding {
	jsonMatch := extractJSONArray(stripCodeFences(response))
	if jsonMatch == "" {
		return []CandidateFinding{}
	}

	if len(jsonMatch) > maxJSONResponseSize {
		return []CandidateFinding{}
	}

	// Sanitize invalid JSON escape sequences that LLMs sometimes produce
	sanitizedJSON := sanitizeJSONEscapes(jsonMatch)

	var candidates []CandidateFinding
	if err := json.Unmarshal([]byte(sanitizedJSON), &candidates); err != nil {
		return []CandidateFinding{}
	}

	return candidates
}

// stripCodeFences removes a surrounding markdown code fence if present.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// extractJSONArray extracts the first balanced JSON array from a response
// string. Balanced bracket matching is more reliable than greedy regex.
func extractJSONArray(response string) string {
	startIdx := strings.Index(response, "[")
	if startIdx == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := startIdx; i < len(response); i++ {
		char := response[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' && inString {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if char == '[' {
			depth++
		} else if char == ']' {
			depth--
			if depth == 0 {
				return response[startIdx : i+1]
			}
		}
	}

	return ""
}

// sanitizeJSONEscapes fixes invalid JSON escape sequences in LLM responses.
// JSON only allows: \" \\ \/ \b \f \n \r \t \uXXXX
// LLMs sometimes produce invalid sequences like \. \( \) \- etc.
func sanitizeJSONEscapes(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			next := s[i+1]
			// Valid JSON escapes: " \ / b f n r t u
			if next == '"' || next == '\\' || next == '/' ||
				next == 'b' || next == 'f' || next == 'n' ||
				next == 'r' || next == 't' || next == 'u' {
				result.WriteByte(s[i])
				result.WriteByte(next)
				i += 2
				continue
			}
			// Invalid escape - skip the backslash, keep the character
			result.WriteByte(next)
			i += 2
			continue
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Synthesizer turns aggregated groups into candidate findings via an LLM
// provider, retrying transient transport failures.
type Synthesizer struct {
	provider       Provider
	prompts        *PromptBuilder
	maxAttempts    uint64
	retryInterval  time.Duration
	attemptTimeout time.Duration
}

// NewSynthesizer creates a synthesizer. attemptTimeoutSeconds bounds a
// single provider call; <= 0 disables the per-attempt timeout.
func NewSynthesizer(provider Provider, prompts *PromptBuilder, attemptTimeoutSeconds int) *Synthesizer {
	var attemptTimeout time.Duration
	if attemptTimeoutSeconds > 0 {
		attemptTimeout = time.Duration(attemptTimeoutSeconds) * time.Second
	}
	return &Synthesizer{
		provider:       provider,
		prompts:        prompts,
		maxAttempts:    defaultMaxAttempts,
		retryInterval:  defaultRetryDelay,
		attemptTimeout: attemptTimeout,
	}
}

// Synthesize sends the groups to the provider and parses the candidates.
// A transport failure after all retries returns an error; a response that
// parses to nothing returns an empty candidate slice and nil error.
func (s *Synthesizer) Synthesize(ctx context.Context, groups []*grouping.Group, totalEvents int) ([]CandidateFinding, *Stats, error) {
	systemPrompt := s.prompts.GetSystemPrompt()
	userPrompt := s.prompts.BuildUserPrompt(groups, totalEvents)

	var (
		responseText string
		stats        *Stats
	)

	operation := func() error {
		attemptCtx := ctx
		if s.attemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
			defer cancel()
		}

		text, callStats, err := s.provider.Complete(attemptCtx, systemPrompt, userPrompt)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(internalerrors.SanitizeError(err))
			}
			return internalerrors.SanitizeError(err)
		}

		responseText = text
		stats = callStats
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, s.maxAttempts-1), ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("llm transport failed after %d attempts: %w", s.maxAttempts, err)
	}

	return ParseCandidateFindings(responseText), stats, nil
}
