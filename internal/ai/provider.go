// Package ai talks to LLM providers and turns aggregated log groups into
// candidate findings. Model output is treated as untrusted text: it gets
// structurally parsed here and numerically reconciled downstream.
package ai

import "context"

// Provider defines the interface for LLM transports (Anthropic, Ollama).
// Complete performs one request and returns the raw assistant text; it
// does not retry.
type Provider interface {
	// Complete sends the prompts and returns the raw response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Stats, error)

	// GetModelInfo returns information about the configured model
	GetModelInfo() map[string]interface{}

	// GetProviderName returns the name of the provider (e.g., "Anthropic", "Ollama")
	GetProviderName() string
}

// Stats holds statistics about one API call.
type Stats struct {
	Provider            string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	DurationSeconds     float64
}

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// IsValidProviderType checks if the given provider type is valid
func IsValidProviderType(pt string) bool {
	switch ProviderType(pt) {
	case ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}
