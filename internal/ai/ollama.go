package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient wraps the Ollama REST API
type OllamaClient struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	BaseURL        string // e.g., "http://localhost:11434"
	Model          string // e.g., "llama3.3:latest"
	TimeoutSeconds int    // Request timeout
	MaxTokens      int    // Max tokens in response
}

// ollamaOptions contains model parameters
type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens to generate
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// ollamaChatRequest is the request body for Ollama's /api/chat endpoint
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
	Format   string          `json:"format,omitempty"`
}

// ollamaMessage represents a chat message
type ollamaMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ollamaChatResponse is the response from Ollama's /api/chat endpoint
type ollamaChatResponse struct {
	Model              string        `json:"model"`
	CreatedAt          time.Time     `json:"created_at"`
	Message            ollamaMessage `json:"message"`
	Done               bool          `json:"done"`
	TotalDuration      int64         `json:"total_duration,omitempty"`
	LoadDuration       int64         `json:"load_duration,omitempty"`
	PromptEvalCount    int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64         `json:"prompt_eval_duration,omitempty"`
	EvalCount          int           `json:"eval_count,omitempty"`
	EvalDuration       int64         `json:"eval_duration,omitempty"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}

	// Remove trailing slash from base URL
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300 // Default 5 minutes for large models
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}

	return &OllamaClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Complete performs a single chat request and returns the raw text.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Stats, error) {
	startTime := time.Now()

	request := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  c.maxTokens,
			Temperature: 0.1, // Low temperature for consistent, factual output
			TopP:        0.9,
		},
		Format: "json", // Request JSON output format
	}

	response, err := doJSONPost[ollamaChatResponse](ctx, c.httpClient, c.baseURL+"/api/chat", request)
	if err != nil {
		return "", nil, err
	}

	if !response.Done {
		return "", nil, fmt.Errorf("incomplete response from Ollama")
	}

	responseText := response.Message.Content
	if responseText == "" {
		return "", nil, fmt.Errorf("empty response from Ollama")
	}

	stats := c.calculateStats(response, time.Since(startTime).Seconds())

	return responseText, stats, nil
}

// calculateStats calculates statistics from Ollama response
func (c *OllamaClient) calculateStats(response *ollamaChatResponse, durationSeconds float64) *Stats {
	// Ollama provides token counts
	inputTokens := response.PromptEvalCount
	outputTokens := response.EvalCount

	return &Stats{
		Provider:            "Ollama",
		Model:               c.model,
		InputTokens:         inputTokens,
		OutputTokens:        outputTokens,
		CacheCreationTokens: 0,
		CacheReadTokens:     0,
		CostUSD:             0.0, // Local inference is free
		DurationSeconds:     durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *OllamaClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      "Ollama",
		"max_tokens":    c.maxTokens,
		"base_url":      c.baseURL,
		"context_limit": 128000, // Varies by model, using common default
	}
}

// GetProviderName returns the name of the provider
func (c *OllamaClient) GetProviderName() string {
	return "Ollama"
}

// CheckConnection verifies that Ollama is running and the model is available
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	url := c.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not running at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	// Check if the configured model is available
	modelFound := false
	for _, m := range tagsResp.Models {
		// Match model name (e.g., "llama3.3:latest" matches "llama3.3")
		if m.Name == c.model || strings.HasPrefix(m.Name, strings.Split(c.model, ":")[0]) {
			modelFound = true
			break
		}
	}

	if !modelFound {
		availableModels := make([]string, len(tagsResp.Models))
		for i, m := range tagsResp.Models {
			availableModels[i] = m.Name
		}
		return fmt.Errorf("model '%s' not found in Ollama. Available models: %v. Run 'ollama pull %s' to download it",
			c.model, availableModels, c.model)
	}

	return nil
}

// Ensure OllamaClient implements Provider interface
var _ Provider = (*OllamaClient)(nil)
