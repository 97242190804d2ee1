package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/go-resty/resty/v2"
)

// Claude API constants
const (
	ClaudeAPIVersion   = "2023-06-01"
	ClaudeDefaultModel = "claude-3-5-sonnet-20241022"
)

// Claude API request/response structures
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClaudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []ClaudeMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string       `json:"model"`
	StopReason string       `json:"stop_reason"`
	Usage      ClaudeUsage  `json:"usage"`
	Error      *ClaudeError `json:"error,omitempty"`
}

type ClaudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type ClaudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// embeddingRequest targets an OpenAI-compatible embeddings endpoint; Claude
// itself does not serve embeddings.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ClaudeServiceConfig holds configuration for Claude API integration
type ClaudeServiceConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
	RateLimitRPM   int
	RetryAttempts  int
	Enabled        bool

	// Embeddings provider (OpenAI-compatible)
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
}

// ClaudeService implements LLMService against Anthropic's Claude API, with
// an optional OpenAI-compatible embeddings provider for semantic search.
type ClaudeService struct {
	config          ClaudeServiceConfig
	client          *resty.Client
	embeddingClient *resty.Client
	rateLimiter     *RateLimiter
	tokenTracker    *TokenTracker
}

// RateLimiter manages API rate limiting
type RateLimiter struct {
	requests    []time.Time
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
}

// TokenTracker tracks token usage for optimization
type TokenTracker struct {
	totalInputTokens  int64
	totalOutputTokens int64
	totalRequests     int64
	mu                sync.RWMutex
}

// NewClaudeService creates a new Claude service instance
func NewClaudeService(config ClaudeServiceConfig) (*ClaudeService, error) {
	if !config.Enabled {
		return nil, errors.New("Claude service is not enabled")
	}

	if config.APIKey == "" {
		return nil, errors.New("Claude API key is required")
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.Model == "" {
		config.Model = ClaudeDefaultModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 60
	}
	if config.RateLimitRPM == 0 {
		config.RateLimitRPM = 1000
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}

	client := resty.New()
	client.SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("x-api-key", config.APIKey)
	client.SetHeader("anthropic-version", ClaudeAPIVersion)
	client.SetBaseURL(config.BaseURL)

	service := &ClaudeService{
		config: config,
		client: client,
		rateLimiter: &RateLimiter{
			requests:    make([]time.Time, 0),
			maxRequests: config.RateLimitRPM,
			window:      time.Minute,
		},
		tokenTracker: &TokenTracker{},
	}

	if config.EmbeddingURL != "" {
		embeddingClient := resty.New()
		embeddingClient.SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second)
		embeddingClient.SetHeader("Content-Type", "application/json")
		embeddingClient.SetHeader("Authorization", "Bearer "+config.EmbeddingAPIKey)
		embeddingClient.SetBaseURL(config.EmbeddingURL)
		service.embeddingClient = embeddingClient
	}

	return service, nil
}

// Complete sends a single-turn prompt and returns the model's text reply.
func (s *ClaudeService) Complete(ctx context.Context, prompt string) (string, error) {
	if len(prompt) == 0 {
		return "", errors.New("empty prompt")
	}
	return s.makeRequest(ctx, prompt)
}

// GenerateEmbedding produces the embedding vector for a text through the
// configured embeddings provider.
func (s *ClaudeService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.embeddingClient == nil {
		return nil, errors.New("no embeddings provider configured")
	}
	if len(text) == 0 {
		return nil, errors.New("empty text provided for embedding")
	}

	var response embeddingResponse
	resp, err := s.embeddingClient.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: s.config.EmbeddingModel, Input: []string{text}}).
		SetResult(&response).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode(), resp.String())
	}
	if len(response.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return response.Data[0].Embedding, nil
}

// ClassifyDocument asks the model for one of the known financial document
// labels. Satisfies the classifier's LabelClassifier interface.
func (s *ClaudeService) ClassifyDocument(ctx context.Context, text string) (string, error) {
	if len(text) == 0 {
		return "", errors.New("empty text provided for classification")
	}

	prompt := fmt.Sprintf(`Classify this financial document into exactly one of these types:
- portfolio_statement: holdings overviews, position lists, depot statements
- transaction_statement: trade confirmations, buy/sell activity
- performance_report: returns, benchmarks, performance attribution
- account_statement: cash balances, account activity
- tax_document: tax statements, withholding reports
- unknown: none of the above

Respond with the type label only, nothing else.

Document:
%s`, truncate(text, 4000))

	response, err := s.makeRequest(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to classify document: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// makeRequest makes a request to Claude API with rate limiting and error handling
func (s *ClaudeService) makeRequest(ctx context.Context, prompt string) (string, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	request := ClaudeRequest{
		Model:       s.config.Model,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Messages: []ClaudeMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	var response ClaudeResponse
	var err error

	for attempt := 0; attempt < s.config.RetryAttempts; attempt++ {
		resp, reqErr := s.client.R().
			SetContext(ctx).
			SetBody(request).
			SetResult(&response).
			Post("/v1/messages")

		if reqErr != nil {
			if attempt == s.config.RetryAttempts-1 {
				err = reqErr
				break
			}
			// Exponential backoff
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		if resp.StatusCode() == 200 {
			err = nil
			break
		}

		switch resp.StatusCode() {
		case 429: // Rate limited
			if attempt < s.config.RetryAttempts-1 {
				time.Sleep(time.Duration(attempt+2) * time.Second)
				continue
			}
			err = errors.New("rate limit exceeded")
		case 401:
			err = errors.New("invalid API key")
		case 400:
			err = fmt.Errorf("bad request: %s", resp.String())
		default:
			err = fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}

		if attempt == s.config.RetryAttempts-1 {
			break
		}
	}

	if err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", fmt.Errorf("Claude API error: %s", response.Error.Message)
	}

	s.tokenTracker.Track(response.Usage.InputTokens, response.Usage.OutputTokens)

	if len(response.Content) > 0 {
		return response.Content[0].Text, nil
	}

	return "", errors.New("empty response from Claude API")
}

// Wait implements rate limiting
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Remove old requests outside the window
	cutoff := now.Add(-rl.window)
	validRequests := make([]time.Time, 0)
	for _, reqTime := range rl.requests {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}
	rl.requests = validRequests

	if len(rl.requests) >= rl.maxRequests {
		oldestRequest := rl.requests[0]
		waitTime := rl.window - now.Sub(oldestRequest)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	rl.requests = append(rl.requests, now)
	return nil
}

// Track records token usage
func (tt *TokenTracker) Track(inputTokens, outputTokens int) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	tt.totalInputTokens += int64(inputTokens)
	tt.totalOutputTokens += int64(outputTokens)
	tt.totalRequests++
}

// GetUsage returns current token usage statistics
func (tt *TokenTracker) GetUsage() (inputTokens, outputTokens, requests int64) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	return tt.totalInputTokens, tt.totalOutputTokens, tt.totalRequests
}

// GetTokenUsage returns token usage statistics for the service
func (s *ClaudeService) GetTokenUsage() (inputTokens, outputTokens, requests int64) {
	return s.tokenTracker.GetUsage()
}

// IsEnabled returns whether the Claude service is enabled
func (s *ClaudeService) IsEnabled() bool {
	return s.config.Enabled
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

// ensure ClaudeService satisfies LLMService
var _ LLMService = (*ClaudeService)(nil)

// ParseDocumentType normalizes a model-returned label into a known document
// type, defaulting to unknown.
func ParseDocumentType(label string) models.DocumentType {
	switch models.DocumentType(strings.ToLower(strings.TrimSpace(label))) {
	case models.DocTypePortfolioStatement:
		return models.DocTypePortfolioStatement
	case models.DocTypeTransactionStatement:
		return models.DocTypeTransactionStatement
	case models.DocTypePerformanceReport:
		return models.DocTypePerformanceReport
	case models.DocTypeAccountStatement:
		return models.DocTypeAccountStatement
	case models.DocTypeTaxDocument:
		return models.DocTypeTaxDocument
	default:
		return models.DocTypeUnknown
	}
}
