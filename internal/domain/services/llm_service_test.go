package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaudeTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ClaudeService) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewClaudeService(ClaudeServiceConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Enabled:       true,
		RetryAttempts: 2,
	})
	require.NoError(t, err)
	return server, service
}

func claudeReply(text string) ClaudeResponse {
	return ClaudeResponse{
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: text}},
		Usage: ClaudeUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestClaudeService_Complete(t *testing.T) {
	_, service := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req ClaudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(claudeReply("extracted text"))
	})

	result, err := service.Complete(context.Background(), "extract this")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", result)

	input, output, requests := service.GetTokenUsage()
	assert.Equal(t, int64(10), input)
	assert.Equal(t, int64(5), output)
	assert.Equal(t, int64(1), requests)
}

func TestClaudeService_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	_, service := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(claudeReply("ok"))
	})

	result, err := service.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClaudeService_InvalidAPIKey(t *testing.T) {
	_, service := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := service.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}

func TestClaudeService_ClassifyDocument(t *testing.T) {
	_, service := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(claudeReply("portfolio_statement\n"))
	})

	label, err := service.ClassifyDocument(context.Background(), "Portfolio holdings as of 2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, "portfolio_statement", label)
}

func TestClaudeService_GenerateEmbedding(t *testing.T) {
	embeddings := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer embed-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
			}{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer embeddings.Close()

	service, err := NewClaudeService(ClaudeServiceConfig{
		APIKey:          "test-key",
		BaseURL:         "http://localhost:0",
		Enabled:         true,
		EmbeddingURL:    embeddings.URL,
		EmbeddingAPIKey: "embed-key",
	})
	require.NoError(t, err)

	vec, err := service.GenerateEmbedding(context.Background(), "Apple Inc. holdings")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClaudeService_GenerateEmbedding_NotConfigured(t *testing.T) {
	service, err := NewClaudeService(ClaudeServiceConfig{APIKey: "k", Enabled: true})
	require.NoError(t, err)

	_, err = service.GenerateEmbedding(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewClaudeService_Validation(t *testing.T) {
	_, err := NewClaudeService(ClaudeServiceConfig{Enabled: false})
	assert.Error(t, err)

	_, err = NewClaudeService(ClaudeServiceConfig{Enabled: true})
	assert.Error(t, err)
}

func TestParseDocumentType(t *testing.T) {
	assert.Equal(t, models.DocTypePortfolioStatement, ParseDocumentType(" Portfolio_Statement "))
	assert.Equal(t, models.DocTypeTaxDocument, ParseDocumentType("tax_document"))
	assert.Equal(t, models.DocTypeUnknown, ParseDocumentType("invoice"))
	assert.Equal(t, models.DocTypeUnknown, ParseDocumentType(""))
}
