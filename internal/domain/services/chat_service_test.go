package services_test

import (
	"context"
	"testing"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *extractionEnv) createProcessedDocument(t *testing.T, text string) *models.Document {
	t.Helper()
	doc := e.db.CreateTestDocument(t, e.tenant, e.user)
	doc.ExtractedText = text
	doc.Status = models.DocStatusProcessed
	require.NoError(t, e.repos.DocumentRepo.Update(context.Background(), doc))
	return doc
}

func TestChat_AnswersWithSources(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.createProcessedDocument(t, portfolioText)

	llm := &stubLLM{reply: "The portfolio is worth 2,500.00 USD.", embedding: make([]float32, 1536)}
	chat := services.NewChatService(env.repos.DocumentRepo, llm, logger.NewForTesting())

	answer, err := chat.Ask(ctx, env.tenant.ID, "What is the portfolio worth?")
	require.NoError(t, err)
	assert.Equal(t, "The portfolio is worth 2,500.00 USD.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, doc.ID, answer.Sources[0].DocumentID)
}

// Without an embedding provider the completion model can still answer;
// retrieval drops to keyword search over extracted text.
func TestChat_TextSearchFallbackWithoutEmbeddings(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.createProcessedDocument(t, portfolioText)
	env.createProcessedDocument(t, "Board meeting minutes, nothing financial.")

	llm := &stubLLM{reply: "The portfolio is worth 2,500.00 USD."}
	chat := services.NewChatService(env.repos.DocumentRepo, llm, logger.NewForTesting())

	answer, err := chat.Ask(ctx, env.tenant.ID, "What is the portfolio worth?")
	require.NoError(t, err)
	assert.Equal(t, "The portfolio is worth 2,500.00 USD.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, doc.ID, answer.Sources[0].DocumentID)
}

func TestChat_NoMatchingDocuments(t *testing.T) {
	env := newExtractionEnv(t, nil)

	llm := &stubLLM{reply: "unused"}
	chat := services.NewChatService(env.repos.DocumentRepo, llm, logger.NewForTesting())

	answer, err := chat.Ask(context.Background(), env.tenant.ID, "Anything about holdings?")
	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "No processed documents")
	assert.Empty(t, answer.Sources)
}
