package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
)

var ErrChatUnavailable = errors.New("chat requires a configured LLM provider")

const (
	chatMaxSources       = 5
	chatExcerptPerSource = 1500
)

// ChatService answers questions about a tenant's processed documents. The
// question is embedded and the closest documents are retrieved via vector
// search; when no embedding provider is configured, retrieval falls back to
// keyword search over extracted text. The documents ground the model's answer.
type ChatService struct {
	docRepo repositories.DocumentRepository
	llm     LLMService
	logger  *logger.Logger
}

func NewChatService(docRepo repositories.DocumentRepository, llm LLMService, logger *logger.Logger) *ChatService {
	return &ChatService{docRepo: docRepo, llm: llm, logger: logger}
}

// ChatAnswer is the grounded reply plus the documents it drew from.
type ChatAnswer struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}

type ChatSource struct {
	DocumentID   uuid.UUID `json:"document_id"`
	FileName     string    `json:"file_name"`
	DocumentType string    `json:"document_type"`
}

func (s *ChatService) Ask(ctx context.Context, tenantID uuid.UUID, question string) (*ChatAnswer, error) {
	if s.llm == nil || !s.llm.IsEnabled() {
		return nil, ErrChatUnavailable
	}
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("empty question")
	}

	var docs []models.Document
	embedding, err := s.llm.GenerateEmbedding(ctx, question)
	if err != nil {
		// The completion model can still answer without an embedding provider.
		// Fall back to keyword retrieval over extracted text.
		s.logger.Warn("question embedding unavailable, using text search", "error", err)
		docs, err = s.docRepo.SearchText(ctx, tenantID, question, chatMaxSources)
	} else {
		docs, err = s.docRepo.SemanticSearch(ctx, tenantID, embedding, chatMaxSources)
	}
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &ChatAnswer{Answer: "No processed documents are available to answer from.", Sources: nil}, nil
	}

	answer, err := s.llm.Complete(ctx, buildChatPrompt(question, docs))
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	sources := make([]ChatSource, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, ChatSource{
			DocumentID:   doc.ID,
			FileName:     doc.OriginalName,
			DocumentType: string(doc.DocumentType),
		})
	}

	s.logger.Info("chat question answered", "tenant_id", tenantID, "sources", len(sources))
	return &ChatAnswer{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

func buildChatPrompt(question string, docs []models.Document) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the financial documents below. ")
	b.WriteString("If the documents do not contain the answer, say so.\n\n")

	for i, doc := range docs {
		fmt.Fprintf(&b, "Document %d: %s (%s)\n", i+1, doc.OriginalName, doc.DocumentType)
		excerpt := doc.ExtractedText
		if len(excerpt) > chatExcerptPerSource {
			excerpt = excerpt[:chatExcerptPerSource]
		}
		b.WriteString(excerpt)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
