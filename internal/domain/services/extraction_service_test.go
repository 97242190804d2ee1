package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/extraction"
	"github.com/findoc/findoc/internal/extraction/acquire"
	"github.com/findoc/findoc/internal/extraction/classify"
	"github.com/findoc/findoc/internal/infrastructure/cache"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql/testutil"
	storagelocal "github.com/findoc/findoc/internal/infrastructure/storage/local"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLM implements services.LLMService for pipeline tests.
type stubLLM struct {
	reply     string
	err       error
	embedding []float32
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.embedding == nil {
		return nil, errors.New("no embeddings configured")
	}
	return s.embedding, nil
}

func (s *stubLLM) IsEnabled() bool { return true }

type extractionEnv struct {
	svc     *services.ExtractionService
	db      *testutil.TestDB
	repos   *postgresql.Repositories
	storage services.StorageService
	tenant  *models.Tenant
	user    *models.User
}

func newExtractionEnv(t *testing.T, llm services.LLMService) *extractionEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { db.Cleanup(t) })

	repos := postgresql.NewRepositories(db.DB)
	storage := storagelocal.NewStorageService(t.TempDir())

	svc := services.NewExtractionService(services.ExtractionServiceConfig{
		DocRepo:    repos.DocumentRepo,
		JobRepo:    repos.JobRepo,
		AuditRepo:  repos.AuditRepo,
		Storage:    storage,
		Extractor:  acquire.NewExtractor(nil),
		Classifier: classify.New(),
		LLM:        llm,
		Cache:      cache.NewMemory(),
		Logger:     logger.NewForTesting(),
	})

	tenant := db.CreateTestTenant(t)
	return &extractionEnv{
		svc:     svc,
		db:      db,
		repos:   repos,
		storage: storage,
		tenant:  tenant,
		user:    db.CreateTestUser(t, tenant),
	}
}

// storeDocument writes content into storage and creates the document row.
func (e *extractionEnv) storeDocument(t *testing.T, fileName, contentType, content string) *models.Document {
	t.Helper()
	ctx := context.Background()

	path, err := e.storage.Store(ctx, services.StorageParams{
		TenantID:    e.tenant.ID,
		FileReader:  strings.NewReader(content),
		Filename:    fileName,
		ContentType: contentType,
		Size:        int64(len(content)),
	})
	require.NoError(t, err)

	doc := &models.Document{
		TenantID:     e.tenant.ID,
		FileName:     fileName,
		OriginalName: fileName,
		ContentType:  contentType,
		FileSize:     int64(len(content)),
		StoragePath:  path,
		ContentHash:  uuid.New().String(),
		DocumentType: models.DocTypeUnknown,
		Status:       models.DocStatusUploaded,
		CreatedBy:    e.user.ID,
	}
	require.NoError(t, e.repos.DocumentRepo.Create(ctx, doc))
	return doc
}

const portfolioText = `Portfolio Holdings Statement
Valuation Date: 2024-12-31
Total Portfolio Value: 2,500.00 USD

Apple Inc. ISIN US0378331005 Quantity 10 Price 150.00 Value 1,500.00 USD
Microsoft Corp ISIN US5949181045 Quantity 5 Price 200.00 Value 1,000.00 USD
`

func TestProcessDocument_PlainTextPortfolio(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)

	result, outcomes, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, string(models.DocTypePortfolioStatement), result.DocumentType)
	require.Len(t, result.Securities, 2)
	assert.Equal(t, "US0378331005", result.Securities[0].ISIN)
	assert.Equal(t, 2500.0, result.PortfolioSummary.TotalValue)
	require.NotNil(t, result.PortfolioSummary.ValuationDate)
	assert.Equal(t, "2024-12-31", result.PortfolioSummary.ValuationDate.Format("2006-01-02"))

	// All stages reported, none failed
	stages := make(map[string]extraction.OutcomeStatus)
	for _, o := range outcomes {
		stages[o.Stage] = o.Status
	}
	allStages := []string{
		services.StageAcquire, services.StageClassify, services.StageFields,
		services.StageLLM, services.StageMerge, services.StagePersist,
	}
	for _, stage := range allStages {
		require.Contains(t, stages, stage)
		assert.NotEqual(t, extraction.OutcomeFailed, stages[stage])
	}

	// Persisted document state
	stored, err := env.repos.DocumentRepo.GetByID(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessed, stored.Status)
	assert.Equal(t, 2, stored.SecurityCount)
	assert.Equal(t, models.DocTypePortfolioStatement, stored.DocumentType)
	require.NotNil(t, stored.TotalValue)
	assert.Equal(t, 2500.0, *stored.TotalValue)
	assert.NotEmpty(t, stored.ExtractedData)
}

func TestProcessDocument_CSVHoldings(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	csvContent := "name,isin,quantity,price,value,currency\n" +
		"Apple Inc.,US0378331005,10,150.00,1500.00,USD\n" +
		"Nestle SA,CH0038863350,4,100.00,400.00,CHF\n"
	doc := env.storeDocument(t, "holdings.csv", "text/csv", csvContent)

	result, _, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)

	require.Len(t, result.Securities, 2)
	for _, sec := range result.Securities {
		assert.Equal(t, extraction.SourceTable, sec.Source)
	}
	assert.Equal(t, acquire.MethodCSV, result.ExtractionMethod)
}

func TestProcessDocument_MissingFileSetsErrorStatus(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "gone.txt", "text/plain", "placeholder")
	require.NoError(t, env.storage.Delete(ctx, doc.StoragePath))

	_, outcomes, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.Error(t, err)
	require.NotEmpty(t, outcomes)
	assert.Equal(t, extraction.OutcomeFailed, outcomes[0].Status)

	stored, err := env.repos.DocumentRepo.GetByID(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusError, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestProcessDocument_UnparsableLLMIsExplicit(t *testing.T) {
	env := newExtractionEnv(t, &stubLLM{reply: "I cannot help with that."})
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)

	result, outcomes, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)

	// The rule-based result survives and the degradation is visible
	require.Len(t, result.Securities, 2)

	var llmOutcome *extraction.Outcome
	for i := range outcomes {
		if outcomes[i].Stage == services.StageLLM {
			llmOutcome = &outcomes[i]
		}
	}
	require.NotNil(t, llmOutcome)
	assert.Equal(t, extraction.OutcomePartial, llmOutcome.Status)

	found := false
	for _, w := range result.Warnings {
		if w.Code == extraction.WarnLLMUnparsable {
			found = true
		}
	}
	assert.True(t, found, "expected llm_response_unparsable warning")
}

func TestProcessDocument_LLMFillsDefaultedSummary(t *testing.T) {
	llmReply := `{
		"securities": [],
		"portfolio_summary": {"total_value": 9999.0, "currency": "CHF", "valuation_date": "2024-06-30"},
		"asset_allocation": {}
	}`
	env := newExtractionEnv(t, &stubLLM{reply: llmReply})
	ctx := context.Background()

	// No labeled total and no currency token, so the rules default both
	text := "Holdings overview\nApple Inc. ISIN US0378331005 Quantity 10\n"
	doc := env.storeDocument(t, "sparse.txt", "text/plain", text)

	result, _, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, 9999.0, result.PortfolioSummary.TotalValue)
	assert.Equal(t, "CHF", result.PortfolioSummary.Currency)
	require.NotNil(t, result.PortfolioSummary.ValuationDate)
}

func TestProcessJob_FullPipelineCompletes(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	job := env.db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)

	require.NoError(t, env.svc.ProcessJob(ctx, job))

	assert.Equal(t, models.ProcessingCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.CompletedAt)
	assert.Contains(t, job.Result, "stages")
}

func TestProcessJob_RequeuesThenFails(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "gone.txt", "text/plain", "placeholder")
	require.NoError(t, env.storage.Delete(ctx, doc.StoragePath))

	job := env.db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)
	job.MaxAttempts = 2
	require.NoError(t, env.repos.JobRepo.Update(ctx, job))

	// First attempt fails and requeues
	require.Error(t, env.svc.ProcessJob(ctx, job))
	assert.Equal(t, models.ProcessingQueued, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.NotEmpty(t, job.ErrorMessage)

	// Second attempt exhausts the budget
	require.Error(t, env.svc.ProcessJob(ctx, job))
	assert.Equal(t, models.ProcessingFailed, job.Status)
	assert.Equal(t, 2, job.Attempts)
	require.NotNil(t, job.CompletedAt)
}

func TestProcessJob_EmbeddingWithoutProviderIsNoop(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	job := env.db.CreateTestJob(t, doc, models.JobTypeEmbeddingGeneration, 7)

	require.NoError(t, env.svc.ProcessJob(ctx, job))
	assert.Equal(t, models.ProcessingCompleted, job.Status)
}

func TestProcessJob_FieldExtractionRerun(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	_, _, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)

	job := env.db.CreateTestJob(t, doc, models.JobTypeFieldExtraction, 5)
	require.NoError(t, env.svc.ProcessJob(ctx, job))
	assert.Equal(t, models.ProcessingCompleted, job.Status)

	stored, err := env.repos.DocumentRepo.GetByID(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessed, stored.Status)
	assert.Equal(t, 2, stored.SecurityCount)
}

func TestProcessJob_LLMExtractionWithoutProviderFails(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	job := env.db.CreateTestJob(t, doc, models.JobTypeLLMExtraction, 5)
	job.MaxAttempts = 1
	require.NoError(t, env.repos.JobRepo.Update(ctx, job))

	err := env.svc.ProcessJob(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no llm provider")
	assert.Equal(t, models.ProcessingFailed, job.Status)
}

func TestProcessJob_UnknownTypeFails(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	job := env.db.CreateTestJob(t, doc, "cat_herding", 5)
	job.MaxAttempts = 1
	require.NoError(t, env.repos.JobRepo.Update(ctx, job))

	err := env.svc.ProcessJob(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
	assert.Equal(t, models.ProcessingFailed, job.Status)
}

func TestReprocess(t *testing.T) {
	env := newExtractionEnv(t, nil)
	ctx := context.Background()

	doc := env.storeDocument(t, "statement.txt", "text/plain", portfolioText)
	_, _, err := env.svc.ProcessDocument(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)

	job, err := env.svc.Reprocess(ctx, env.tenant.ID, doc.ID, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeFullPipeline, job.JobType)
	assert.Equal(t, 3, job.Priority)

	stored, err := env.repos.DocumentRepo.GetByID(ctx, env.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusUploaded, stored.Status)
}

func TestReprocess_UnknownDocument(t *testing.T) {
	env := newExtractionEnv(t, nil)

	_, err := env.svc.Reprocess(context.Background(), env.tenant.ID, uuid.New(), env.user.ID)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "not found")
}
