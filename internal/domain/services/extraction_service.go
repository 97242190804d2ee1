package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/extraction"
	"github.com/findoc/findoc/internal/extraction/acquire"
	"github.com/findoc/findoc/internal/extraction/classify"
	"github.com/findoc/findoc/internal/extraction/fields"
	"github.com/findoc/findoc/internal/extraction/llmextract"
	"github.com/findoc/findoc/internal/extraction/merge"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Pipeline stage names used in outcome reporting.
const (
	StageAcquire  = "acquire"
	StageClassify = "classify"
	StageFields   = "fields"
	StageLLM      = "llm"
	StageMerge    = "merge"
	StagePersist  = "persist"
)

// ExtractionService orchestrates the extraction pipeline: acquire text,
// classify, extract fields rule-based and via LLM, merge, persist. Every
// stage reports an explicit outcome; degraded stages surface warnings
// instead of silently defaulting.
type ExtractionService struct {
	docRepo    repositories.DocumentRepository
	jobRepo    repositories.ExtractionJobRepository
	auditRepo  repositories.AuditLogRepository
	storage    StorageService
	extractor  *acquire.Extractor
	classifier *classify.Classifier
	llm        LLMService // nil when no provider is configured
	cache      CacheService
	logger     *logger.Logger
}

type ExtractionServiceConfig struct {
	DocRepo    repositories.DocumentRepository
	JobRepo    repositories.ExtractionJobRepository
	AuditRepo  repositories.AuditLogRepository
	Storage    StorageService
	Extractor  *acquire.Extractor
	Classifier *classify.Classifier
	LLM        LLMService
	Cache      CacheService
	Logger     *logger.Logger
}

func NewExtractionService(cfg ExtractionServiceConfig) *ExtractionService {
	return &ExtractionService{
		docRepo:    cfg.DocRepo,
		jobRepo:    cfg.JobRepo,
		auditRepo:  cfg.AuditRepo,
		storage:    cfg.Storage,
		extractor:  cfg.Extractor,
		classifier: cfg.Classifier,
		llm:        cfg.LLM,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
	}
}

// ProcessDocument runs the full pipeline for one document and persists the
// result. The returned outcomes describe each stage; the error is non-nil
// only when the pipeline could not produce a result at all.
func (s *ExtractionService) ProcessDocument(ctx context.Context, tenantID, documentID uuid.UUID) (*extraction.Result, []extraction.Outcome, error) {
	doc, err := s.docRepo.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}

	if err := s.docRepo.UpdateStatus(ctx, tenantID, documentID, models.DocStatusProcessing, ""); err != nil {
		return nil, nil, err
	}

	result, outcomes, err := s.runPipeline(ctx, doc)
	if err != nil {
		s.logger.Error("extraction pipeline failed",
			"document_id", documentID, "tenant_id", tenantID, "error", err)
		if statusErr := s.docRepo.UpdateStatus(ctx, tenantID, documentID, models.DocStatusError, err.Error()); statusErr != nil {
			s.logger.Error("failed to record error status", "document_id", documentID, "error", statusErr)
		}
		return nil, outcomes, err
	}

	s.logger.Info("document processed",
		"document_id", documentID,
		"document_type", result.DocumentType,
		"securities", len(result.Securities),
		"warnings", len(result.Warnings))

	return result, outcomes, nil
}

func (s *ExtractionService) runPipeline(ctx context.Context, doc *models.Document) (*extraction.Result, []extraction.Outcome, error) {
	var outcomes []extraction.Outcome

	// Acquire
	content, acquireWarnings, err := s.acquireContent(ctx, doc)
	if err != nil {
		outcomes = append(outcomes, extraction.Failed(StageAcquire, err))
		return nil, outcomes, fmt.Errorf("acquire: %w", err)
	}
	outcomes = append(outcomes, extraction.Partial(StageAcquire, acquireWarnings))

	// Classify
	docType := s.classifier.Classify(ctx, content.Text)
	outcomes = append(outcomes, extraction.Ok(StageClassify))

	// Rule-based field extraction
	textSecurities, textWarnings := fields.ExtractSecurities(content.Text)
	tableSecurities, tableWarnings := fields.ExtractFromRows(content.Tables)
	summary, summaryWarnings := fields.ExtractSummary(content.Text)
	allocation, allocationWarnings := fields.ExtractAllocation(content.Text)

	fieldWarnings := concatWarnings(textWarnings, tableWarnings, summaryWarnings, allocationWarnings)
	outcomes = append(outcomes, extraction.Partial(StageFields, fieldWarnings))

	// LLM extraction (optional)
	llmResponse, llmOutcome := s.runLLMExtraction(ctx, doc, docType, content.Text)
	outcomes = append(outcomes, llmOutcome)

	// Merge with fixed priority: table > text > llm
	merged, mergeWarnings := merge.Merge(tableSecurities, textSecurities, llmResponse.ToSecurities())
	outcomes = append(outcomes, extraction.Partial(StageMerge, mergeWarnings))

	summary = fillSummaryFromLLM(summary, summaryWarnings, llmResponse)
	if len(allocation) == 0 && len(llmResponse.AssetAllocation) > 0 {
		allocation = llmResponse.AssetAllocation
	}

	result := &extraction.Result{
		DocumentType:     string(docType),
		Securities:       merged,
		PortfolioSummary: summary,
		AssetAllocation:  allocation,
		ExtractionMethod: content.Method,
	}
	result.Warnings = concatWarnings(acquireWarnings, fieldWarnings, llmOutcome.Warnings, mergeWarnings)

	if len(merged) == 0 && docType == models.DocTypePortfolioStatement {
		result.Warnings = append(result.Warnings, extraction.Warning{
			Code:    extraction.WarnNoSecuritiesRule,
			Message: "portfolio statement yielded no securities",
		})
	}

	// Persist
	if err := s.persistResult(ctx, doc, content.Text, result); err != nil {
		outcomes = append(outcomes, extraction.Failed(StagePersist, err))
		return nil, outcomes, fmt.Errorf("persist: %w", err)
	}
	outcomes = append(outcomes, extraction.Ok(StagePersist))

	return result, outcomes, nil
}

// acquireContent downloads the stored file to a temp path and extracts its
// content. An OCR fallback is reported as a warning, not hidden.
func (s *ExtractionService) acquireContent(ctx context.Context, doc *models.Document) (*acquire.Content, []extraction.Warning, error) {
	reader, err := s.storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch stored file: %w", err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "findoc-*"+filepath.Ext(doc.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return nil, nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	content, err := s.extractor.Extract(ctx, tmp.Name(), doc.ContentType)
	if err != nil {
		return nil, nil, err
	}

	var warnings []extraction.Warning
	if content.Method == acquire.MethodOCR {
		warnings = append(warnings, extraction.Warning{
			Code:    extraction.WarnOCRFallback,
			Message: "no embedded text, content recovered via ocr",
		})
	}
	return content, warnings, nil
}

// runLLMExtraction is the degraded-path boundary: an unparsable model
// response becomes an explicit empty shell plus a warning, never a silent
// default. With no LLM configured the stage reports ok with nothing to do.
func (s *ExtractionService) runLLMExtraction(ctx context.Context, doc *models.Document, docType models.DocumentType, text string) (*llmextract.Response, extraction.Outcome) {
	if s.llm == nil || !s.llm.IsEnabled() {
		return llmextract.DefaultResult(), extraction.Ok(StageLLM)
	}

	prompt := llmextract.BuildPrompt(llmextract.Meta{
		FileName:     doc.OriginalName,
		DocumentType: string(docType),
		FileSize:     doc.FileSize,
	}, text)

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("llm extraction request failed", "document_id", doc.ID, "error", err)
		return llmextract.DefaultResult(), extraction.Partial(StageLLM, []extraction.Warning{{
			Code:    extraction.WarnLLMUnparsable,
			Message: fmt.Sprintf("llm request failed: %v", err),
		}})
	}

	response, err := llmextract.Parse(raw)
	if err != nil {
		s.logger.Warn("llm response unparsable", "document_id", doc.ID, "error", err)
		return llmextract.DefaultResult(), extraction.Partial(StageLLM, []extraction.Warning{{
			Code:    extraction.WarnLLMUnparsable,
			Message: "llm response could not be parsed, continuing without llm data",
		}})
	}

	return response, extraction.Ok(StageLLM)
}

func (s *ExtractionService) persistResult(ctx context.Context, doc *models.Document, text string, result *extraction.Result) error {
	data, err := toJSONB(result)
	if err != nil {
		return err
	}

	doc.ExtractedText = text
	doc.DocumentType = models.DocumentType(result.DocumentType)
	doc.ExtractedData = data
	doc.Status = models.DocStatusProcessed
	doc.ErrorMessage = ""
	doc.SecurityCount = len(result.Securities)

	// Denormalized portfolio fields for filtering
	totalValue := result.PortfolioSummary.TotalValue
	doc.TotalValue = &totalValue
	doc.Currency = result.PortfolioSummary.Currency
	doc.ValuationDate = result.PortfolioSummary.ValuationDate

	if err := s.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(result); err == nil {
			cacheKey := fmt.Sprintf(ExtractionCacheKeyPattern, doc.ID)
			if err := s.cache.Set(ctx, cacheKey, string(encoded), CacheMediumTerm); err != nil {
				s.logger.Warn("failed to cache extraction result", "document_id", doc.ID, "error", err)
			}
		}
	}
	return nil
}

/// ProcessJob executes one queued job and does its retry bookkeeping: on
// failure the job is requeued until attempts reach max_attempts, then marked
// failed.
func (s *ExtractionService) ProcessJob(ctx context.Context, job *models.ExtractionJob) error {
	start := time.Now()

	if err := s.jobRepo.UpdateStatus(ctx, job.ID, models.ProcessingInProgress, ""); err != nil {
		return err
	}

	jobErr := s.runJob(ctx, job)

	job.Attempts++
	job.ProcessingTimeMs = int(time.Since(start).Milliseconds())

	now := time.Now()
	if jobErr != nil {
		job.ErrorMessage = jobErr.Error()
		if job.Attempts < job.MaxAttempts {
			job.Status = models.ProcessingQueued
			s.logger.Warn("job failed, requeued",
				"job_id", job.ID, "job_type", job.JobType,
				"attempt", job.Attempts, "error", jobErr)
		} else {
			job.Status = models.ProcessingFailed
			job.CompletedAt = &now
			s.logger.Error("job failed permanently",
				"job_id", job.ID, "job_type", job.JobType, "error", jobErr)
		}
	} else {
		job.Status = models.ProcessingCompleted
		job.ErrorMessage = ""
		job.CompletedAt = &now
	}

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return jobErr
}

func (s *ExtractionService) runJob(ctx context.Context, job *models.ExtractionJob) error {
	switch job.JobType {
	case models.JobTypeFullPipeline:
		_, outcomes, err := s.ProcessDocument(ctx, job.TenantID, job.DocumentID)
		job.Result = outcomesToJSONB(outcomes)
		return err

	case models.JobTypeTextExtraction:
		return s.runTextExtraction(ctx, job)

	case models.JobTypeClassification:
		return s.runClassification(ctx, job)

	case models.JobTypeFieldExtraction:
		return s.runFieldExtraction(ctx, job)

	case models.JobTypeLLMExtraction:
		return s.runLLMExtractionJob(ctx, job)

	case models.JobTypeEmbeddingGeneration:
		return s.runEmbeddingGeneration(ctx, job)

	case models.JobTypeReportGeneration:
		// reports run inside the schedule runner, never through the queue
		return errors.New("report_generation jobs are executed by the schedule runner")

	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

// runTextExtraction acquires and stores the raw text without running the
// rest of the pipeline.
func (s *ExtractionService) runTextExtraction(ctx context.Context, job *models.ExtractionJob) error {
	doc, err := s.docRepo.GetByID(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return err
	}

	content, _, err := s.acquireContent(ctx, doc)
	if err != nil {
		return err
	}

	doc.ExtractedText = content.Text
	return s.docRepo.Update(ctx, doc)
}

// runClassification classifies previously extracted text.
func (s *ExtractionService) runClassification(ctx context.Context, job *models.ExtractionJob) error {
	doc, err := s.docRepo.GetByID(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return err
	}
	if doc.ExtractedText == "" {
		return errors.New("document has no extracted text to classify")
	}

	doc.DocumentType = s.classifier.Classify(ctx, doc.ExtractedText)
	return s.docRepo.Update(ctx, doc)
}

// runFieldExtraction reruns the rule-based extractors over previously
// extracted text and persists a fresh result, without touching storage or the
// LLM. Useful after extractor fixes.
func (s *ExtractionService) runFieldExtraction(ctx context.Context, job *models.ExtractionJob) error {
	doc, err := s.docRepo.GetByID(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return err
	}
	if doc.ExtractedText == "" {
		return errors.New("document has no extracted text to re-extract")
	}

	securities, secWarnings := fields.ExtractSecurities(doc.ExtractedText)
	summary, summaryWarnings := fields.ExtractSummary(doc.ExtractedText)
	allocation, allocationWarnings := fields.ExtractAllocation(doc.ExtractedText)
	merged, mergeWarnings := merge.Merge(securities)

	result := &extraction.Result{
		DocumentType:     string(doc.DocumentType),
		Securities:       merged,
		PortfolioSummary: summary,
		AssetAllocation:  allocation,
	}
	result.Warnings = concatWarnings(secWarnings, summaryWarnings, allocationWarnings, mergeWarnings)

	return s.persistResult(ctx, doc, doc.ExtractedText, result)
}

// runLLMExtractionJob reruns only the LLM extractor over previously extracted
// text. An unparsable response fails the job instead of degrading, since the
// LLM result is the whole point of this job type.
func (s *ExtractionService) runLLMExtractionJob(ctx context.Context, job *models.ExtractionJob) error {
	if s.llm == nil || !s.llm.IsEnabled() {
		return errors.New("no llm provider configured")
	}

	doc, err := s.docRepo.GetByID(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return err
	}
	if doc.ExtractedText == "" {
		return errors.New("document has no extracted text for llm extraction")
	}

	prompt := llmextract.BuildPrompt(llmextract.Meta{
		FileName:     doc.OriginalName,
		DocumentType: string(doc.DocumentType),
		FileSize:     doc.FileSize,
	}, doc.ExtractedText)

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("llm request failed: %w", err)
	}
	response, err := llmextract.Parse(raw)
	if err != nil {
		return err
	}

	merged, mergeWarnings := merge.Merge(response.ToSecurities())
	summary := extraction.PortfolioSummary{
		TotalValue: response.PortfolioSummary.TotalValue,
		Currency:   response.PortfolioSummary.Currency,
	}
	if response.PortfolioSummary.ValuationDate != "" {
		if parsed, err := time.Parse("2006-01-02", response.PortfolioSummary.ValuationDate); err == nil {
			summary.ValuationDate = &parsed
		}
	}

	result := &extraction.Result{
		DocumentType:     string(doc.DocumentType),
		Securities:       merged,
		PortfolioSummary: summary,
		AssetAllocation:  response.AssetAllocation,
		Warnings:         mergeWarnings,
	}
	return s.persistResult(ctx, doc, doc.ExtractedText, result)
}

// runEmbeddingGeneration embeds the document text for semantic search.
// Without an embeddings provider this job is a no-op success, so uploads
// work the same with or without an LLM configured.
func (s *ExtractionService) runEmbeddingGeneration(ctx context.Context, job *models.ExtractionJob) error {
	if s.llm == nil || !s.llm.IsEnabled() {
		return nil
	}

	doc, err := s.docRepo.GetByID(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return err
	}
	if doc.ExtractedText == "" {
		return errors.New("document has no extracted text to embed")
	}

	vector, err := s.llm.GenerateEmbedding(ctx, truncate(doc.ExtractedText, 8000))
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	doc.Embedding = pgvector.NewVector(vector)
	return s.docRepo.Update(ctx, doc)
}

// Reprocess resets a document and queues a fresh pipeline run.
func (s *ExtractionService) Reprocess(ctx context.Context, tenantID, documentID, userID uuid.UUID) (*models.ExtractionJob, error) {
	doc, err := s.docRepo.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.UpdateStatus(ctx, tenantID, doc.ID, models.DocStatusUploaded, ""); err != nil {
		return nil, err
	}

	job := &models.ExtractionJob{
		TenantID:    tenantID,
		DocumentID:  doc.ID,
		JobType:     models.JobTypeFullPipeline,
		Status:      models.ProcessingQueued,
		Priority:    3, // reprocess ahead of fresh uploads
		MaxAttempts: 3,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if s.auditRepo != nil {
		audit := &models.AuditLog{
			TenantID:     tenantID,
			UserID:       userID,
			ResourceID:   doc.ID,
			Action:       models.AuditReprocess,
			ResourceType: "document",
		}
		if err := s.auditRepo.Create(ctx, audit); err != nil {
			s.logger.Warn("failed to write audit log", "document_id", doc.ID, "error", err)
		}
	}

	return job, nil
}

// fillSummaryFromLLM keeps rule-based values and only takes LLM values for
// fields the rules defaulted, as recorded in the summary warnings.
func fillSummaryFromLLM(summary extraction.PortfolioSummary, warnings []extraction.Warning, resp *llmextract.Response) extraction.PortfolioSummary {
	defaulted := make(map[string]bool)
	for _, w := range warnings {
		if w.Code == extraction.WarnDefaultedField {
			defaulted[w.Field] = true
		}
	}

	if defaulted["total_value"] && resp.PortfolioSummary.TotalValue != 0 {
		summary.TotalValue = resp.PortfolioSummary.TotalValue
	}
	if defaulted["currency"] && resp.PortfolioSummary.Currency != "" {
		summary.Currency = resp.PortfolioSummary.Currency
	}
	if summary.ValuationDate == nil && resp.PortfolioSummary.ValuationDate != "" {
		if parsed, err := time.Parse("2006-01-02", resp.PortfolioSummary.ValuationDate); err == nil {
			summary.ValuationDate = &parsed
		}
	}
	return summary
}

func concatWarnings(lists ...[]extraction.Warning) []extraction.Warning {
	var out []extraction.Warning
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

func toJSONB(v interface{}) (models.JSONB, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var data models.JSONB
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return data, nil
}

func outcomesToJSONB(outcomes []extraction.Outcome) models.JSONB {
	stages := make([]map[string]interface{}, 0, len(outcomes))
	for _, o := range outcomes {
		stage := map[string]interface{}{
			"stage":  o.Stage,
			"status": string(o.Status),
		}
		if len(o.Warnings) > 0 {
			stage["warnings"] = len(o.Warnings)
		}
		if o.Err != nil {
			stage["error"] = o.Err.Error()
		}
		stages = append(stages, stage)
	}
	return models.JSONB{"stages": stages}
}
