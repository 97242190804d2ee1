package postgresql

import (
	"context"
	"testing"

	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionJobRepository_GetNextJob_PriorityOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	low := db.CreateTestJob(t, doc, models.JobTypeEmbeddingGeneration, 9)
	high := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 1)
	_ = low

	next, err := repo.GetNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, high.ID, next.ID)
	assert.Equal(t, models.JobTypeFullPipeline, next.JobType)
	// Document comes preloaded for the worker.
	assert.Equal(t, doc.ID, next.Document.ID)
}

func TestExtractionJobRepository_GetNextJob_ClaimsJob(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	first := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 1)
	second := db.CreateTestJob(t, doc, models.JobTypeEmbeddingGeneration, 5)

	// Each poll hands out a different job: claiming flips the row to
	// in_progress, so a second worker never sees the same one.
	got, err := repo.GetNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, models.ProcessingInProgress, got.Status)
	assert.NotNil(t, got.StartedAt)

	got, err = repo.GetNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = repo.GetNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExtractionJobRepository_GetNextJob_EmptyQueue(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)

	next, err := repo.GetNextJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestExtractionJobRepository_GetNextJob_SkipsExhaustedAttempts(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	job := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 1)
	job.Attempts = job.MaxAttempts
	require.NoError(t, repo.Update(ctx, job))

	next, err := repo.GetNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestExtractionJobRepository_UpdateStatus_Timestamps(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)
	job := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, models.ProcessingInProgress, ""))
	found, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingInProgress, found.Status)
	assert.NotNil(t, found.StartedAt)
	assert.Nil(t, found.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, models.ProcessingFailed, "extraction timed out"))
	found, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, found.Status)
	assert.Equal(t, "extraction timed out", found.ErrorMessage)
	assert.NotNil(t, found.CompletedAt)
}

func TestExtractionJobRepository_RetryJob(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)
	job := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)

	// Queued jobs are not retryable
	err := repo.RetryJob(ctx, job.ID)
	assert.Error(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, models.ProcessingFailed, "boom"))
	require.NoError(t, repo.RetryJob(ctx, job.ID))

	found, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingQueued, found.Status)
	assert.Empty(t, found.ErrorMessage)
	assert.Nil(t, found.StartedAt)
	assert.Nil(t, found.CompletedAt)
}

func TestExtractionJobRepository_Delete_RefusesActive(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)
	job := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)

	err := repo.Delete(ctx, job.ID)
	assert.Error(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, models.ProcessingCompleted, ""))
	require.NoError(t, repo.Delete(ctx, job.ID))
}

func TestExtractionJobRepository_ListByDocument(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)
	other := db.CreateTestDocument(t, tenant, user)

	db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)
	db.CreateTestJob(t, doc, models.JobTypeEmbeddingGeneration, 7)
	db.CreateTestJob(t, other, models.JobTypeFullPipeline, 5)

	jobs, err := repo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestExtractionJobRepository_GetFailedJobs(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewExtractionJobRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	failed := db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)
	require.NoError(t, repo.UpdateStatus(ctx, failed.ID, models.ProcessingFailed, "boom"))
	db.CreateTestJob(t, doc, models.JobTypeFullPipeline, 5)

	jobs, err := repo.GetFailedJobs(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, failed.ID, jobs[0].ID)
}
