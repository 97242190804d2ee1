package postgresql

import (
	"context"
	"testing"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)

	document := &models.Document{
		TenantID:     tenant.ID,
		FileName:     "statement.pdf",
		OriginalName: "Q4 Portfolio Statement.pdf",
		ContentType:  "application/pdf",
		FileSize:     2048,
		StoragePath:  "/test/documents/statement.pdf",
		ContentHash:  "abcdef123456789",
		DocumentType: models.DocTypeUnknown,
		Status:       models.DocStatusUploaded,
		CreatedBy:    user.ID,
	}

	err := repo.Create(ctx, document)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, document.ID)
	assert.NotZero(t, document.CreatedAt)
}

func TestDocumentRepository_GetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	original := db.CreateTestDocument(t, tenant, user)

	found, err := repo.GetByID(ctx, tenant.ID, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, found.ID)
	assert.Equal(t, original.FileName, found.FileName)
	assert.Equal(t, original.ContentHash, found.ContentHash)
}

func TestDocumentRepository_GetByID_WrongTenant(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	other := db.CreateTestTenant(t)

	_, err := repo.GetByID(ctx, other.ID, doc.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDocumentRepository_GetByContentHash(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	found, err := repo.GetByContentHash(ctx, tenant.ID, doc.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = repo.GetByContentHash(ctx, tenant.ID, "no-such-hash")
	assert.Error(t, err)
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	err := repo.UpdateStatus(ctx, tenant.ID, doc.ID, models.DocStatusProcessing, "")
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, found.Status)

	err = repo.UpdateStatus(ctx, tenant.ID, doc.ID, models.DocStatusError, "ocr failed")
	require.NoError(t, err)

	found, err = repo.GetByID(ctx, tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusError, found.Status)
	assert.Equal(t, "ocr failed", found.ErrorMessage)
}

func TestDocumentRepository_List_Filters(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)

	processed := db.CreateTestDocument(t, tenant, user)
	require.NoError(t, repo.UpdateStatus(ctx, tenant.ID, processed.ID, models.DocStatusProcessed, ""))
	db.CreateTestDocument(t, tenant, user)
	db.CreateTestDocument(t, tenant, user)

	// Unfiltered
	docs, total, err := repo.List(ctx, tenant.ID, repositories.DocumentFilters{}, repositories.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, docs, 3)

	// By status
	status := models.DocStatusProcessed
	docs, total, err = repo.List(ctx, tenant.ID, repositories.DocumentFilters{Status: &status}, repositories.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, processed.ID, docs[0].ID)

	// Pagination
	docs, total, err = repo.List(ctx, tenant.ID, repositories.DocumentFilters{}, repositories.ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, docs, 2)
}

func TestDocumentRepository_List_TenantIsolation(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenantA := db.CreateTestTenant(t)
	userA := db.CreateTestUser(t, tenantA)
	db.CreateTestDocument(t, tenantA, userA)

	tenantB := db.CreateTestTenant(t)
	userB := db.CreateTestUser(t, tenantB)
	db.CreateTestDocument(t, tenantB, userB)
	db.CreateTestDocument(t, tenantB, userB)

	_, total, err := repo.List(ctx, tenantA.ID, repositories.DocumentFilters{}, repositories.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.List(ctx, tenantB.ID, repositories.DocumentFilters{}, repositories.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestDocumentRepository_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	doc := db.CreateTestDocument(t, tenant, user)

	require.NoError(t, repo.Delete(ctx, tenant.ID, doc.ID))

	_, err := repo.GetByID(ctx, tenant.ID, doc.ID)
	assert.Error(t, err)

	err = repo.Delete(ctx, tenant.ID, doc.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDocumentRepository_CountByStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)

	doc := db.CreateTestDocument(t, tenant, user)
	require.NoError(t, repo.UpdateStatus(ctx, tenant.ID, doc.ID, models.DocStatusProcessed, ""))
	db.CreateTestDocument(t, tenant, user)
	db.CreateTestDocument(t, tenant, user)

	counts, err := repo.CountByStatus(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.DocStatusProcessed])
	assert.Equal(t, int64(2), counts[models.DocStatusUploaded])
}

func TestDocumentRepository_SemanticSearch_FallbackOrdering(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)

	doc := db.CreateTestDocument(t, tenant, user)
	require.NoError(t, repo.UpdateStatus(ctx, tenant.ID, doc.ID, models.DocStatusProcessed, ""))
	db.CreateTestDocument(t, tenant, user) // stays uploaded, excluded

	// On sqlite this exercises the non-vector path: processed docs only.
	docs, err := repo.SemanticSearch(ctx, tenant.ID, make([]float32, 1536), 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func TestDocumentRepository_SearchText(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentRepository(db.DB)
	ctx := context.Background()

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)

	match := db.CreateTestDocument(t, tenant, user)
	match.ExtractedText = "Total Portfolio Value: 2,500.00 USD"
	match.Status = models.DocStatusProcessed
	require.NoError(t, repo.Update(ctx, match))

	other := db.CreateTestDocument(t, tenant, user)
	other.ExtractedText = "Quarterly board meeting minutes"
	other.Status = models.DocStatusProcessed
	require.NoError(t, repo.Update(ctx, other))

	// Matching text but never processed, so excluded from retrieval.
	unprocessed := db.CreateTestDocument(t, tenant, user)
	unprocessed.ExtractedText = "portfolio"
	require.NoError(t, repo.Update(ctx, unprocessed))

	docs, err := repo.SearchText(ctx, tenant.ID, "what is the PORTFOLIO worth?", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, match.ID, docs[0].ID)

	// Words shorter than four characters carry no signal on their own.
	docs, err = repo.SearchText(ctx, tenant.ID, "is it up?", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
