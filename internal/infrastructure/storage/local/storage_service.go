package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/google/uuid"
)

type StorageService struct {
	basePath string
}

func NewStorageService(basePath string) *StorageService {
	return &StorageService{
		basePath: basePath,
	}
}

func (s *StorageService) Store(ctx context.Context, params services.StorageParams) (string, error) {
	// Create tenant directory if it doesn't exist
	tenantDir := filepath.Join(s.basePath, params.TenantID.String())
	if err := os.MkdirAll(tenantDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tenant directory: %w", err)
	}

	// Generate unique filename
	fileExt := filepath.Ext(params.Filename)
	fileName := fmt.Sprintf("%s%s", uuid.New().String(), fileExt)
	filePath := filepath.Join(tenantDir, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, params.FileReader); err != nil {
		return "", fmt.Errorf("failed to write file content: %w", err)
	}

	// Return relative path from base
	return filepath.Join(params.TenantID.String(), fileName), nil
}

func (s *StorageService) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, path)

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

func (s *StorageService) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.basePath, path)

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func (s *StorageService) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	// Local storage cannot sign URLs; the API serves the file itself.
	return fmt.Sprintf("/api/v1/documents/download?path=%s", path), nil
}

func (s *StorageService) GetPublicURL(bucketName, filePath string) string {
	return fmt.Sprintf("/api/v1/files/%s", filePath)
}

// LocalPath resolves a stored path to an absolute filesystem path so the
// extraction pipeline can hand it to parsers that need a real file.
func (s *StorageService) LocalPath(path string) string {
	return filepath.Join(s.basePath, path)
}
