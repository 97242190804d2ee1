package main

import (
	"fmt"
	"log"
	"os"

	"github.com/findoc/findoc/internal/app/config"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	command := os.Args[1]

	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		runMigrations(db, logger)
	case "reset":
		resetDatabase(db, logger)
	case "seed":
		seedDatabase(db, logger)
	case "status":
		migrationStatus(db, logger)
	default:
		logger.Error("Unknown command", "command", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  up     - Run all pending migrations")
	fmt.Println("  reset  - Drop all tables and recreate them")
	fmt.Println("  seed   - Seed the database with initial data")
	fmt.Println("  status - Show migration status")
}

func runMigrations(db *database.DB, logger *logger.Logger) {
	logger.Info("Running database migrations...")

	// pgvector must be installed before the documents table migrates its
	// embedding column
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
	}
	for _, ext := range extensions {
		if err := db.Exec(ext).Error; err != nil {
			logger.Warn("Failed to create extension", "sql", ext, "error", err)
		}
	}

	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		return
	}

	if err := createIndexes(db); err != nil {
		logger.Error("Failed to create indexes", "error", err)
		return
	}

	logger.Info("Database migrations completed successfully")
}

func resetDatabase(db *database.DB, logger *logger.Logger) {
	logger.Info("Resetting database...")

	// Drop in reverse dependency order
	tables := []interface{}{
		&models.AuditLog{},
		&models.ReportSchedule{},
		&models.ExtractionJob{},
		&models.Document{},
		&models.User{},
		&models.Tenant{},
	}

	for _, table := range tables {
		if err := db.Migrator().DropTable(table); err != nil {
			logger.Error("Failed to drop table", "error", err)
		}
	}

	runMigrations(db, logger)

	logger.Info("Database reset completed")
}

func seedDatabase(db *database.DB, logger *logger.Logger) {
	logger.Info("Seeding database with initial data...")

	defaultTenant := &models.Tenant{
		Name:         "Default Tenant",
		Subdomain:    "default",
		StorageQuota: 5 * 1024 * 1024 * 1024, // 5GB
		APIQuota:     1000,
		IsActive:     true,
	}

	if err := db.FirstOrCreate(defaultTenant, models.Tenant{Subdomain: "default"}).Error; err != nil {
		logger.Error("Failed to create default tenant", "error", err)
		return
	}

	adminUser := &models.User{
		TenantID:  defaultTenant.ID,
		Email:     "admin@default.local",
		FirstName: "Admin",
		LastName:  "User",
		Role:      models.UserRoleAdmin,
		IsActive:  true,
	}

	if err := db.FirstOrCreate(adminUser, models.User{
		TenantID: defaultTenant.ID,
		Email:    adminUser.Email,
	}).Error; err != nil {
		logger.Error("Failed to create admin user", "error", err)
		return
	}

	logger.Info("Database seeding completed successfully")
}

func migrationStatus(db *database.DB, logger *logger.Logger) {
	logger.Info("Checking migration status...")

	tables := map[string]interface{}{
		"tenants":          &models.Tenant{},
		"users":            &models.User{},
		"documents":        &models.Document{},
		"extraction_jobs":  &models.ExtractionJob{},
		"report_schedules": &models.ReportSchedule{},
		"audit_logs":       &models.AuditLog{},
	}

	for tableName, model := range tables {
		exists := db.Migrator().HasTable(model)
		status := "✓ exists"
		if !exists {
			status = "✗ missing"
		}
		logger.Info("Table status", "table", tableName, "status", status)
	}
}

func createIndexes(db *database.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_documents_tenant_status ON documents(tenant_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(tenant_id, content_hash)",
		"CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_extraction_jobs_queue ON extraction_jobs(status, priority, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_report_schedules_active ON report_schedules(is_active, next_run_at)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_documents_text_gin ON documents USING gin(to_tsvector('english', coalesce(extracted_text, '')))",
		"CREATE INDEX IF NOT EXISTS idx_documents_embedding ON documents USING hnsw (embedding vector_cosine_ops)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
