package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Custom enum types
type DocStatus string
type UserRole string
type ProcessingStatus string
type AuditAction string
type DocumentType string

const (
	// Document Status: uploaded → processing → {processed | error}
	DocStatusUploaded   DocStatus = "uploaded"
	DocStatusProcessing DocStatus = "processing"
	DocStatusProcessed  DocStatus = "processed"
	DocStatusError      DocStatus = "error"

	// User Roles
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleUser    UserRole = "user"
	UserRoleViewer  UserRole = "viewer"

	// Extraction Job Status
	ProcessingQueued     ProcessingStatus = "queued"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"

	// Audit Actions
	AuditCreate    AuditAction = "create"
	AuditRead      AuditAction = "read"
	AuditUpdate    AuditAction = "update"
	AuditDelete    AuditAction = "delete"
	AuditDownload  AuditAction = "download"
	AuditReprocess AuditAction = "reprocess"

	// Financial document types recognized by the classifier
	DocTypePortfolioStatement   DocumentType = "portfolio_statement"
	DocTypeTransactionStatement DocumentType = "transaction_statement"
	DocTypePerformanceReport    DocumentType = "performance_report"
	DocTypeAccountStatement     DocumentType = "account_statement"
	DocTypeTaxDocument          DocumentType = "tax_document"
	DocTypeUnknown              DocumentType = "unknown"
)

// Extraction job types
const (
	JobTypeFullPipeline        = "full_pipeline"
	JobTypeTextExtraction      = "text_extraction"
	JobTypeClassification      = "classification"
	JobTypeFieldExtraction     = "field_extraction"
	JobTypeLLMExtraction       = "llm_extraction"
	JobTypeEmbeddingGeneration = "embedding_generation"
	JobTypeReportGeneration    = "report_generation"
)

// JSONB type for PostgreSQL jsonb columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("unsupported type for JSONB scan")
	}
}

type Tenant struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Subdomain    string    `json:"subdomain" gorm:"type:varchar(100);unique;not null"`
	StorageQuota int64     `json:"storage_quota" gorm:"not null;default:5368709120"` // 5GB default
	StorageUsed  int64     `json:"storage_used" gorm:"not null;default:0"`
	APIQuota     int       `json:"api_quota" gorm:"not null;default:1000"`
	APIUsed      int       `json:"api_used" gorm:"not null;default:0"`
	Settings     JSONB     `json:"settings" gorm:"type:jsonb;default:'{}'"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`

	// Relationships
	Users     []User           `json:"users,omitempty" gorm:"foreignKey:TenantID"`
	Documents []Document       `json:"documents,omitempty" gorm:"foreignKey:TenantID"`
	Jobs      []ExtractionJob  `json:"jobs,omitempty" gorm:"foreignKey:TenantID"`
	Schedules []ReportSchedule `json:"schedules,omitempty" gorm:"foreignKey:TenantID"`
}

type User struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;index"`
	AuthID      string     `json:"auth_id" gorm:"type:varchar(255);index"` // Supabase auth user id
	Email       string     `json:"email" gorm:"type:varchar(320);not null;index"`
	FirstName   string     `json:"first_name" gorm:"type:varchar(100)"`
	LastName    string     `json:"last_name" gorm:"type:varchar(100)"`
	Role        UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive    bool       `json:"is_active" gorm:"not null;default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`

	// Relationships
	Tenant    Tenant     `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Documents []Document `json:"documents,omitempty" gorm:"foreignKey:CreatedBy"`
}

// Document is the central model: one uploaded financial document plus
// everything the extraction pipeline derived from it. Securities live inside
// ExtractedData, not in their own table, because they have no identity outside
// the document that produced them.
type Document struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`

	// Basic File Info
	FileName     string `json:"file_name" gorm:"type:varchar(255);not null"`
	OriginalName string `json:"original_name" gorm:"type:varchar(255);not null"`
	ContentType  string `json:"content_type" gorm:"type:varchar(100);not null"`
	FileSize     int64  `json:"file_size" gorm:"not null"`
	StoragePath  string `json:"storage_path" gorm:"type:varchar(500);not null"`
	ContentHash  string `json:"content_hash" gorm:"type:varchar(64);not null;index"`

	// Pipeline output
	ExtractedText string          `json:"extracted_text" gorm:"type:text"`
	DocumentType  DocumentType    `json:"document_type" gorm:"type:varchar(50);index;default:'unknown'"`
	Status        DocStatus       `json:"status" gorm:"type:varchar(20);not null;default:'uploaded'"`
	ErrorMessage  string          `json:"error_message" gorm:"type:text"`
	ExtractedData JSONB           `json:"extracted_data" gorm:"type:jsonb"`
	Embedding     pgvector.Vector `json:"-" gorm:"type:vector(1536)"`

	// Derived portfolio fields, denormalized for filtering
	TotalValue    *float64   `json:"total_value" gorm:"type:decimal(18,2)"`
	Currency      string     `json:"currency" gorm:"type:varchar(3)"`
	ValuationDate *time.Time `json:"valuation_date" gorm:"index"`
	SecurityCount int        `json:"security_count" gorm:"not null;default:0"`

	// System Fields
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`

	// Relationships
	Tenant  Tenant          `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Creator User            `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Jobs    []ExtractionJob `json:"jobs,omitempty" gorm:"foreignKey:DocumentID"`
}

// ExtractionJob is a queued unit of pipeline work for one document.
type ExtractionJob struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID        `json:"tenant_id" gorm:"type:uuid;not null;index"`
	DocumentID       uuid.UUID        `json:"document_id" gorm:"type:uuid;not null;index"`
	JobType          string           `json:"job_type" gorm:"type:varchar(50);not null"`
	Status           ProcessingStatus `json:"status" gorm:"type:varchar(20);not null;default:'queued';index"`
	Priority         int              `json:"priority" gorm:"not null;default:5"`
	Attempts         int              `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts      int              `json:"max_attempts" gorm:"not null;default:3"`
	ErrorMessage     string           `json:"error_message" gorm:"type:text"`
	Result           JSONB            `json:"result" gorm:"type:jsonb"`
	ProcessingTimeMs int              `json:"processing_time_ms"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null"`
	StartedAt        *time.Time       `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at"`

	// Relationships
	Tenant   Tenant   `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Document Document `json:"document,omitempty" gorm:"foreignKey:DocumentID"`
}

// ReportSchedule drives cron-based report generation over processed documents.
type ReportSchedule struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name       string     `json:"name" gorm:"type:varchar(255);not null"`
	CronExpr   string     `json:"cron_expr" gorm:"type:varchar(100);not null"`
	ReportType string     `json:"report_type" gorm:"type:varchar(50);not null;default:'portfolio_summary'"`
	Recipients JSONB      `json:"recipients" gorm:"type:jsonb;default:'{}'"`
	IsActive   bool       `json:"is_active" gorm:"not null;default:true"`
	LastRunAt  *time.Time `json:"last_run_at"`
	NextRunAt  *time.Time `json:"next_run_at"`
	CreatedBy  uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"not null"`

	// Relationships
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

type AuditLog struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID   `json:"tenant_id" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	ResourceID   uuid.UUID   `json:"resource_id" gorm:"type:uuid;not null;index"`
	Action       AuditAction `json:"action" gorm:"type:varchar(20);not null"`
	ResourceType string      `json:"resource_type" gorm:"type:varchar(50);not null"`
	IPAddress    string      `json:"ip_address" gorm:"type:varchar(45)"`
	Details      JSONB       `json:"details" gorm:"type:jsonb"`
	CreatedAt    time.Time   `json:"created_at" gorm:"not null"`

	// Relationships
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// IDs are assigned client-side in BeforeCreate hooks rather than by a
// DB-side uuid_generate_v4() default, so the same models migrate and run on
// the sqlite test harness. Created/updated timestamps are managed by gorm.

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (j *ExtractionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func (s *ReportSchedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&Document{},
		&ExtractionJob{},
		&ReportSchedule{},
		&AuditLog{},
	}
}
