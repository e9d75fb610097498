package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ExportValidationValid    = "valid"
	ExportValidationWarnings = "warnings"
	ExportValidationErrors   = "errors"
)

type ExportPackage struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Format             string         `gorm:"column:format;not null" json:"format"`
	ValidationStatus   string         `gorm:"column:validation_status;not null" json:"validation_status"` // valid|warnings|errors
	ValidationMessages datatypes.JSON `gorm:"type:jsonb;column:validation_messages" json:"validation_messages,omitempty"`
	FilePath           string         `gorm:"column:file_path;not null" json:"file_path"`
	FileSizeBytes      int64          `gorm:"column:file_size_bytes;not null" json:"file_size_bytes"`
	ExportedAt         time.Time      `gorm:"not null" json:"exported_at"`
}

func (ExportPackage) TableName() string { return "export_package" }
