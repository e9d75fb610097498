package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutputFormatJSON = "json"
	OutputFormatMD   = "md"
	OutputFormatSQL  = "sql"
	OutputFormatYAML = "yaml"

	GeneratedByAI    = "ai"
	GeneratedByHuman = "human"
)

type StageOutput struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StageID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_output_stage_version" json:"stage_id"`
	Version      int        `gorm:"column:version;not null;uniqueIndex:idx_output_stage_version" json:"version"`
	Format       string     `gorm:"column:format;not null" json:"format"` // json|md|sql|yaml
	Content      string     `gorm:"column:content;not null" json:"content"`
	GeneratedBy  string     `gorm:"column:generated_by;not null" json:"generated_by"` // ai|human
	GenerationID *uuid.UUID `gorm:"type:uuid;column:generation_id" json:"generation_id,omitempty"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (StageOutput) TableName() string { return "stage_output" }
