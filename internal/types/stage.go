package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StageStatusLocked     = "locked"
	StageStatusActive     = "active"
	StageStatusGenerating = "generating"
	StageStatusReview     = "review"
	StageStatusComplete   = "complete"
)

type Stage struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_stage_project_number" json:"project_id"`
	StageNumber int            `gorm:"column:stage_number;not null;uniqueIndex:idx_stage_project_number" json:"stage_number"`
	StageName   string         `gorm:"column:stage_name;not null" json:"stage_name"`
	StageLabel  string         `gorm:"column:stage_label;not null" json:"stage_label"`
	Status      string         `gorm:"column:status;not null;default:locked;index" json:"status"` // locked|active|generating|review|complete
	Data        datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	UserInput   string         `gorm:"column:user_input" json:"user_input,omitempty"`
	ValidatedAt *time.Time     `gorm:"column:validated_at" json:"validated_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Stage) TableName() string { return "stage" }
