package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenerationStatusSuccess = "success"
	GenerationStatusError   = "error"
	GenerationStatusTimeout = "timeout"
)

// Generation is the append-only audit record of one AI provider call.
// Rows are inserted exactly once and never updated.
type Generation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StageID        uuid.UUID `gorm:"type:uuid;not null;index" json:"stage_id"`
	ProviderID     uuid.UUID `gorm:"type:uuid;not null" json:"provider_id"`
	Model          string    `gorm:"column:model;not null" json:"model"`
	PromptTemplate string    `gorm:"column:prompt_template;not null" json:"prompt_template"`
	InputTokens    int       `gorm:"column:input_tokens;not null" json:"input_tokens"`
	OutputTokens   int       `gorm:"column:output_tokens;not null" json:"output_tokens"`
	TotalTokens    int       `gorm:"column:total_tokens;not null" json:"total_tokens"`
	EstimatedCost  float64   `gorm:"column:estimated_cost;not null" json:"estimated_cost"`
	DurationMs     int64     `gorm:"column:duration_ms;not null" json:"duration_ms"`
	Status         string    `gorm:"column:status;not null" json:"status"` // success|error|timeout
	ErrorMessage   string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

func (Generation) TableName() string { return "generation" }
