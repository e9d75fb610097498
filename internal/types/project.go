package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
	ProjectStatusDeleted  = "deleted"
)

type Project struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	Slug             string         `gorm:"column:slug;not null" json:"slug"`
	Description      string         `gorm:"column:description" json:"description"`
	CurrentStage     int            `gorm:"column:current_stage;not null;default:1" json:"current_stage"`
	Status           string         `gorm:"column:status;not null;default:active;index" json:"status"` // active|archived|deleted
	AIProviderID     *uuid.UUID     `gorm:"type:uuid;column:ai_provider_id" json:"ai_provider_id,omitempty"`
	AutomationConfig datatypes.JSON `gorm:"type:jsonb;column:automation_config" json:"automation_config,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }
