package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusStopped   = "stopped"
	BatchStatusFailed    = "failed"
)

// BatchRun is one bounded autonomous execution session. Config is a
// snapshot of the project's automation config at start time. Terminal
// states (completed, stopped, failed) are final.
type BatchRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Status         string         `gorm:"column:status;not null;index" json:"status"` // running|completed|stopped|failed
	Config         datatypes.JSON `gorm:"type:jsonb;column:config" json:"config,omitempty"`
	TasksAttempted int            `gorm:"column:tasks_attempted;not null;default:0" json:"tasks_attempted"`
	TasksCompleted int            `gorm:"column:tasks_completed;not null;default:0" json:"tasks_completed"`
	TasksFailed    int            `gorm:"column:tasks_failed;not null;default:0" json:"tasks_failed"`
	TasksForReview int            `gorm:"column:tasks_for_review;not null;default:0" json:"tasks_for_review"`
	Report         string         `gorm:"column:report" json:"report,omitempty"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (BatchRun) TableName() string { return "batch_run" }
