package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventStarted          = "started"
	EventSubmitted        = "submitted"
	EventApproved         = "approved"
	EventChangesRequested = "changes_requested"
	EventRejected         = "rejected"
	EventComment          = "comment"
)

// ContractEvent is the append-only audit trail for a contract's lifecycle.
// Rows are never updated or deleted.
type ContractEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`
	Type       string    `gorm:"column:type;not null" json:"type"` // started|submitted|approved|changes_requested|rejected|comment
	Actor      string    `gorm:"column:actor;not null" json:"actor"`
	Message    string    `gorm:"column:message" json:"message,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

func (ContractEvent) TableName() string { return "contract_event" }
