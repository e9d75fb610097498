package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ContractStatusBacklog    = "backlog"
	ContractStatusReady      = "ready"
	ContractStatusInProgress = "in_progress"
	ContractStatusInReview   = "in_review"
	ContractStatusDone       = "done"

	ContractTypeSetup       = "setup"
	ContractTypeModel       = "model"
	ContractTypeAPI         = "api"
	ContractTypeComponent   = "component"
	ContractTypePage        = "page"
	ContractTypeIntegration = "integration"
	ContractTypeConfig      = "config"
)

// Contract is one unit of implementation work derived from completed stage
// data. Created in bulk by the builder; mutated only through lifecycle
// transitions afterwards. Dependencies reference contract IDs within the
// same project and form a DAG.
type Contract struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	Type               string         `gorm:"column:type;not null" json:"type"` // setup|model|api|component|page|integration|config
	Priority           int            `gorm:"column:priority;not null;index" json:"priority"`
	Status             string         `gorm:"column:status;not null;default:backlog;index" json:"status"` // backlog|ready|in_progress|in_review|done
	Dependencies       datatypes.JSON `gorm:"type:jsonb;column:dependencies" json:"dependencies"`
	Description        string         `gorm:"column:description" json:"description,omitempty"`
	UserStory          string         `gorm:"column:user_story" json:"user_story,omitempty"`
	Stack              datatypes.JSON `gorm:"type:jsonb;column:stack" json:"stack,omitempty"`
	TargetFiles        datatypes.JSON `gorm:"type:jsonb;column:target_files" json:"target_files,omitempty"`
	Constraints        datatypes.JSON `gorm:"type:jsonb;column:constraints" json:"constraints,omitempty"`
	DoNotTouch         datatypes.JSON `gorm:"type:jsonb;column:do_not_touch" json:"do_not_touch,omitempty"`
	Patterns           datatypes.JSON `gorm:"type:jsonb;column:patterns" json:"patterns,omitempty"`
	DataModels         datatypes.JSON `gorm:"type:jsonb;column:data_models" json:"data_models,omitempty"`
	APIEndpoints       datatypes.JSON `gorm:"type:jsonb;column:api_endpoints" json:"api_endpoints,omitempty"`
	DesignTokens       datatypes.JSON `gorm:"type:jsonb;column:design_tokens" json:"design_tokens,omitempty"`
	ComponentSpec      datatypes.JSON `gorm:"type:jsonb;column:component_spec" json:"component_spec,omitempty"`
	AcceptanceCriteria datatypes.JSON `gorm:"type:jsonb;column:acceptance_criteria" json:"acceptance_criteria,omitempty"`
	TestCases          datatypes.JSON `gorm:"type:jsonb;column:test_cases" json:"test_cases,omitempty"`
	GeneratedPrompt    string         `gorm:"column:generated_prompt" json:"generated_prompt,omitempty"`
	ReviewSummary      string         `gorm:"column:review_summary" json:"review_summary,omitempty"`
	ReviewFeedback     string         `gorm:"column:review_feedback" json:"review_feedback,omitempty"`
	QualityReport      datatypes.JSON `gorm:"type:jsonb;column:quality_report" json:"quality_report,omitempty"`
	BatchRunID         *uuid.UUID     `gorm:"type:uuid;column:batch_run_id" json:"batch_run_id,omitempty"`
	StartedAt          *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	ReviewedAt         *time.Time     `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contract" }

// DependencyIDs decodes the JSON dependency list. Malformed or empty
// payloads decode to nil.
func (c *Contract) DependencyIDs() []string {
	if len(c.Dependencies) == 0 {
		return nil
	}
	var deps []string
	if err := jsonUnmarshal(c.Dependencies, &deps); err != nil {
		return nil
	}
	return deps
}
