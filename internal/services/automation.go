package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

// BulkApproveResult reports how many in-review contracts were approved out
// of those considered.
type BulkApproveResult struct {
	Approved int `json:"approved"`
	Total    int `json:"total"`
}

type AutomationService interface {
	GetConfig(ctx context.Context, projectID uuid.UUID) (*types.AutomationConfig, error)
	UpdateConfig(ctx context.Context, projectID uuid.UUID, cfg types.AutomationConfig) (*types.AutomationConfig, error)

	// StartBatch opens a running batch with a snapshot of the project's
	// automation config at this moment.
	StartBatch(ctx context.Context, projectID uuid.UUID) (*types.BatchRun, error)
	// StopBatch only transitions a running batch; anything else reports
	// not-found without mutating.
	StopBatch(ctx context.Context, projectID, batchID uuid.UUID) (*types.BatchRun, error)
	GetBatch(ctx context.Context, projectID, batchID uuid.UUID) (*types.BatchRun, error)
	LatestBatch(ctx context.Context, projectID uuid.UUID) (*types.BatchRun, error)

	// RecordQualityGates attaches a report to a contract regardless of its
	// lifecycle state.
	RecordQualityGates(ctx context.Context, projectID, contractID uuid.UUID, report types.QualityReport) (*types.Contract, error)
	// BulkApprove approves exactly the in-review contracts whose stored
	// report passed, cascading after each.
	BulkApprove(ctx context.Context, projectID uuid.UUID) (*BulkApproveResult, error)

	// WorkflowPrompt renders the ready-to-paste autonomous-run prompt from
	// the project's automation config.
	WorkflowPrompt(ctx context.Context, projectID uuid.UUID) (string, error)
}

type automationService struct {
	db           *gorm.DB
	log          *logger.Logger
	projectRepo  repos.ProjectRepo
	contractRepo repos.ContractRepo
	batchRepo    repos.BatchRunRepo
	contracts    ContractService
}

func NewAutomationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	contractRepo repos.ContractRepo,
	batchRepo repos.BatchRunRepo,
	contracts ContractService,
) AutomationService {
	return &automationService{
		db:           db,
		log:          baseLog.With("service", "AutomationService"),
		projectRepo:  projectRepo,
		contractRepo: contractRepo,
		batchRepo:    batchRepo,
		contracts:    contracts,
	}
}

func (s *automationService) GetConfig(ctx context.Context, projectID uuid.UUID) (*types.AutomationConfig, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}
	cfg := types.DefaultAutomationConfig()
	if len(project.AutomationConfig) > 0 {
		if err := json.Unmarshal(project.AutomationConfig, &cfg); err != nil {
			s.log.Warn("Stored automation config malformed, using defaults", "project_id", projectID, "error", err)
			cfg = types.DefaultAutomationConfig()
		}
	}
	return &cfg, nil
}

func (s *automationService) UpdateConfig(ctx context.Context, projectID uuid.UUID, cfg types.AutomationConfig) (*types.AutomationConfig, error) {
	if err := validateAutomationConfig(cfg); err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateFields(ctx, nil, projectID,
		map[string]interface{}{"automation_config": raw}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateAutomationConfig(cfg types.AutomationConfig) error {
	switch cfg.TrustLevel {
	case "manual", "semi_auto", "full_auto":
	default:
		return apierr.BadRequest("invalid trust level %q", cfg.TrustLevel)
	}
	if cfg.BatchLimits.MaxTasks < 1 || cfg.BatchLimits.MaxTasks > 100 {
		return apierr.BadRequest("maxTasks must be between 1 and 100")
	}
	if cfg.BatchLimits.MaxConsecutiveFailures < 1 || cfg.BatchLimits.MaxConsecutiveFailures > 20 {
		return apierr.BadRequest("maxConsecutiveFailures must be between 1 and 20")
	}
	return nil
}

func (s *automationService) StartBatch(ctx context.Context, projectID uuid.UUID) (*types.BatchRun, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}

	run := &types.BatchRun{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    types.BatchStatusRunning,
		Config:    project.AutomationConfig,
		StartedAt: nowPtr(),
	}
	if _, err := s.batchRepo.Create(ctx, nil, run); err != nil {
		return nil, err
	}
	s.log.Info("Batch run started", "project_id", projectID, "batch_id", run.ID)
	return run, nil
}

func (s *automationService) StopBatch(ctx context.Context, projectID, batchID uuid.UUID) (*types.BatchRun, error) {
	run, err := s.batchRepo.GetForProject(ctx, nil, batchID, projectID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.NotFound("running batch not found")
	}

	affected, err := s.batchRepo.ConditionalUpdate(ctx, nil, batchID,
		[]string{types.BatchStatusRunning},
		map[string]interface{}{
			"status":       types.BatchStatusStopped,
			"completed_at": nowPtr(),
		})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.NotFound("running batch not found")
	}
	return s.batchRepo.GetForProject(ctx, nil, batchID, projectID)
}

func (s *automationService) GetBatch(ctx context.Context, projectID, batchID uuid.UUID) (*types.BatchRun, error) {
	run, err := s.batchRepo.GetForProject(ctx, nil, batchID, projectID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.NotFound("batch run not found")
	}
	return run, nil
}

func (s *automationService) LatestBatch(ctx context.Context, projectID uuid.UUID) (*types.BatchRun, error) {
	return s.batchRepo.GetLatestByProject(ctx, nil, projectID)
}

func (s *automationService) RecordQualityGates(ctx context.Context, projectID, contractID uuid.UUID, report types.QualityReport) (*types.Contract, error) {
	contract, err := s.contractRepo.GetForProject(ctx, nil, contractID, projectID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, apierr.NotFound("contract not found")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	if err := s.contractRepo.UpdateFields(ctx, nil, contractID,
		map[string]interface{}{"quality_report": raw}); err != nil {
		return nil, err
	}
	return s.contractRepo.GetForProject(ctx, nil, contractID, projectID)
}

func (s *automationService) BulkApprove(ctx context.Context, projectID uuid.UUID) (*BulkApproveResult, error) {
	inReview, err := s.contractRepo.ListByProject(ctx, nil, projectID,
		[]string{types.ContractStatusInReview})
	if err != nil {
		return nil, err
	}

	approved := 0
	for _, contract := range inReview {
		if len(contract.QualityReport) == 0 {
			continue
		}
		var report types.QualityReport
		if err := json.Unmarshal(contract.QualityReport, &report); err != nil || !report.Passed {
			continue
		}
		if _, err := s.contracts.Approve(ctx, projectID, contract.ID, contractActorBatch); err != nil {
			// A concurrent transition is not fatal to the sweep.
			if apierr.Is(err, apierr.CodeBadStatus) {
				continue
			}
			return nil, err
		}
		approved++
	}
	return &BulkApproveResult{Approved: approved, Total: len(inReview)}, nil
}

func (s *automationService) WorkflowPrompt(ctx context.Context, projectID uuid.UUID) (string, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return "", err
	}
	if project == nil {
		return "", apierr.NotFound("project not found")
	}
	cfg, err := s.GetConfig(ctx, projectID)
	if err != nil {
		return "", err
	}

	var gates []string
	if cfg.QualityGates.Compiles {
		gates = append(gates, "- Code compiles")
	}
	if cfg.QualityGates.TestsPass {
		gates = append(gates, "- Tests pass")
	}
	if cfg.QualityGates.LintClean {
		gates = append(gates, "- Lint clean")
	}
	if cfg.QualityGates.NoNewWarnings {
		gates = append(gates, "- No new warnings introduced")
	}
	if len(gates) == 0 {
		gates = append(gates, "- (No quality gates configured)")
	}

	var boundaries []string
	if cfg.Boundaries.ProtectEnvFiles {
		boundaries = append(boundaries, "- Do NOT modify .env files")
	}
	if cfg.Boundaries.ProtectConfigFiles {
		boundaries = append(boundaries, "- Do NOT modify root config files")
	}
	for _, p := range cfg.Boundaries.ProtectedPaths {
		boundaries = append(boundaries, fmt.Sprintf("- Do NOT modify files in: %s", p))
	}
	if len(boundaries) == 0 {
		boundaries = append(boundaries, "- (No boundary rules configured)")
	}

	prompt := fmt.Sprintf(`# Autonomous Task Execution: %s

You are executing contracts for the %q project.
Work through contracts autonomously using the project API.

## Workflow Loop

Repeat until all ready contracts are done or limits are reached:

1. Fetch the highest-priority ready contract
2. Start it to claim it
3. Read the contract's generated prompt and implement it
4. Run quality gates before submitting
5. Submit with a summary of changes
6. Move to the next contract (do NOT wait for review)

## Quality Gates

Before submitting each contract, verify:
%s

## Boundary Rules

%s

## Batch Limits

- Maximum tasks per run: %d
- Stop after %d consecutive failures
- If a task fails, log the error in the summary and move on

## Important

- Work through contracts in priority order
- Do not skip contracts or reorder them
- If you encounter an error you cannot resolve, submit with a failure summary and continue
- Keep summaries concise but include key changes and files modified
`,
		project.Name,
		project.Name,
		strings.Join(gates, "\n"),
		strings.Join(boundaries, "\n"),
		cfg.BatchLimits.MaxTasks,
		cfg.BatchLimits.MaxConsecutiveFailures,
	)
	return prompt, nil
}
