package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

// contractActorHuman attributes lifecycle events to a manual action.
const (
	contractActorHuman = "human"
	contractActorBatch = "automation"
)

type ContractService interface {
	// RegenerateContracts rebuilds the project's full contract set from the
	// eight completed generative stages. Existing contracts are replaced.
	RegenerateContracts(ctx context.Context, projectID uuid.UUID) ([]*types.Contract, error)
	ListContracts(ctx context.Context, projectID uuid.UUID, statusFilter string) ([]*types.Contract, error)
	GetContract(ctx context.Context, projectID, contractID uuid.UUID) (*types.Contract, error)
	// NextReady returns the lowest-priority ready contract, nil when none.
	NextReady(ctx context.Context, projectID uuid.UUID) (*types.Contract, error)
	ListEvents(ctx context.Context, projectID, contractID uuid.UUID) ([]*types.ContractEvent, error)

	Start(ctx context.Context, projectID, contractID uuid.UUID) (*types.Contract, error)
	Submit(ctx context.Context, projectID, contractID uuid.UUID, summary string) (*types.Contract, error)
	RequestChanges(ctx context.Context, projectID, contractID uuid.UUID, feedback string) (*types.Contract, error)
	Approve(ctx context.Context, projectID, contractID uuid.UUID, actor string) (*types.Contract, error)
}

type contractService struct {
	db           *gorm.DB
	log          *logger.Logger
	contractRepo repos.ContractRepo
	eventRepo    repos.ContractEventRepo
	stageRepo    repos.StageRepo
	projectRepo  repos.ProjectRepo
}

func NewContractService(
	db *gorm.DB,
	baseLog *logger.Logger,
	contractRepo repos.ContractRepo,
	eventRepo repos.ContractEventRepo,
	stageRepo repos.StageRepo,
	projectRepo repos.ProjectRepo,
) ContractService {
	return &contractService{
		db:           db,
		log:          baseLog.With("service", "ContractService"),
		contractRepo: contractRepo,
		eventRepo:    eventRepo,
		stageRepo:    stageRepo,
		projectRepo:  projectRepo,
	}
}

func (s *contractService) RegenerateContracts(ctx context.Context, projectID uuid.UUID) ([]*types.Contract, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}

	stages, err := s.stageRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*types.Stage, len(stages))
	for _, st := range stages {
		byName[st.StageName] = st
	}

	payloads := StagePayloads{}
	for _, name := range types.GenerativeStageNames {
		st := byName[name]
		if st == nil || st.Status != types.StageStatusComplete || len(st.Data) == 0 {
			return nil, apierr.BadStatus("stage %q must be complete before generating contracts", name)
		}
		var data map[string]any
		if err := json.Unmarshal(st.Data, &data); err != nil {
			return nil, apierr.BadStatus("stage %q holds malformed data", name)
		}
		switch name {
		case types.StageNameProduct:
			payloads.Product = data
		case types.StageNameDataModel:
			payloads.DataModel = data
		case types.StageNameDatabase:
			payloads.Database = data
		case types.StageNameAPI:
			payloads.API = data
		case types.StageNameStack:
			payloads.Stack = data
		case types.StageNameDesign:
			payloads.Design = data
		case types.StageNameSections:
			payloads.Sections = data
		case types.StageNameInfrastructure:
			payloads.Infrastructure = data
		}
	}

	drafts := GenerateContracts(payloads, project.Name)

	rows := make([]*types.Contract, 0, len(drafts))
	for _, d := range drafts {
		row, err := draftToRow(projectID, d)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.contractRepo.DeleteByProject(ctx, tx, projectID); err != nil {
			return err
		}
		_, err := s.contractRepo.CreateBatch(ctx, tx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Contracts regenerated", "project_id", projectID, "count", len(rows))
	return rows, nil
}

func draftToRow(projectID uuid.UUID, d ContractDraft) (*types.Contract, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	row := &types.Contract{
		ID:              id,
		ProjectID:       projectID,
		Title:           d.Title,
		Type:            d.Type,
		Priority:        d.Priority,
		Status:          d.Status,
		Description:     d.Description,
		UserStory:       d.UserStory,
		GeneratedPrompt: d.GeneratedPrompt,
	}

	deps := d.Dependencies
	if deps == nil {
		deps = []string{}
	}
	if row.Dependencies, err = marshalJSON(deps); err != nil {
		return nil, err
	}
	if d.Stack != nil {
		if row.Stack, err = marshalJSON(d.Stack); err != nil {
			return nil, err
		}
	}
	if d.TargetFiles != nil {
		if row.TargetFiles, err = marshalJSON(d.TargetFiles); err != nil {
			return nil, err
		}
	}
	if d.Constraints != nil {
		if row.Constraints, err = marshalJSON(d.Constraints); err != nil {
			return nil, err
		}
	}
	if d.DoNotTouch != nil {
		if row.DoNotTouch, err = marshalJSON(d.DoNotTouch); err != nil {
			return nil, err
		}
	}
	if d.Patterns != nil {
		if row.Patterns, err = marshalJSON(d.Patterns); err != nil {
			return nil, err
		}
	}
	if d.DataModels != nil {
		if row.DataModels, err = marshalJSON(d.DataModels); err != nil {
			return nil, err
		}
	}
	if d.APIEndpoints != nil {
		if row.APIEndpoints, err = marshalJSON(d.APIEndpoints); err != nil {
			return nil, err
		}
	}
	if d.DesignTokens != nil {
		if row.DesignTokens, err = marshalJSON(d.DesignTokens); err != nil {
			return nil, err
		}
	}
	if d.ComponentSpec != nil {
		if row.ComponentSpec, err = marshalJSON(d.ComponentSpec); err != nil {
			return nil, err
		}
	}
	if d.AcceptanceCriteria != nil {
		if row.AcceptanceCriteria, err = marshalJSON(d.AcceptanceCriteria); err != nil {
			return nil, err
		}
	}
	if d.TestCases != nil {
		if row.TestCases, err = marshalJSON(d.TestCases); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *contractService) ListContracts(ctx context.Context, projectID uuid.UUID, statusFilter string) ([]*types.Contract, error) {
	var statuses []string
	if statusFilter != "" {
		switch statusFilter {
		case types.ContractStatusBacklog, types.ContractStatusReady, types.ContractStatusInProgress,
			types.ContractStatusInReview, types.ContractStatusDone:
			statuses = []string{statusFilter}
		default:
			return nil, apierr.BadRequest("invalid status filter %q", statusFilter)
		}
	}
	return s.contractRepo.ListByProject(ctx, nil, projectID, statuses)
}

func (s *contractService) GetContract(ctx context.Context, projectID, contractID uuid.UUID) (*types.Contract, error) {
	contract, err := s.contractRepo.GetForProject(ctx, nil, contractID, projectID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, apierr.NotFound("contract not found")
	}
	return contract, nil
}

func (s *contractService) NextReady(ctx context.Context, projectID uuid.UUID) (*types.Contract, error) {
	return s.contractRepo.NextReady(ctx, nil, projectID)
}

func (s *contractService) ListEvents(ctx context.Context, projectID, contractID uuid.UUID) ([]*types.ContractEvent, error) {
	if _, err := s.GetContract(ctx, projectID, contractID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByContract(ctx, nil, contractID)
}

func (s *contractService) Start(ctx context.Context, projectID, contractID uuid.UUID) (*types.Contract, error) {
	return s.transition(ctx, projectID, contractID,
		[]string{types.ContractStatusReady},
		map[string]interface{}{
			"status":     types.ContractStatusInProgress,
			"started_at": nowPtr(),
		},
		types.EventStarted, contractActorHuman, "", false)
}

func (s *contractService) Submit(ctx context.Context, projectID, contractID uuid.UUID, summary string) (*types.Contract, error) {
	return s.transition(ctx, projectID, contractID,
		[]string{types.ContractStatusInProgress},
		map[string]interface{}{
			"status":         types.ContractStatusInReview,
			"review_summary": summary,
			"reviewed_at":    nil,
		},
		types.EventSubmitted, contractActorHuman, summary, false)
}

func (s *contractService) RequestChanges(ctx context.Context, projectID, contractID uuid.UUID, feedback string) (*types.Contract, error) {
	return s.transition(ctx, projectID, contractID,
		[]string{types.ContractStatusInReview},
		map[string]interface{}{
			"status":          types.ContractStatusInProgress,
			"review_feedback": feedback,
		},
		types.EventChangesRequested, contractActorHuman, feedback, false)
}

func (s *contractService) Approve(ctx context.Context, projectID, contractID uuid.UUID, actor string) (*types.Contract, error) {
	if actor == "" {
		actor = contractActorHuman
	}
	return s.transition(ctx, projectID, contractID,
		[]string{types.ContractStatusInReview},
		map[string]interface{}{
			"status":       types.ContractStatusDone,
			"completed_at": nowPtr(),
			"reviewed_at":  nowPtr(),
		},
		types.EventApproved, actor, "", true)
}

// transition applies one conditional lifecycle update plus its audit event.
// Zero affected rows branches into NOT_FOUND vs BAD_STATUS via an existence
// check, never a silent success.
func (s *contractService) transition(
	ctx context.Context,
	projectID, contractID uuid.UUID,
	fromStatuses []string,
	updates map[string]interface{},
	eventType, actor, message string,
	cascadeAfter bool,
) (*types.Contract, error) {
	var result *types.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.contractRepo.GetForProject(ctx, tx, contractID, projectID)
		if err != nil {
			return err
		}
		if contract == nil {
			return apierr.NotFound("contract not found")
		}

		affected, err := s.contractRepo.ConditionalUpdate(ctx, tx, contractID, fromStatuses, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.BadStatus("cannot %s contract in %q status", eventType, contract.Status)
		}

		event := &types.ContractEvent{
			ID:         uuid.New(),
			ContractID: contractID,
			Type:       eventType,
			Actor:      actor,
			Message:    message,
		}
		if _, err := s.eventRepo.Create(ctx, tx, event); err != nil {
			return err
		}

		result, err = s.contractRepo.GetForProject(ctx, tx, contractID, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if cascadeAfter {
		if cErr := s.cascade(ctx, projectID); cErr != nil {
			s.log.Error("Cascade failed", "project_id", projectID, "error", cErr)
		}
	}
	return result, nil
}

// cascade rescans every backlog contract in the project and flips to ready
// those whose dependency set is covered by done contracts. A full rescan is
// self-healing: two concurrent approvals may each miss an unlock, and the
// next cascade converges.
func (s *contractService) cascade(ctx context.Context, projectID uuid.UUID) error {
	contracts, err := s.contractRepo.ListByProject(ctx, nil, projectID, nil)
	if err != nil {
		return err
	}

	done := map[string]struct{}{}
	for _, c := range contracts {
		if c.Status == types.ContractStatusDone {
			done[c.ID.String()] = struct{}{}
		}
	}

	for _, c := range contracts {
		if c.Status != types.ContractStatusBacklog {
			continue
		}
		satisfied := true
		for _, dep := range c.DependencyIDs() {
			if _, ok := done[dep]; !ok {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		if _, err := s.contractRepo.ConditionalUpdate(ctx, nil, c.ID,
			[]string{types.ContractStatusBacklog},
			map[string]interface{}{"status": types.ContractStatusReady}); err != nil {
			return err
		}
	}
	return nil
}
