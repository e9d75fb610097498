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

// StageDetail is a stage with its output history.
type StageDetail struct {
	Stage   *types.Stage         `json:"stage"`
	Outputs []*types.StageOutput `json:"outputs"`
}

type StageService interface {
	ListStages(ctx context.Context, projectID uuid.UUID) ([]*types.Stage, error)
	GetStage(ctx context.Context, projectID uuid.UUID, number int) (*StageDetail, error)
	// SaveStage stores a human edit. Allowed while active or review; the
	// stage lands in review either way.
	SaveStage(ctx context.Context, projectID uuid.UUID, number int, data json.RawMessage, userInput string) (*types.Stage, error)
	// CompleteStage validates and completes a stage, unlocking the next one
	// and advancing the project pointer.
	CompleteStage(ctx context.Context, projectID uuid.UUID, number int) (*types.Stage, error)
	// RevertStage reopens a completed stage for rework. Every later stage is
	// forced back to locked because its inputs are now stale.
	RevertStage(ctx context.Context, projectID uuid.UUID, number int) (*types.Stage, error)
	// ActivateOutputVersion makes version V the stage's single active output
	// and loads its content into stage.data. A complete stage demotes to
	// review since downstream stages saw different data.
	ActivateOutputVersion(ctx context.Context, projectID uuid.UUID, number, version int) (*types.Stage, error)
	ListGenerations(ctx context.Context, projectID uuid.UUID, number int) ([]*types.Generation, error)
}

type stageService struct {
	db          *gorm.DB
	log         *logger.Logger
	stageRepo   repos.StageRepo
	outputRepo  repos.StageOutputRepo
	genRepo     repos.GenerationRepo
	projectRepo repos.ProjectRepo
}

func NewStageService(
	db *gorm.DB,
	baseLog *logger.Logger,
	stageRepo repos.StageRepo,
	outputRepo repos.StageOutputRepo,
	genRepo repos.GenerationRepo,
	projectRepo repos.ProjectRepo,
) StageService {
	return &stageService{
		db:          db,
		log:         baseLog.With("service", "StageService"),
		stageRepo:   stageRepo,
		outputRepo:  outputRepo,
		genRepo:     genRepo,
		projectRepo: projectRepo,
	}
}

func (s *stageService) ListStages(ctx context.Context, projectID uuid.UUID) ([]*types.Stage, error) {
	return s.stageRepo.ListByProject(ctx, nil, projectID)
}

func (s *stageService) GetStage(ctx context.Context, projectID uuid.UUID, number int) (*StageDetail, error) {
	stage, err := s.stageRepo.GetByProjectAndNumber(ctx, nil, projectID, number)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, apierr.NotFound("stage %d not found", number)
	}
	outputs, err := s.outputRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, err
	}
	return &StageDetail{Stage: stage, Outputs: outputs}, nil
}

func (s *stageService) SaveStage(ctx context.Context, projectID uuid.UUID, number int, data json.RawMessage, userInput string) (*types.Stage, error) {
	updates := map[string]interface{}{
		"status": types.StageStatusReview,
	}
	if data != nil {
		updates["data"] = datatypes.JSON(data)
	}
	if userInput != "" {
		updates["user_input"] = userInput
	}

	// Status guard lives in the WHERE clause so concurrent edits and
	// generation claims cannot interleave.
	affected, err := s.stageRepo.ConditionalUpdateByNumber(ctx, nil, projectID, number,
		[]string{types.StageStatusActive, types.StageStatusReview}, updates)
	if err != nil {
		return nil, err
	}
	stage, err := s.stageRepo.GetByProjectAndNumber(ctx, nil, projectID, number)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, apierr.NotFound("stage %d not found", number)
	}
	if affected == 0 {
		return nil, apierr.BadStatus("cannot edit stage in %q status", stage.Status)
	}
	return stage, nil
}

func (s *stageService) CompleteStage(ctx context.Context, projectID uuid.UUID, number int) (*types.Stage, error) {
	var completed *types.Stage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage, err := s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		if err != nil {
			return err
		}
		if stage == nil {
			return apierr.NotFound("stage %d not found", number)
		}
		if stage.Status != types.StageStatusActive && stage.Status != types.StageStatusReview {
			return apierr.BadStatus("cannot complete stage in %q status", stage.Status)
		}

		now := nowPtr()
		affected, err := s.stageRepo.ConditionalUpdate(ctx, tx, stage.ID,
			[]string{types.StageStatusActive, types.StageStatusReview},
			map[string]interface{}{
				"status":       types.StageStatusComplete,
				"completed_at": now,
				"validated_at": now,
			})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.BadStatus("cannot complete stage in %q status", stage.Status)
		}

		if number < types.TotalStages {
			if _, err := s.stageRepo.ConditionalUpdateByNumber(ctx, tx, projectID, number+1,
				[]string{types.StageStatusLocked},
				map[string]interface{}{"status": types.StageStatusActive}); err != nil {
				return err
			}
			if err := s.projectRepo.UpdateFields(ctx, tx, projectID,
				map[string]interface{}{"current_stage": number + 1}); err != nil {
				return err
			}
		}

		completed, err = s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Stage completed", "project_id", projectID, "stage_number", number)
	return completed, nil
}

func (s *stageService) RevertStage(ctx context.Context, projectID uuid.UUID, number int) (*types.Stage, error) {
	var reverted *types.Stage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage, err := s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		if err != nil {
			return err
		}
		if stage == nil {
			return apierr.NotFound("stage %d not found", number)
		}
		if stage.Status != types.StageStatusComplete {
			return apierr.BadStatus("cannot revert stage in %q status", stage.Status)
		}

		affected, err := s.stageRepo.ConditionalUpdate(ctx, tx, stage.ID,
			[]string{types.StageStatusComplete},
			map[string]interface{}{
				"status":       types.StageStatusReview,
				"completed_at": nil,
				"validated_at": nil,
			})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.BadStatus("cannot revert stage in %q status", stage.Status)
		}

		if _, err := s.stageRepo.LockAfter(ctx, tx, projectID, number); err != nil {
			return err
		}
		if err := s.projectRepo.UpdateFields(ctx, tx, projectID,
			map[string]interface{}{"current_stage": number}); err != nil {
			return err
		}

		reverted, err = s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Stage reverted", "project_id", projectID, "stage_number", number)
	return reverted, nil
}

func (s *stageService) ActivateOutputVersion(ctx context.Context, projectID uuid.UUID, number, version int) (*types.Stage, error) {
	var result *types.Stage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage, err := s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		if err != nil {
			return err
		}
		if stage == nil {
			return apierr.NotFound("stage %d not found", number)
		}
		switch stage.Status {
		case types.StageStatusActive, types.StageStatusReview, types.StageStatusComplete:
		default:
			return apierr.BadStatus("cannot activate version in %q status", stage.Status)
		}

		output, err := s.outputRepo.ActivateVersion(ctx, tx, stage.ID, version)
		if err != nil {
			return err
		}
		if output == nil {
			return apierr.NotFound("output version %d not found", version)
		}

		// Raw content that is not valid JSON still becomes structured data.
		var parsed json.RawMessage
		if json.Valid([]byte(output.Content)) {
			parsed = json.RawMessage(output.Content)
		} else {
			wrapped, mErr := json.Marshal(map[string]string{"raw": output.Content})
			if mErr != nil {
				return mErr
			}
			parsed = wrapped
		}

		updates := map[string]interface{}{
			"data": datatypes.JSON(parsed),
		}
		// Completed stages demote to review: downstream stages were built
		// against different data.
		if stage.Status == types.StageStatusComplete {
			updates["status"] = types.StageStatusReview
			updates["completed_at"] = nil
			updates["validated_at"] = nil
		}
		if err := s.stageRepo.UpdateFields(ctx, tx, stage.ID, updates); err != nil {
			return err
		}

		result, err = s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *stageService) ListGenerations(ctx context.Context, projectID uuid.UUID, number int) ([]*types.Generation, error) {
	stage, err := s.stageRepo.GetByProjectAndNumber(ctx, nil, projectID, number)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, apierr.NotFound("stage %d not found", number)
	}
	return s.genRepo.ListByStage(ctx, nil, stage.ID)
}
