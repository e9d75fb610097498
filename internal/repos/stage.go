package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

type StageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, stages []*types.Stage) ([]*types.Stage, error)
	GetByProjectAndNumber(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) (*types.Stage, error)
	GetByProjectAndNumbers(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, numbers []int) ([]*types.Stage, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Stage, error)

	// ClaimForGeneration compare-and-swaps the stage into `generating` iff
	// its current status is active or review. The returned prior status is
	// exact: the swap predicate pins the status that was observed, so a
	// concurrent claim makes the update match zero rows and the loser
	// reports not claimable instead of stealing the claim. Returns
	// (nil, "", nil) when the stage does not exist and (stage, "", nil)
	// when the stage exists but is not claimable.
	ClaimForGeneration(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) (*types.Stage, string, error)

	// ConditionalUpdate applies updates iff the stage's current status is in
	// fromStatuses. Returns the number of rows affected.
	ConditionalUpdate(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error)

	// ConditionalUpdateByNumber is ConditionalUpdate keyed by
	// (project, stage number) instead of stage id.
	ConditionalUpdateByNumber(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int, fromStatuses []string, updates map[string]interface{}) (int64, error)

	// LockAfter forces every stage with a higher number back to locked and
	// clears its completion timestamps.
	LockAfter(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) ([]*types.Stage, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, updates map[string]interface{}) error
}

type stageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageRepo(db *gorm.DB, baseLog *logger.Logger) StageRepo {
	return &stageRepo{db: db, log: baseLog.With("repo", "StageRepo")}
}

func (r *stageRepo) Create(ctx context.Context, tx *gorm.DB, stages []*types.Stage) ([]*types.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(stages) == 0 {
		return []*types.Stage{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *stageRepo) GetByProjectAndNumber(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) (*types.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var stage types.Stage
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND stage_number = ?", projectID, number).
		First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *stageRepo) GetByProjectAndNumbers(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, numbers []int) ([]*types.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Stage
	if len(numbers) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND stage_number IN ?", projectID, numbers).
		Order("stage_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *stageRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Stage
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("stage_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *stageRepo) ClaimForGeneration(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) (*types.Stage, string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var claimed *types.Stage
	var priorStatus string

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var stage types.Stage
		qErr := txx.Where("project_id = ? AND stage_number = ?", projectID, number).First(&stage).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		if stage.Status != types.StageStatusActive && stage.Status != types.StageStatusReview {
			claimed = &stage
			return nil
		}

		res := txx.Model(&types.Stage{}).
			Where("id = ? AND status = ?", stage.ID, stage.Status).
			Updates(map[string]interface{}{
				"status":     types.StageStatusGenerating,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race with a concurrent claimant; report as not claimable.
			claimed = &stage
			claimed.Status = types.StageStatusGenerating
			return nil
		}

		priorStatus = stage.Status
		stage.Status = types.StageStatusGenerating
		claimed = &stage
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return claimed, priorStatus, nil
}

func (r *stageRepo) ConditionalUpdate(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(ctx).
		Model(&types.Stage{}).
		Where("id = ? AND status IN ?", stageID, fromStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *stageRepo) ConditionalUpdateByNumber(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int, fromStatuses []string, updates map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(ctx).
		Model(&types.Stage{}).
		Where("project_id = ? AND stage_number = ? AND status IN ?", projectID, number, fromStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *stageRepo) LockAfter(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, number int) ([]*types.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Stage{}).
		Where("project_id = ? AND stage_number > ?", projectID, number).
		Updates(map[string]interface{}{
			"status":       types.StageStatusLocked,
			"completed_at": nil,
			"validated_at": nil,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	var locked []*types.Stage
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND stage_number > ?", projectID, number).
		Order("stage_number ASC").
		Find(&locked).Error; err != nil {
		return nil, err
	}
	return locked, nil
}

func (r *stageRepo) UpdateFields(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if stageID == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Stage{}).
		Where("id = ?", stageID).
		Updates(updates).Error
}
