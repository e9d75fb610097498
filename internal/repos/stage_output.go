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

type StageOutputRepo interface {
	// InsertVersion stores a new output at latest version + 1 and marks it
	// active. Prior versions for the stage are deactivated in the same call.
	InsertVersion(ctx context.Context, tx *gorm.DB, output *types.StageOutput) (*types.StageOutput, error)
	GetActive(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*types.StageOutput, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, version int) (*types.StageOutput, error)
	ListByStage(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*types.StageOutput, error)
	// ActivateVersion flips the active flag to exactly one version.
	ActivateVersion(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, version int) (*types.StageOutput, error)
}

type stageOutputRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageOutputRepo(db *gorm.DB, baseLog *logger.Logger) StageOutputRepo {
	return &stageOutputRepo{db: db, log: baseLog.With("repo", "StageOutputRepo")}
}

func (r *stageOutputRepo) InsertVersion(ctx context.Context, tx *gorm.DB, output *types.StageOutput) (*types.StageOutput, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if output == nil {
		return nil, errors.New("nil stage output")
	}

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var latest types.StageOutput
		qErr := txx.Where("stage_id = ?", output.StageID).
			Order("version DESC").
			First(&latest).Error
		nextVersion := 1
		if qErr == nil {
			nextVersion = latest.Version + 1
		} else if !errors.Is(qErr, gorm.ErrRecordNotFound) {
			return qErr
		}

		if err := txx.Model(&types.StageOutput{}).
			Where("stage_id = ? AND is_active = ?", output.StageID, true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error; err != nil {
			return err
		}

		output.Version = nextVersion
		output.IsActive = true
		return txx.Create(output).Error
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (r *stageOutputRepo) GetActive(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*types.StageOutput, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var output types.StageOutput
	err := transaction.WithContext(ctx).
		Where("stage_id = ? AND is_active = ?", stageID, true).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &output, nil
}

func (r *stageOutputRepo) GetByVersion(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, version int) (*types.StageOutput, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var output types.StageOutput
	err := transaction.WithContext(ctx).
		Where("stage_id = ? AND version = ?", stageID, version).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &output, nil
}

func (r *stageOutputRepo) ListByStage(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*types.StageOutput, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StageOutput
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("version DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *stageOutputRepo) ActivateVersion(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, version int) (*types.StageOutput, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var activated *types.StageOutput
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var output types.StageOutput
		qErr := txx.Where("stage_id = ? AND version = ?", stageID, version).First(&output).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		if err := txx.Model(&types.StageOutput{}).
			Where("stage_id = ?", stageID).
			Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if err := txx.Model(&types.StageOutput{}).
			Where("id = ?", output.ID).
			Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		output.IsActive = true
		activated = &output
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}
