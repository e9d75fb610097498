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

type BatchRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.BatchRun) (*types.BatchRun, error)
	GetForProject(ctx context.Context, tx *gorm.DB, runID, projectID uuid.UUID) (*types.BatchRun, error)
	GetLatestByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.BatchRun, error)
	GetRunning(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.BatchRun, error)
	// ConditionalUpdate applies updates iff the run's status is in
	// fromStatuses. Returns rows affected.
	ConditionalUpdate(ctx context.Context, tx *gorm.DB, runID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, runID uuid.UUID, updates map[string]interface{}) error
}

type batchRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRunRepo(db *gorm.DB, baseLog *logger.Logger) BatchRunRepo {
	return &batchRunRepo{db: db, log: baseLog.With("repo", "BatchRunRepo")}
}

func (r *batchRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.BatchRun) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, errors.New("nil batch run")
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *batchRunRepo) GetForProject(ctx context.Context, tx *gorm.DB, runID, projectID uuid.UUID) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.BatchRun
	err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", runID, projectID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *batchRunRepo) GetLatestByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.BatchRun
	err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *batchRunRepo) GetRunning(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.BatchRun
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, types.BatchStatusRunning).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *batchRunRepo) ConditionalUpdate(ctx context.Context, tx *gorm.DB, runID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error) {
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
		Model(&types.BatchRun{}).
		Where("id = ? AND status IN ?", runID, fromStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *batchRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, runID uuid.UUID, updates map[string]interface{}) error {
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
	return transaction.WithContext(ctx).
		Model(&types.BatchRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}
