package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

// GenerationRepo is append-only. Generation rows are an audit trail and are
// never updated or deleted.
type GenerationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, generation *types.Generation) (*types.Generation, error)
	ListByStage(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*types.Generation, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Generation, error)
}

type generationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRepo {
	return &generationRepo{db: db, log: baseLog.With("repo", "GenerationRepo")}
}

func (r *generationRepo) Create(ctx context.Context, tx *gorm.DB, generation *types.Generation) (*types.Generation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if generation == nil {
		return nil, errors.New("nil generation")
	}
	if err := transaction.WithContext(ctx).Create(generation).Error; err != nil {
		return nil, err
	}
	return generation, nil
}

func (r *generationRepo) ListByStage(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*types.Generation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Generation
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *generationRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Generation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Generation
	if err := transaction.WithContext(ctx).
		Joins("JOIN stage ON stage.id = generation.stage_id").
		Where("stage.project_id = ?", projectID).
		Order("generation.created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
