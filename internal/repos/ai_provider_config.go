package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

type AIProviderConfigRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cfg *types.AIProviderConfig) (*types.AIProviderConfig, error)
	GetForUser(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.AIProviderConfig, error)
	GetDefaultForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.AIProviderConfig, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.AIProviderConfig, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) error
}

type aiProviderConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAIProviderConfigRepo(db *gorm.DB, baseLog *logger.Logger) AIProviderConfigRepo {
	return &aiProviderConfigRepo{db: db, log: baseLog.With("repo", "AIProviderConfigRepo")}
}

func (r *aiProviderConfigRepo) Create(ctx context.Context, tx *gorm.DB, cfg *types.AIProviderConfig) (*types.AIProviderConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if cfg == nil {
		return nil, errors.New("nil provider config")
	}
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if cfg.IsDefault {
			if err := txx.Model(&types.AIProviderConfig{}).
				Where("user_id = ? AND is_default = ?", cfg.UserID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return txx.Create(cfg).Error
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *aiProviderConfigRepo) GetForUser(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.AIProviderConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var cfg types.AIProviderConfig
	err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *aiProviderConfigRepo) GetDefaultForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.AIProviderConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var cfg types.AIProviderConfig
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *aiProviderConfigRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.AIProviderConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AIProviderConfig
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *aiProviderConfigRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AIProviderConfig{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *aiProviderConfigRepo) Delete(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.AIProviderConfig{}).Error
}
