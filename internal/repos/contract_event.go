package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

// ContractEventRepo is append-only.
type ContractEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.ContractEvent) (*types.ContractEvent, error)
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.ContractEvent, error)
}

type contractEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractEventRepo(db *gorm.DB, baseLog *logger.Logger) ContractEventRepo {
	return &contractEventRepo{db: db, log: baseLog.With("repo", "ContractEventRepo")}
}

func (r *contractEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.ContractEvent) (*types.ContractEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if event == nil {
		return nil, errors.New("nil contract event")
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *contractEventRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.ContractEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ContractEvent
	if err := transaction.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
