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

type ContractRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, contracts []*types.Contract) ([]*types.Contract, error)
	// DeleteByProject removes every contract for the project. Used when the
	// builder regenerates the full set.
	DeleteByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
	GetForProject(ctx context.Context, tx *gorm.DB, contractID, projectID uuid.UUID) (*types.Contract, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, statuses []string) ([]*types.Contract, error)
	ListByStatuses(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, statuses []string) ([]*types.Contract, error)
	// NextReady returns the lowest-priority ready contract, or nil.
	NextReady(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Contract, error)
	// ConditionalUpdate applies updates iff the contract's status is in
	// fromStatuses. Returns rows affected.
	ConditionalUpdate(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, updates map[string]interface{}) error
	CountByStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (map[string]int64, error)
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return &contractRepo{db: db, log: baseLog.With("repo", "ContractRepo")}
}

func (r *contractRepo) CreateBatch(ctx context.Context, tx *gorm.DB, contracts []*types.Contract) ([]*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(contracts) == 0 {
		return []*types.Contract{}, nil
	}
	if err := transaction.WithContext(ctx).CreateInBatches(&contracts, 100).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *contractRepo) DeleteByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&types.Contract{}).Error
}

func (r *contractRepo) GetForProject(ctx context.Context, tx *gorm.DB, contractID, projectID uuid.UUID) (*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var contract types.Contract
	err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", contractID, projectID).
		First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, statuses []string) ([]*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	query := transaction.WithContext(ctx).Where("project_id = ?", projectID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var results []*types.Contract
	if err := query.Order("priority ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contractRepo) ListByStatuses(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, statuses []string) ([]*types.Contract, error) {
	return r.ListByProject(ctx, tx, projectID, statuses)
}

func (r *contractRepo) NextReady(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var contract types.Contract
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, types.ContractStatusReady).
		Order("priority ASC").
		First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepo) ConditionalUpdate(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error) {
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
		Model(&types.Contract{}).
		Where("id = ? AND status IN ?", contractID, fromStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *contractRepo) UpdateFields(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Contract{}).
		Where("id = ?", contractID).
		Updates(updates).Error
}

func (r *contractRepo) CountByStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&types.Contract{}).
		Select("status, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
