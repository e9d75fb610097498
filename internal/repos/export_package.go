package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

type ExportPackageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, pkg *types.ExportPackage) (*types.ExportPackage, error)
	GetForProject(ctx context.Context, tx *gorm.DB, pkgID, projectID uuid.UUID) (*types.ExportPackage, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ExportPackage, error)
}

type exportPackageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExportPackageRepo(db *gorm.DB, baseLog *logger.Logger) ExportPackageRepo {
	return &exportPackageRepo{db: db, log: baseLog.With("repo", "ExportPackageRepo")}
}

func (r *exportPackageRepo) Create(ctx context.Context, tx *gorm.DB, pkg *types.ExportPackage) (*types.ExportPackage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if pkg == nil {
		return nil, errors.New("nil export package")
	}
	if err := transaction.WithContext(ctx).Create(pkg).Error; err != nil {
		return nil, err
	}
	return pkg, nil
}

func (r *exportPackageRepo) GetForProject(ctx context.Context, tx *gorm.DB, pkgID, projectID uuid.UUID) (*types.ExportPackage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var pkg types.ExportPackage
	err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", pkgID, projectID).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *exportPackageRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ExportPackage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ExportPackage
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("exported_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
