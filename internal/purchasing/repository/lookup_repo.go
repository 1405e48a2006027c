package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"gorm.io/gorm"
)

// LookupRepository resolves the static reference data stamped on each
// requisition at creation time.
type LookupRepository struct {
	db *gorm.DB
}

func NewLookupRepository(db *gorm.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// FindCompany loads one company by id.
func (r *LookupRepository) FindCompany(ctx context.Context, id uint) (*entity.Company, error) {
	var company entity.Company
	err := r.db.WithContext(ctx).Where("company_id = ?", id).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &company, nil
}

// OperationCenterID resolves the center for the exact (company,
// project-or-null) scope. Creation fails when no center is configured.
func (r *LookupRepository) OperationCenterID(ctx context.Context, companyID uint, projectID *uint) (uint, error) {
	var center entity.OperationCenter
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	} else {
		q = q.Where("project_id IS NULL")
	}
	if err := q.First(&center).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: no operation center for company=%d project=%v", ErrNotFound, companyID, projectID)
		}
		return 0, err
	}
	return center.CenterID, nil
}

// ProjectCodeID resolves the accounting code for the scope. Unlike the
// operation center, a missing row is not an error: it returns nil.
func (r *LookupRepository) ProjectCodeID(ctx context.Context, companyID uint, projectID *uint) (*uint, error) {
	var code entity.ProjectCode
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	} else {
		q = q.Where("project_id IS NULL")
	}
	if err := q.First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code.CodeID, nil
}
