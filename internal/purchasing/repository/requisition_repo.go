package repository

import (
	"context"
	"errors"
	"time"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"gorm.io/gorm"
)

// RequisitionRepository persists and queries requisition aggregates.
type RequisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// ListQuery filters and paginates requisition listings. CreatorIDs and
// Statuses are both AND-intersected when present.
type ListQuery struct {
	CreatorIDs  []uint
	Statuses    []string
	ProjectID   *uint
	FromDate    *time.Time
	ToDate      *time.Time
	Page        int
	Limit       int
	OldestFirst bool
}

// List returns one page of requisitions with header-level associations and
// items preloaded, plus the unpaginated total.
func (r *RequisitionRepository) List(ctx context.Context, q ListQuery) ([]entity.Requisition, int64, error) {
	var requisitions []entity.Requisition
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Requisition{})

	if len(q.CreatorIDs) > 0 {
		query = query.Where("created_by IN ?", q.CreatorIDs)
	}
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.ProjectID != nil {
		query = query.Where("project_id = ?", *q.ProjectID)
	}
	if q.FromDate != nil {
		query = query.Where("created_at >= ?", *q.FromDate)
	}
	if q.ToDate != nil {
		query = query.Where("created_at <= ?", *q.ToDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if q.OldestFirst {
		order = "created_at ASC"
	}

	offset := (q.Page - 1) * q.Limit
	err := query.
		Preload("Company").
		Preload("Project").
		Preload("OperationCenter").
		Preload("ProjectCode").
		Preload("Creator").
		Preload("Creator.Role").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_number ASC")
		}).
		Preload("Items.Material").
		Preload("Items.Material.MaterialGroup").
		Order(order).
		Offset(offset).
		Limit(q.Limit).
		Find(&requisitions).Error

	return requisitions, total, err
}

// FindByID loads the full aggregate for detail views: header associations,
// ordered items with materials, and the audit log with its actors.
func (r *RequisitionRepository) FindByID(ctx context.Context, id uint) (*entity.Requisition, error) {
	var requisition entity.Requisition
	err := r.db.WithContext(ctx).
		Preload("Company").
		Preload("Project").
		Preload("OperationCenter").
		Preload("ProjectCode").
		Preload("Creator").
		Preload("Creator.Role").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_number ASC")
		}).
		Preload("Items.Material").
		Preload("Items.Material.MaterialGroup").
		Preload("Logs", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Logs.User").
		Where("requisition_id = ?", id).
		First(&requisition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &requisition, nil
}

// FindHeader loads the bare requisition row, enough for transition checks.
func (r *RequisitionRepository) FindHeader(ctx context.Context, id uint) (*entity.Requisition, error) {
	var requisition entity.Requisition
	err := r.db.WithContext(ctx).
		Where("requisition_id = ?", id).
		First(&requisition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &requisition, nil
}

// CountLogs returns the number of audit rows for one requisition.
func (r *RequisitionRepository) CountLogs(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&entity.RequisitionLog{}).
		Where("requisition_id = ?", id).
		Count(&n).Error
	return n, err
}

// Delete hard-deletes the requisition with its items and logs in one
// transaction. The owner/status guards live in the service.
func (r *RequisitionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("requisition_id = ?", id).Delete(&entity.RequisitionItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("requisition_id = ?", id).Delete(&entity.RequisitionLog{}).Error; err != nil {
			return err
		}
		return tx.Where("requisition_id = ?", id).Delete(&entity.Requisition{}).Error
	})
}
