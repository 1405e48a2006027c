package repository

import (
	"context"
	"errors"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"gorm.io/gorm"
)

// PurchaseOrderRepository persists and queries purchase orders.
type PurchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// FindByID loads the order with supplier, items and the source requisition.
func (r *PurchaseOrderRepository) FindByID(ctx context.Context, id uint) (*entity.PurchaseOrder, error) {
	var order entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Creator").
		Preload("Requisition").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_number ASC")
		}).
		Preload("Items.Material").
		Where("purchase_order_id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// List returns one page of orders, newest first, with the total count.
func (r *PurchaseOrderRepository) List(ctx context.Context, requisitionID *uint, page, limit int) ([]entity.PurchaseOrder, int64, error) {
	var orders []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	if requisitionID != nil {
		query = query.Where("requisition_id = ?", *requisitionID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Supplier").
		Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error

	return orders, total, err
}
