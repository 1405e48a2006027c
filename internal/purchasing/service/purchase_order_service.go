package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Colombian VAT applied to every order line.
var ivaRate = decimal.NewFromFloat(0.19)

// PurchaseOrderService issues numbered purchase orders from approved
// requisitions and drives the requisition through en_proceso to completada.
type PurchaseOrderService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewPurchaseOrderService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{db: db, repos: repos, logger: logger}
}

type OrderItemInput struct {
	MaterialID uint            `json:"material_id" binding:"required"`
	Quantity   float64         `json:"cantidad" binding:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"precio_unitario" binding:"required"`
}

type CreateOrderInput struct {
	RequisitionID uint             `json:"requisition_id" binding:"required"`
	SupplierID    uint             `json:"supplier_id" binding:"required"`
	Discount      decimal.Decimal  `json:"descuento"`
	Items         []OrderItemInput `json:"items" binding:"required,dive"`
}

// CreateFromRequisition issues an order against a management-approved
// requisition. In one transaction it takes the next OC number, writes the
// order with its priced lines, moves the requisition to en_proceso and
// records the transition. Only purchasing users may issue orders.
func (s *PurchaseOrderService) CreateFromRequisition(ctx context.Context, userID uint, in CreateOrderInput) (*entity.PurchaseOrder, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if user.Role.Category() != entity.RoleCategoryPurchasing {
		return nil, fmt.Errorf("%w: role %s may not issue purchase orders", ErrForbidden, user.Role.Name)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: a purchase order needs at least one item", ErrBadRequest)
	}
	if in.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount cannot be negative", ErrBadRequest)
	}

	req, err := s.repos.Requisition.FindHeader(ctx, in.RequisitionID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if req.Status != entity.StatusAprobadaGerencia {
		return nil, fmt.Errorf("%w: requisition %s is in status %s, orders need aprobada_gerencia",
			ErrInvalidState, req.RequisitionNumber, req.Status)
	}

	subtotal := decimal.Zero
	items := make([]entity.PurchaseOrderItem, len(in.Items))
	for i, it := range in.Items {
		lineTotal := it.UnitPrice.Mul(decimal.NewFromFloat(it.Quantity)).Round(2)
		items[i] = entity.PurchaseOrderItem{
			ItemNumber: i + 1,
			MaterialID: it.MaterialID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}
	iva := subtotal.Mul(ivaRate).Round(2)
	total := subtotal.Add(iva).Sub(in.Discount)
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: discount exceeds the order total", ErrBadRequest)
	}

	var order entity.PurchaseOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.repos.Sequence.NextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}
		order = entity.PurchaseOrder{
			PurchaseOrderNumber: number,
			RequisitionID:       req.RequisitionID,
			SupplierID:          in.SupplierID,
			IssueDate:           time.Now(),
			Subtotal:            subtotal,
			TotalIVA:            iva,
			TotalDiscount:       in.Discount,
			TotalAmount:         total,
			CreatedBy:           userID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].PurchaseOrderID = order.PurchaseOrderID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.Requisition{}).
			Where("requisition_id = ?", req.RequisitionID).
			Update("status", entity.StatusEnProceso).Error; err != nil {
			return err
		}
		prev := req.Status
		return tx.Create(&entity.RequisitionLog{
			RequisitionID:  req.RequisitionID,
			UserID:         userID,
			Action:         entity.ActionGenerateOrder,
			PreviousStatus: &prev,
			NewStatus:      entity.StatusEnProceso,
			Comments:       fmt.Sprintf("orden de compra %s", order.PurchaseOrderNumber),
		}).Error
	})
	if err != nil {
		return nil, translateDBError(err)
	}

	s.logger.Info("purchase order issued",
		zap.String("number", order.PurchaseOrderNumber),
		zap.String("requisition", req.RequisitionNumber),
		zap.Uint("user_id", userID))
	return s.repos.PurchaseOrder.FindByID(ctx, order.PurchaseOrderID)
}

// MarkReceived closes out an order: the backing requisition moves from
// en_proceso to completada and the completion is logged.
func (s *PurchaseOrderService) MarkReceived(ctx context.Context, orderID, userID uint) (*entity.PurchaseOrder, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if user.Role.Category() != entity.RoleCategoryPurchasing {
		return nil, fmt.Errorf("%w: role %s may not receive purchase orders", ErrForbidden, user.Role.Name)
	}

	order, err := s.repos.PurchaseOrder.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateDBError(err)
	}
	req, err := s.repos.Requisition.FindHeader(ctx, order.RequisitionID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if req.Status != entity.StatusEnProceso {
		return nil, fmt.Errorf("%w: requisition %s is in status %s, receiving needs en_proceso",
			ErrInvalidState, req.RequisitionNumber, req.Status)
	}

	prev := req.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Requisition{}).
			Where("requisition_id = ?", req.RequisitionID).
			Update("status", entity.StatusCompletada).Error; err != nil {
			return err
		}
		return tx.Create(&entity.RequisitionLog{
			RequisitionID:  req.RequisitionID,
			UserID:         userID,
			Action:         entity.ActionCompleteProcess,
			PreviousStatus: &prev,
			NewStatus:      entity.StatusCompletada,
			Comments:       fmt.Sprintf("orden de compra %s recibida", order.PurchaseOrderNumber),
		}).Error
	})
	if err != nil {
		return nil, translateDBError(err)
	}

	s.logger.Info("purchase order received",
		zap.String("number", order.PurchaseOrderNumber),
		zap.Uint("user_id", userID))
	return s.repos.PurchaseOrder.FindByID(ctx, orderID)
}

// canReadOrders limits order reads to the roles that work with them:
// purchasing issues and receives them, management signed off on the spend.
func (s *PurchaseOrderService) canReadOrders(ctx context.Context, userID uint) error {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return translateDBError(err)
	}
	switch user.Role.Category() {
	case entity.RoleCategoryPurchasing, entity.RoleCategoryApprover:
		return nil
	}
	return fmt.Errorf("%w: role %s may not read purchase orders", ErrForbidden, user.Role.Name)
}

// GetByID returns a purchase order with its supplier, lines and requisition.
func (s *PurchaseOrderService) GetByID(ctx context.Context, orderID, userID uint) (*entity.PurchaseOrder, error) {
	if err := s.canReadOrders(ctx, userID); err != nil {
		return nil, err
	}
	order, err := s.repos.PurchaseOrder.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateDBError(err)
	}
	return order, nil
}

// OrderPage is the paginated order listing shape.
type OrderPage struct {
	Items      []entity.PurchaseOrder `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// List returns purchase orders, optionally narrowed to one requisition.
func (s *PurchaseOrderService) List(ctx context.Context, userID uint, requisitionID *uint, page, limit int) (*OrderPage, error) {
	if err := s.canReadOrders(ctx, userID); err != nil {
		return nil, err
	}
	items, total, err := s.repos.PurchaseOrder.List(ctx, requisitionID, page, limit)
	if err != nil {
		return nil, translateDBError(err)
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return &OrderPage{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}, nil
}
