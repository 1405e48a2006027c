package service

import (
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles the purchasing services. rdb may be nil; caching is
// then skipped and every lookup hits the database.
type Services struct {
	Authorization *AuthorizationService
	Requisition   *RequisitionService
	PurchaseOrder *PurchaseOrderService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, logger *zap.Logger) *Services {
	auth := NewAuthorizationService(repos.Authorization, rdb, logger)
	return &Services{
		Authorization: auth,
		Requisition:   NewRequisitionService(db, repos, auth, logger),
		PurchaseOrder: NewPurchaseOrderService(db, repos, logger),
	}
}
