package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories bundles the purchasing repositories around one gorm handle.
type Repositories struct {
	Requisition   *RequisitionRepository
	Sequence      *SequenceRepository
	Authorization *AuthorizationRepository
	User          *UserRepository
	Lookup        *LookupRepository
	PurchaseOrder *PurchaseOrderRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Requisition:   NewRequisitionRepository(db),
		Sequence:      NewSequenceRepository(db),
		Authorization: NewAuthorizationRepository(db),
		User:          NewUserRepository(db),
		Lookup:        NewLookupRepository(db),
		PurchaseOrder: NewPurchaseOrderRepository(db),
	}
}
