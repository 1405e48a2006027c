package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a vendor purchase orders are issued to.
type Supplier struct {
	SupplierID uint   `json:"supplier_id" gorm:"column:supplier_id;primaryKey"`
	Name       string `json:"name" gorm:"size:150;not null"`
	TaxID      string `json:"tax_id" gorm:"column:nit;size:20;uniqueIndex"`
	Email      string `json:"email" gorm:"size:150"`
	Phone      string `json:"phone" gorm:"column:telefono;size:30"`
	Active     bool   `json:"active" gorm:"column:es_activo;default:true"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

// PurchaseOrder is issued by purchasing from a management-approved
// requisition. Deleting the requisition cascades to its orders.
type PurchaseOrder struct {
	PurchaseOrderID     uint            `json:"purchase_order_id" gorm:"column:purchase_order_id;primaryKey"`
	PurchaseOrderNumber string          `json:"purchase_order_number" gorm:"size:50;uniqueIndex;not null"`
	RequisitionID       uint            `json:"requisition_id" gorm:"not null;index"`
	SupplierID          uint            `json:"supplier_id" gorm:"not null"`
	IssueDate           time.Time       `json:"issue_date" gorm:"type:date;not null"`
	Subtotal            decimal.Decimal `json:"subtotal" gorm:"type:decimal(15,2);not null"`
	TotalIVA            decimal.Decimal `json:"total_iva" gorm:"column:total_iva;type:decimal(15,2);not null"`
	TotalDiscount       decimal.Decimal `json:"total_discount" gorm:"type:decimal(15,2);not null;default:0"`
	TotalAmount         decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2);not null"`
	CreatedBy           uint            `json:"created_by" gorm:"not null"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Requisition *Requisition        `json:"requisition,omitempty" gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE"`
	Supplier    *Supplier           `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Creator     *User               `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Items       []PurchaseOrderItem `json:"items,omitempty" gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderItem is a priced line of a purchase order.
type PurchaseOrderItem struct {
	ItemID          uint            `json:"item_id" gorm:"column:item_id;primaryKey"`
	PurchaseOrderID uint            `json:"purchase_order_id" gorm:"not null;index"`
	ItemNumber      int             `json:"item_number" gorm:"not null"`
	MaterialID      uint            `json:"material_id" gorm:"not null"`
	Quantity        float64         `json:"quantity" gorm:"type:decimal(12,2);not null"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(15,2);not null"`
	TotalPrice      decimal.Decimal `json:"total_price" gorm:"type:decimal(15,2);not null"`

	Material *Material `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (PurchaseOrderItem) TableName() string {
	return "purchase_order_items"
}
