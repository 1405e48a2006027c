package entity

// RequisitionPrefix maps a (company, optional project) scope to the short
// prefix used in requisition numbers. Static configuration; the generator
// only reads it. A nil ProjectID row serves the "no project" scope.
type RequisitionPrefix struct {
	PrefixID  uint   `json:"prefix_id" gorm:"column:prefix_id;primaryKey"`
	CompanyID uint   `json:"company_id" gorm:"not null;index:idx_prefix_scope"`
	ProjectID *uint  `json:"project_id" gorm:"index:idx_prefix_scope"`
	Prefix    string `json:"prefix" gorm:"size:10;not null"`
}

func (RequisitionPrefix) TableName() string {
	return "requisition_prefixes"
}

// RequisitionSequence holds the last issued number for one prefix scope.
// Mutated only under a row write lock inside the creating transaction.
type RequisitionSequence struct {
	SequenceID uint `json:"sequence_id" gorm:"column:sequence_id;primaryKey"`
	PrefixID   uint `json:"prefix_id" gorm:"uniqueIndex;not null"`
	LastNumber int  `json:"last_number" gorm:"not null;default:0"`
}

func (RequisitionSequence) TableName() string {
	return "requisition_sequences"
}

// PurchaseOrderSequence is the single global counter behind purchase-order
// numbers, locked the same way as requisition sequences.
type PurchaseOrderSequence struct {
	SequenceID uint `json:"sequence_id" gorm:"column:sequence_id;primaryKey"`
	LastNumber int  `json:"last_number" gorm:"not null;default:0"`
}

func (PurchaseOrderSequence) TableName() string {
	return "purchase_order_sequences"
}
