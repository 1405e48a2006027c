package entity

import "time"

// Requisition is the central aggregate: a material request moving through
// review (director) and approval (management) before purchasing takes over.
type Requisition struct {
	RequisitionID     uint      `json:"requisition_id" gorm:"column:requisition_id;primaryKey"`
	RequisitionNumber string    `json:"requisition_number" gorm:"size:20;uniqueIndex;not null"`
	CompanyID         uint      `json:"company_id" gorm:"not null;index"`
	ProjectID         *uint     `json:"project_id" gorm:"index"`
	OperationCenterID uint      `json:"operation_center_id" gorm:"not null"`
	ProjectCodeID     *uint     `json:"project_code_id"`
	CreatedBy         uint      `json:"created_by" gorm:"not null;index"`
	Status            string    `json:"status" gorm:"size:50;not null;default:pendiente;index"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Company         *Company         `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Project         *Project         `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	OperationCenter *OperationCenter `json:"operation_center,omitempty" gorm:"foreignKey:OperationCenterID"`
	ProjectCode     *ProjectCode     `json:"project_code,omitempty" gorm:"foreignKey:ProjectCodeID"`
	Creator         *User            `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Items           []RequisitionItem `json:"items,omitempty" gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE"`
	Logs            []RequisitionLog  `json:"logs,omitempty" gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE"`
}

func (Requisition) TableName() string {
	return "requisitions"
}

// Requisition statuses. en_proceso and completada are reached through the
// purchase-order flow, after the approval chain ends.
const (
	StatusPendiente         = "pendiente"
	StatusEnRevision        = "en_revision"
	StatusAprobadaRevisor   = "aprobada_revisor"
	StatusRechazadaRevisor  = "rechazada_revisor"
	StatusAprobadaGerencia  = "aprobada_gerencia"
	StatusRechazadaGerencia = "rechazada_gerencia"
	StatusEnProceso         = "en_proceso"
	StatusCompletada        = "completada"
)

// Log actions, one per transition kind.
const (
	ActionCreate          = "crear_requisicion"
	ActionEdit            = "editar_requisicion"
	ActionReviewApprove   = "revisar_aprobar"
	ActionReviewReject    = "revisar_rechazar"
	ActionManagerApprove  = "aprobar_gerencia"
	ActionManagerReject   = "rechazar_gerencia"
	ActionGenerateOrder   = "generar_orden_compra"
	ActionCompleteProcess = "completar_requisicion"
)

// Editable reports whether the owner may still edit or the status resets
// to pendiente on edit (rejected states).
func Editable(status string) bool {
	switch status {
	case StatusPendiente, StatusRechazadaRevisor, StatusRechazadaGerencia:
		return true
	}
	return false
}

// Reviewable reports whether a director review is legal from this status.
func Reviewable(status string) bool {
	return status == StatusPendiente || status == StatusEnRevision
}

// RequisitionItem is a line owned by exactly one requisition. Items are
// replaced wholesale on edit; ItemNumber is reassigned 1..n each time.
type RequisitionItem struct {
	ItemID        uint    `json:"item_id" gorm:"column:item_id;primaryKey"`
	RequisitionID uint    `json:"requisition_id" gorm:"not null;index"`
	ItemNumber    int     `json:"item_number" gorm:"not null"`
	MaterialID    uint    `json:"material_id" gorm:"not null"`
	Quantity      float64 `json:"quantity" gorm:"type:decimal(12,2);not null"`
	Observation   string  `json:"observation" gorm:"column:observacion;type:text"`

	Material *Material `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (RequisitionItem) TableName() string {
	return "requisition_items"
}

// RequisitionLog is the append-only audit trail. Rows are never updated
// or deleted; every transition, creation included, writes exactly one.
type RequisitionLog struct {
	LogID          uint      `json:"log_id" gorm:"column:log_id;primaryKey"`
	RequisitionID  uint      `json:"requisition_id" gorm:"not null;index"`
	UserID         uint      `json:"user_id" gorm:"not null"`
	Action         string    `json:"action" gorm:"size:50;not null"`
	PreviousStatus *string   `json:"previous_status" gorm:"size:50"`
	NewStatus      string    `json:"new_status" gorm:"size:50;not null"`
	Comments       string    `json:"comments" gorm:"column:comentarios;type:text"`
	CreatedAt      time.Time `json:"created_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (RequisitionLog) TableName() string {
	return "requisition_logs"
}
