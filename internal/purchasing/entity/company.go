package entity

// Company owns requisitions. RequiresProject marks companies whose
// requisitions must always carry a project (e.g. Canales & Contactos);
// validation reads the flag, never the company name.
type Company struct {
	CompanyID       uint   `json:"company_id" gorm:"column:company_id;primaryKey"`
	Name            string `json:"name" gorm:"size:150;uniqueIndex;not null"`
	TaxID           string `json:"tax_id" gorm:"column:nit;size:20"`
	RequiresProject bool   `json:"requires_project" gorm:"default:false"`
	Active          bool   `json:"active" gorm:"column:es_activo;default:true"`
}

func (Company) TableName() string {
	return "companies"
}

// Project is an optional sub-scope of a company (Ciudad Bolívar,
// Administrativo, Jericó, ...). It narrows the sequence prefix and the
// operation center resolution.
type Project struct {
	ProjectID uint   `json:"project_id" gorm:"column:project_id;primaryKey"`
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	Name      string `json:"name" gorm:"size:150;not null"`
	Active    bool   `json:"active" gorm:"column:es_activo;default:true"`

	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

func (Project) TableName() string {
	return "projects"
}

// OperationCenter maps a (company, optional project) scope to the cost
// center stamped on each requisition. A nil ProjectID row serves the
// company's "no project" scope only; it is not a wildcard.
type OperationCenter struct {
	CenterID  uint   `json:"center_id" gorm:"column:center_id;primaryKey"`
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	ProjectID *uint  `json:"project_id" gorm:"index"`
	Code      string `json:"code" gorm:"size:3;not null"`

	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (OperationCenter) TableName() string {
	return "operation_centers"
}

// ProjectCode is an accounting code resolved per (company, optional
// project) scope. Unlike the operation center it is optional: a missing
// row leaves the requisition without one.
type ProjectCode struct {
	CodeID    uint   `json:"code_id" gorm:"column:code_id;primaryKey"`
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	ProjectID *uint  `json:"project_id" gorm:"index"`
	Code      string `json:"code" gorm:"type:text"`

	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (ProjectCode) TableName() string {
	return "project_codes"
}
