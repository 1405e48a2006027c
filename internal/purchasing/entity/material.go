package entity

// MaterialGroup groups materials for reporting (Eléctricos, Ferretería, ...).
type MaterialGroup struct {
	GroupID uint   `json:"group_id" gorm:"column:group_id;primaryKey"`
	Name    string `json:"name" gorm:"size:100;uniqueIndex;not null"`
}

func (MaterialGroup) TableName() string {
	return "material_groups"
}

// Material is a catalog entry referenced by requisition items.
type Material struct {
	MaterialID  uint   `json:"material_id" gorm:"column:material_id;primaryKey"`
	GroupID     uint   `json:"group_id" gorm:"not null;index"`
	Code        string `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Description string `json:"description" gorm:"column:descripcion;size:255;not null"`
	Unit        string `json:"unit" gorm:"column:unidad;size:20;default:und"`
	Active      bool   `json:"active" gorm:"column:es_activo;default:true"`

	MaterialGroup *MaterialGroup `json:"material_group,omitempty" gorm:"foreignKey:GroupID"`
}

func (Material) TableName() string {
	return "materials"
}
