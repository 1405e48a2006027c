package entity

import (
	"strings"
	"time"
)

// Role is a user role. Role names drive the permission category; the
// mapping is decided once in Category and never compared as strings
// anywhere else.
type Role struct {
	RoleID      uint   `json:"role_id" gorm:"column:role_id;primaryKey"`
	Name        string `json:"name" gorm:"column:nombre_rol;size:50;uniqueIndex;not null"`
	Description string `json:"description" gorm:"column:descripcion;type:text"`
}

func (Role) TableName() string {
	return "roles"
}

// RoleCategory is the closed set of permission categories a role can map to.
type RoleCategory string

const (
	// RoleCategoryCreator may create and edit its own requisitions.
	RoleCategoryCreator RoleCategory = "creator"
	// RoleCategoryReviewer may review subordinates' requisitions (level 1).
	RoleCategoryReviewer RoleCategory = "reviewer"
	// RoleCategoryApprover gives final management approval (level 2).
	RoleCategoryApprover RoleCategory = "approver"
	// RoleCategoryPurchasing turns approved requisitions into purchase orders.
	RoleCategoryPurchasing RoleCategory = "purchasing"
)

// Canonical role names seeded at startup.
const (
	RoleGerencia = "Gerencia"
	RoleCompras  = "Compras"
)

// Category maps the role name to its permission category. Director-class
// roles are matched by name ("Director PMO", "Director Técnico", ...);
// everything not recognized falls back to the creator category.
func (r Role) Category() RoleCategory {
	switch {
	case r.Name == RoleGerencia:
		return RoleCategoryApprover
	case r.Name == RoleCompras:
		return RoleCategoryPurchasing
	case strings.Contains(r.Name, "Director"):
		return RoleCategoryReviewer
	default:
		return RoleCategoryCreator
	}
}

// User is an authenticated actor. Credentials and token issuance live
// outside this service; only the id, role and active flag matter here.
type User struct {
	UserID    uint      `json:"user_id" gorm:"column:user_id;primaryKey"`
	Username  string    `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"column:nombre;size:100;not null"`
	Email     string    `json:"email" gorm:"size:150"`
	RoleID    uint      `json:"role_id" gorm:"not null"`
	Active    bool      `json:"active" gorm:"column:es_activo;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Role *Role `json:"role,omitempty" gorm:"foreignKey:RoleID;references:RoleID"`
}

func (User) TableName() string {
	return "users"
}
