package entity

// Authorization types. Revision edges grant level-1 review authority;
// aprobacion edges scope the management pending queue.
const (
	AuthorizationRevision   = "revision"
	AuthorizationAprobacion = "aprobacion"
)

// Authorization is a directed edge: the authorizer may act on requisitions
// created by the authorized user. Review and approval paths resolve with a
// single-hop lookup from the requisition's creator; the hierarchy level is
// organizational metadata and is not traversed.
type Authorization struct {
	AuthorizationID uint   `json:"authorization_id" gorm:"column:id;primaryKey"`
	AuthorizerID    uint   `json:"authorizer_id" gorm:"column:usuario_autorizador;not null;index;uniqueIndex:uq_autorizaciones_edge"`
	AuthorizedID    uint   `json:"authorized_id" gorm:"column:usuario_autorizado;not null;index;uniqueIndex:uq_autorizaciones_edge"`
	Type            string `json:"type" gorm:"column:tipo_autorizacion;size:20;uniqueIndex:uq_autorizaciones_edge"`
	Level           int    `json:"level" gorm:"column:nivel_jerarquia;default:1"`
	Active          bool   `json:"active" gorm:"column:es_activo;default:true"`

	Authorizer *User `json:"authorizer,omitempty" gorm:"foreignKey:AuthorizerID"`
	Authorized *User `json:"authorized,omitempty" gorm:"foreignKey:AuthorizedID"`
}

func (Authorization) TableName() string {
	return "autorizaciones"
}
