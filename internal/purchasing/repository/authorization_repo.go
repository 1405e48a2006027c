package repository

import (
	"context"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"gorm.io/gorm"
)

// AuthorizationRepository queries the directed authorization-edge graph.
// All lookups are single-hop: the graph's deeper levels are organizational
// metadata, not traversed at decision time.
type AuthorizationRepository struct {
	db *gorm.DB
}

func NewAuthorizationRepository(db *gorm.DB) *AuthorizationRepository {
	return &AuthorizationRepository{db: db}
}

// HasActiveEdge reports whether authorizer holds an active edge of the
// given type over subject.
func (r *AuthorizationRepository) HasActiveEdge(ctx context.Context, authorizerID, subjectID uint, edgeType string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&entity.Authorization{}).
		Where("usuario_autorizador = ? AND usuario_autorizado = ? AND tipo_autorizacion = ? AND es_activo = ?",
			authorizerID, subjectID, edgeType, true).
		Count(&n).Error
	return n > 0, err
}

// SubordinateIDs returns the ids of all users the authorizer holds an
// active edge over.
func (r *AuthorizationRepository) SubordinateIDs(ctx context.Context, authorizerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&entity.Authorization{}).
		Where("usuario_autorizador = ? AND es_activo = ?", authorizerID, true).
		Distinct().
		Pluck("usuario_autorizado", &ids).Error
	return ids, err
}

// ListGranted returns the active edges granted by one user, with the
// authorized users attached.
func (r *AuthorizationRepository) ListGranted(ctx context.Context, authorizerID uint) ([]entity.Authorization, error) {
	var edges []entity.Authorization
	err := r.db.WithContext(ctx).
		Preload("Authorized").
		Preload("Authorized.Role").
		Where("usuario_autorizador = ? AND es_activo = ?", authorizerID, true).
		Order("nivel_jerarquia ASC, usuario_autorizado ASC").
		Find(&edges).Error
	return edges, err
}
