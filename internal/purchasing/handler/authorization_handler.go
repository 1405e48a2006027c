package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/purchasing/service"
)

// AuthorizationHandler exposes the caller's authorization edges.
type AuthorizationHandler struct {
	svc *service.AuthorizationService
}

func NewAuthorizationHandler(svc *service.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{svc: svc}
}

// ListGranted handles GET /authorizations/granted. It returns the users
// the caller may review or approve for.
func (h *AuthorizationHandler) ListGranted(c *gin.Context) {
	edges, err := h.svc.ListGranted(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, edges)
}
