package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/purchasing/service"
)

// PurchaseOrderHandler exposes purchase order issuing and receiving.
type PurchaseOrderHandler struct {
	svc *service.PurchaseOrderService
}

func NewPurchaseOrderHandler(svc *service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{svc: svc}
}

// Create handles POST /orders.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var in service.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	order, err := h.svc.CreateFromRequisition(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, order)
}

// Get handles GET /orders/:id.
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetByID(c.Request.Context(), id, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}

// List handles GET /orders, optionally filtered by requisition_id.
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	page, limit := GetPagination(c)

	var requisitionID *uint
	if r := c.Query("requisition_id"); r != "" {
		v, err := strconv.ParseUint(r, 10, 32)
		if err != nil {
			BadRequest(c, "invalid requisition_id")
			return
		}
		id := uint(v)
		requisitionID = &id
	}

	result, err := h.svc.List(c.Request.Context(), GetUserID(c), requisitionID, page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Receive handles POST /orders/:id/receive.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.MarkReceived(c.Request.Context(), id, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}
