package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/purchasing/service"
)

// Handlers bundles the purchasing HTTP handlers.
type Handlers struct {
	Requisition   *RequisitionHandler
	PurchaseOrder *PurchaseOrderHandler
	Authorization *AuthorizationHandler
}

func NewHandlers(svcs *service.Services) *Handlers {
	return &Handlers{
		Requisition:   NewRequisitionHandler(svcs.Requisition),
		PurchaseOrder: NewPurchaseOrderHandler(svcs.PurchaseOrder),
		Authorization: NewAuthorizationHandler(svcs.Authorization),
	}
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError maps service error kinds onto HTTP statuses. Unknown
// errors are reported as internal without leaking their message.
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		Conflict(c, err.Error())
	default:
		InternalError(c, "internal server error")
	}
}

// GetUserID returns the authenticated user id set by the JWT middleware.
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	if id, ok := v.(uint); ok {
		return id
	}
	return 0
}

// GetPagination reads page and limit query params with the defaults the
// clients expect. Limit is capped at 100.
func GetPagination(c *gin.Context) (page, limit int) {
	page = 1
	limit = 10

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	return page, limit
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
