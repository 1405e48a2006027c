package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/service"
	"github.com/xuri/excelize/v2"
)

// RequisitionHandler exposes the requisition lifecycle over HTTP.
type RequisitionHandler struct {
	svc *service.RequisitionService
}

func NewRequisitionHandler(svc *service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{svc: svc}
}

// Create handles POST /requisitions.
func (h *RequisitionHandler) Create(c *gin.Context) {
	var in service.CreateRequisitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := h.svc.Create(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, req)
}

// Get handles GET /requisitions/:id.
func (h *RequisitionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.GetByID(c.Request.Context(), id, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, req)
}

// ListMine handles GET /requisitions/my-requisitions.
func (h *RequisitionHandler) ListMine(c *gin.Context) {
	page, err := h.svc.ListMine(c.Request.Context(), GetUserID(c), listFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, page)
}

// PendingActions handles GET /requisitions/pending-actions.
func (h *RequisitionHandler) PendingActions(c *gin.Context) {
	p, limit := GetPagination(c)
	page, err := h.svc.PendingActions(c.Request.Context(), GetUserID(c), p, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, page)
}

type decisionBody struct {
	Comment string `json:"comentario"`
}

// ReviewApprove handles POST /requisitions/:id/review/approve.
func (h *RequisitionHandler) ReviewApprove(c *gin.Context) {
	h.decide(c, h.svc.ReviewApprove)
}

// ReviewReject handles POST /requisitions/:id/review/reject.
func (h *RequisitionHandler) ReviewReject(c *gin.Context) {
	h.decide(c, h.svc.ReviewReject)
}

// ManagementApprove handles POST /requisitions/:id/management/approve.
func (h *RequisitionHandler) ManagementApprove(c *gin.Context) {
	h.decide(c, h.svc.ManagementApprove)
}

// ManagementReject handles POST /requisitions/:id/management/reject.
func (h *RequisitionHandler) ManagementReject(c *gin.Context) {
	h.decide(c, h.svc.ManagementReject)
}

func (h *RequisitionHandler) decide(c *gin.Context, fn func(ctx context.Context, requisitionID, userID uint, comment string) (*entity.Requisition, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body decisionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	req, err := fn(c.Request.Context(), id, GetUserID(c), body.Comment)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, req)
}

// Update handles PUT /requisitions/:id.
func (h *RequisitionHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in service.UpdateRequisitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := h.svc.Update(c.Request.Context(), id, GetUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, req)
}

// Delete handles DELETE /requisitions/:id.
func (h *RequisitionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, GetUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// Export handles GET /requisitions/export. It writes the caller's
// requisitions as an xlsx workbook.
func (h *RequisitionHandler) Export(c *gin.Context) {
	f := listFilter(c)
	f.Page = 1
	f.Limit = 1000
	page, err := h.svc.ListMine(c.Request.Context(), GetUserID(c), f)
	if err != nil {
		RespondError(c, err)
		return
	}

	wb := excelize.NewFile()
	defer wb.Close()
	sheet := "Requisiciones"
	wb.SetSheetName("Sheet1", sheet)
	headers := []string{"Numero", "Estado", "Empresa", "Proyecto", "Items", "Creada"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		wb.SetCellValue(sheet, cell, hdr)
	}
	for row, req := range page.Items {
		companyName := ""
		if req.Company != nil {
			companyName = req.Company.Name
		}
		projectName := ""
		if req.Project != nil {
			projectName = req.Project.Name
		}
		values := []interface{}{
			req.RequisitionNumber,
			req.Status,
			companyName,
			projectName,
			len(req.Items),
			req.CreatedAt.Format("2006-01-02"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			wb.SetCellValue(sheet, cell, v)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=requisiciones_%s.xlsx", time.Now().Format("20060102")))
	if err := wb.Write(c.Writer); err != nil {
		InternalError(c, "failed to write workbook")
	}
}

func listFilter(c *gin.Context) service.ListFilter {
	page, limit := GetPagination(c)
	f := service.ListFilter{Page: page, Limit: limit}

	if s := c.Query("status"); s != "" {
		f.Statuses = strings.Split(s, ",")
	}
	if p := c.Query("project_id"); p != "" {
		if v, err := strconv.ParseUint(p, 10, 32); err == nil {
			id := uint(v)
			f.ProjectID = &id
		}
	}
	if d := c.Query("from"); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			f.FromDate = &t
		}
	}
	if d := c.Query("to"); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			f.ToDate = &end
		}
	}
	return f
}
