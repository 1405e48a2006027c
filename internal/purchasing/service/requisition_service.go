package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequisitionService owns the requisition lifecycle: numbered creation,
// the review and management approval chain, edits with status reset,
// and the audit trail written alongside every committed transition.
type RequisitionService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	auth   *AuthorizationService
	logger *zap.Logger
}

func NewRequisitionService(db *gorm.DB, repos *repository.Repositories, auth *AuthorizationService, logger *zap.Logger) *RequisitionService {
	return &RequisitionService{db: db, repos: repos, auth: auth, logger: logger}
}

type ItemInput struct {
	MaterialID  uint    `json:"material_id" binding:"required"`
	Quantity    float64 `json:"cantidad" binding:"required,gt=0"`
	Observation string  `json:"observacion"`
}

type CreateRequisitionInput struct {
	CompanyID uint        `json:"company_id" binding:"required"`
	ProjectID *uint       `json:"project_id"`
	Items     []ItemInput `json:"items" binding:"required,dive"`
}

type UpdateRequisitionInput struct {
	Items []ItemInput `json:"items" binding:"required,dive"`
}

// Page is the uniform paginated result shape.
type Page struct {
	Items      []entity.Requisition `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int                  `json:"total_pages"`
}

func newPage(items []entity.Requisition, total int64, page, limit int) *Page {
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// Create validates the creator's role and the company scope, then in a
// single transaction takes the next sequential number, writes the header
// with its items and the creation log entry. The sequence row is locked
// for the duration so concurrent creators get distinct numbers.
func (s *RequisitionService) Create(ctx context.Context, userID uint, in CreateRequisitionInput) (*entity.Requisition, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: user %s is inactive", ErrForbidden, user.Username)
	}
	switch user.Role.Category() {
	case entity.RoleCategoryApprover, entity.RoleCategoryPurchasing:
		return nil, fmt.Errorf("%w: role %s may not create requisitions", ErrForbidden, user.Role.Name)
	}

	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: a requisition needs at least one item", ErrBadRequest)
	}

	company, err := s.repos.Lookup.FindCompany(ctx, in.CompanyID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if company.RequiresProject && in.ProjectID == nil {
		return nil, fmt.Errorf("%w: company %s requires a project", ErrBadRequest, company.Name)
	}

	centerID, err := s.repos.Lookup.OperationCenterID(ctx, in.CompanyID, in.ProjectID)
	if err != nil {
		return nil, translateDBError(err)
	}
	codeID, err := s.repos.Lookup.ProjectCodeID(ctx, in.CompanyID, in.ProjectID)
	if err != nil {
		return nil, translateDBError(err)
	}

	var created entity.Requisition
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.repos.Sequence.NextNumber(ctx, tx, in.CompanyID, in.ProjectID)
		if err != nil {
			return err
		}

		created = entity.Requisition{
			RequisitionNumber: number,
			CompanyID:         in.CompanyID,
			ProjectID:         in.ProjectID,
			OperationCenterID: centerID,
			ProjectCodeID:     codeID,
			CreatedBy:         userID,
			Status:            entity.StatusPendiente,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := s.insertItems(tx, created.RequisitionID, in.Items); err != nil {
			return err
		}
		return s.writeLog(tx, created.RequisitionID, userID, entity.ActionCreate, nil, entity.StatusPendiente, "")
	})
	if err != nil {
		return nil, translateDBError(err)
	}

	s.logger.Info("requisition created",
		zap.String("number", created.RequisitionNumber),
		zap.Uint("user_id", userID))
	return s.repos.Requisition.FindByID(ctx, created.RequisitionID)
}

// GetByID returns the full requisition with items and history. Only the
// creator and users holding a direct active edge over the creator may see it.
func (s *RequisitionService) GetByID(ctx context.Context, requisitionID, userID uint) (*entity.Requisition, error) {
	req, err := s.repos.Requisition.FindByID(ctx, requisitionID)
	if err != nil {
		return nil, translateDBError(err)
	}
	ok, err := s.canView(ctx, req, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no access to requisition %s", ErrForbidden, req.RequisitionNumber)
	}
	return req, nil
}

func (s *RequisitionService) canView(ctx context.Context, req *entity.Requisition, userID uint) (bool, error) {
	if req.CreatedBy == userID {
		return true, nil
	}
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return false, translateDBError(err)
	}
	if user.Role.Category() == entity.RoleCategoryPurchasing && purchasingViewable(req.Status) {
		return true, nil
	}
	for _, t := range []string{entity.AuthorizationRevision, entity.AuthorizationAprobacion} {
		ok, err := s.auth.IsAuthorizer(ctx, userID, req.CreatedBy, t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// purchasingViewable lists the statuses purchasing may inspect to issue
// and track orders. Anything still inside the approval chain stays
// between the creator and their authorizers.
func purchasingViewable(status string) bool {
	switch status {
	case entity.StatusAprobadaGerencia, entity.StatusEnProceso, entity.StatusCompletada:
		return true
	}
	return false
}

// ListFilter narrows ListMine and export queries.
type ListFilter struct {
	Statuses  []string
	ProjectID *uint
	FromDate  *time.Time
	ToDate    *time.Time
	Page      int
	Limit     int
}

// ListMine returns the user's own requisitions, newest first.
func (s *RequisitionService) ListMine(ctx context.Context, userID uint, f ListFilter) (*Page, error) {
	q := repository.ListQuery{
		CreatorIDs: []uint{userID},
		Statuses:   f.Statuses,
		ProjectID:  f.ProjectID,
		FromDate:   f.FromDate,
		ToDate:     f.ToDate,
		Page:       f.Page,
		Limit:      f.Limit,
	}
	items, total, err := s.repos.Requisition.List(ctx, q)
	if err != nil {
		return nil, translateDBError(err)
	}
	return newPage(items, total, f.Page, f.Limit), nil
}

// PendingActions returns the requisitions waiting on the user, scoped by
// what their role can do next. Reviewers and approvers only see work from
// users they directly authorize; purchasing sees every approved one.
func (s *RequisitionService) PendingActions(ctx context.Context, userID uint, page, limit int) (*Page, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}

	q := repository.ListQuery{Page: page, Limit: limit, OldestFirst: true}
	switch user.Role.Category() {
	case entity.RoleCategoryReviewer:
		subs, err := s.auth.SubordinateIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return newPage(nil, 0, page, limit), nil
		}
		q.CreatorIDs = subs
		q.Statuses = []string{entity.StatusPendiente, entity.StatusEnRevision}
	case entity.RoleCategoryApprover:
		subs, err := s.auth.SubordinateIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return newPage(nil, 0, page, limit), nil
		}
		q.CreatorIDs = subs
		q.Statuses = []string{entity.StatusAprobadaRevisor}
	case entity.RoleCategoryPurchasing:
		q.Statuses = []string{entity.StatusAprobadaGerencia}
	default:
		q.CreatorIDs = []uint{userID}
		q.Statuses = []string{entity.StatusRechazadaRevisor, entity.StatusRechazadaGerencia}
	}

	items, total, err := s.repos.Requisition.List(ctx, q)
	if err != nil {
		return nil, translateDBError(err)
	}
	return newPage(items, total, page, limit), nil
}

// ReviewApprove moves a reviewable requisition to aprobada_revisor. The
// caller must hold an active revision edge over the creator.
func (s *RequisitionService) ReviewApprove(ctx context.Context, requisitionID, userID uint, comment string) (*entity.Requisition, error) {
	return s.transition(ctx, requisitionID, userID, transitionSpec{
		action:    entity.ActionReviewApprove,
		newStatus: entity.StatusAprobadaRevisor,
		edgeType:  entity.AuthorizationRevision,
		from:      entity.Reviewable,
		comment:   comment,
	})
}

// ReviewReject moves a reviewable requisition to rechazada_revisor.
// A comment explaining the rejection is mandatory.
func (s *RequisitionService) ReviewReject(ctx context.Context, requisitionID, userID uint, comment string) (*entity.Requisition, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: a rejection requires a comment", ErrBadRequest)
	}
	return s.transition(ctx, requisitionID, userID, transitionSpec{
		action:    entity.ActionReviewReject,
		newStatus: entity.StatusRechazadaRevisor,
		edgeType:  entity.AuthorizationRevision,
		from:      entity.Reviewable,
		comment:   comment,
	})
}

// ManagementApprove moves aprobada_revisor to aprobada_gerencia. The
// approver role alone carries the authority; no edge is consulted.
func (s *RequisitionService) ManagementApprove(ctx context.Context, requisitionID, userID uint, comment string) (*entity.Requisition, error) {
	return s.transition(ctx, requisitionID, userID, transitionSpec{
		action:       entity.ActionManagerApprove,
		newStatus:    entity.StatusAprobadaGerencia,
		requiredRole: entity.RoleCategoryApprover,
		from:         func(st string) bool { return st == entity.StatusAprobadaRevisor },
		comment:      comment,
	})
}

// ManagementReject moves aprobada_revisor to rechazada_gerencia. Only a
// reviewed requisition can be rejected here, and a comment is mandatory.
func (s *RequisitionService) ManagementReject(ctx context.Context, requisitionID, userID uint, comment string) (*entity.Requisition, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: a rejection requires a comment", ErrBadRequest)
	}
	return s.transition(ctx, requisitionID, userID, transitionSpec{
		action:       entity.ActionManagerReject,
		newStatus:    entity.StatusRechazadaGerencia,
		requiredRole: entity.RoleCategoryApprover,
		from:         func(st string) bool { return st == entity.StatusAprobadaRevisor },
		comment:      comment,
	})
}

type transitionSpec struct {
	action       string
	newStatus    string
	edgeType     string
	requiredRole entity.RoleCategory
	from         func(status string) bool
	comment      string
}

func (s *RequisitionService) transition(ctx context.Context, requisitionID, userID uint, spec transitionSpec) (*entity.Requisition, error) {
	req, err := s.repos.Requisition.FindHeader(ctx, requisitionID)
	if err != nil {
		return nil, translateDBError(err)
	}

	if spec.requiredRole != "" {
		user, err := s.repos.User.FindByID(ctx, userID)
		if err != nil {
			return nil, translateDBError(err)
		}
		if user.Role.Category() != spec.requiredRole {
			return nil, fmt.Errorf("%w: role %s may not perform %s", ErrForbidden, user.Role.Name, spec.action)
		}
	}
	if spec.edgeType != "" {
		ok, err := s.auth.IsAuthorizer(ctx, userID, req.CreatedBy, spec.edgeType)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user %d does not authorize the creator of %s", ErrForbidden, userID, req.RequisitionNumber)
		}
	}
	if !spec.from(req.Status) {
		return nil, fmt.Errorf("%w: %s cannot be applied while in status %s", ErrInvalidState, spec.action, req.Status)
	}

	prev := req.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Requisition{}).
			Where("requisition_id = ?", requisitionID).
			Update("status", spec.newStatus).Error; err != nil {
			return err
		}
		return s.writeLog(tx, requisitionID, userID, spec.action, &prev, spec.newStatus, spec.comment)
	})
	if err != nil {
		return nil, translateDBError(err)
	}

	s.logger.Info("requisition transitioned",
		zap.Uint("requisition_id", requisitionID),
		zap.String("action", spec.action),
		zap.String("from", prev),
		zap.String("to", spec.newStatus))
	return s.repos.Requisition.FindByID(ctx, requisitionID)
}

// Update replaces the item list of an editable requisition and resets it
// to pendiente so the chain starts over. Only the creator may edit, and
// only while pendiente or rejected at either stage.
func (s *RequisitionService) Update(ctx context.Context, requisitionID, userID uint, in UpdateRequisitionInput) (*entity.Requisition, error) {
	req, err := s.repos.Requisition.FindHeader(ctx, requisitionID)
	if err != nil {
		return nil, translateDBError(err)
	}
	if req.CreatedBy != userID {
		return nil, fmt.Errorf("%w: only the creator may edit %s", ErrForbidden, req.RequisitionNumber)
	}
	if !entity.Editable(req.Status) {
		return nil, fmt.Errorf("%w: requisition in status %s cannot be edited", ErrInvalidState, req.Status)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: a requisition needs at least one item", ErrBadRequest)
	}

	prev := req.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("requisition_id = ?", requisitionID).
			Delete(&entity.RequisitionItem{}).Error; err != nil {
			return err
		}
		if err := s.insertItems(tx, requisitionID, in.Items); err != nil {
			return err
		}
		if err := tx.Model(&entity.Requisition{}).
			Where("requisition_id = ?", requisitionID).
			Update("status", entity.StatusPendiente).Error; err != nil {
			return err
		}
		return s.writeLog(tx, requisitionID, userID, entity.ActionEdit, &prev, entity.StatusPendiente, "")
	})
	if err != nil {
		return nil, translateDBError(err)
	}
	return s.repos.Requisition.FindByID(ctx, requisitionID)
}

// Delete removes a requisition with its items and logs. Only the creator
// may delete, and only while still pendiente.
func (s *RequisitionService) Delete(ctx context.Context, requisitionID, userID uint) error {
	req, err := s.repos.Requisition.FindHeader(ctx, requisitionID)
	if err != nil {
		return translateDBError(err)
	}
	if req.CreatedBy != userID {
		return fmt.Errorf("%w: only the creator may delete %s", ErrForbidden, req.RequisitionNumber)
	}
	if req.Status != entity.StatusPendiente {
		return fmt.Errorf("%w: only a pendiente requisition can be deleted, got %s", ErrBadRequest, req.Status)
	}
	if err := s.repos.Requisition.Delete(ctx, requisitionID); err != nil {
		return translateDBError(err)
	}
	s.logger.Info("requisition deleted",
		zap.String("number", req.RequisitionNumber),
		zap.Uint("user_id", userID))
	return nil
}

func (s *RequisitionService) insertItems(tx *gorm.DB, requisitionID uint, in []ItemInput) error {
	items := make([]entity.RequisitionItem, len(in))
	for i, it := range in {
		items[i] = entity.RequisitionItem{
			RequisitionID: requisitionID,
			ItemNumber:    i + 1,
			MaterialID:    it.MaterialID,
			Quantity:      it.Quantity,
			Observation:   it.Observation,
		}
	}
	return tx.Create(&items).Error
}

func (s *RequisitionService) writeLog(tx *gorm.DB, requisitionID, userID uint, action string, prev *string, newStatus, comment string) error {
	return tx.Create(&entity.RequisitionLog{
		RequisitionID:  requisitionID,
		UserID:         userID,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      newStatus,
		Comments:       comment,
	}).Error
}
