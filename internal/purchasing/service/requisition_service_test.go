package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/grupocyc/compras/internal/purchasing/service"
	"github.com/grupocyc/compras/internal/purchasing/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svcs     *service.Services
	creator  *entity.User
	director *entity.User
	gerente  *entity.User
	compras  *entity.User
	stranger *entity.User
	company  *entity.Company
	material *entity.Material
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	roles := testutil.SeedRoles(t, db)

	f := &fixture{
		db:       db,
		creator:  testutil.SeedUser(t, db, "residente1", roles["Residente"].RoleID),
		director: testutil.SeedUser(t, db, "director1", roles["Director de Obra"].RoleID),
		gerente:  testutil.SeedUser(t, db, "gerente1", roles["Gerencia"].RoleID),
		compras:  testutil.SeedUser(t, db, "compras1", roles["Compras"].RoleID),
		stranger: testutil.SeedUser(t, db, "residente2", roles["Residente"].RoleID),
		company:  testutil.SeedCompany(t, db, "Constructora", "CB", false),
		material: testutil.SeedMaterial(t, db, "MAT-001", "Cemento gris"),
	}
	testutil.SeedAuthorization(t, db, f.director.UserID, f.creator.UserID, entity.AuthorizationRevision)
	testutil.SeedAuthorization(t, db, f.gerente.UserID, f.creator.UserID, entity.AuthorizationAprobacion)

	repos := repository.NewRepositories(db)
	f.svcs = service.NewServices(db, repos, nil, zap.NewNop())
	return f
}

func (f *fixture) createInput() service.CreateRequisitionInput {
	return service.CreateRequisitionInput{
		CompanyID: f.company.CompanyID,
		Items: []service.ItemInput{
			{MaterialID: f.material.MaterialID, Quantity: 10, Observation: "urgente"},
			{MaterialID: f.material.MaterialID, Quantity: 2.5},
		},
	}
}

func (f *fixture) createRequisition(t *testing.T) *entity.Requisition {
	t.Helper()
	req, err := f.svcs.Requisition.Create(context.Background(), f.creator.UserID, f.createInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return req
}

func TestCreateRequisition(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)

	if req.RequisitionNumber != "CB-001" {
		t.Errorf("number = %q, want CB-001", req.RequisitionNumber)
	}
	if req.Status != entity.StatusPendiente {
		t.Errorf("status = %q, want pendiente", req.Status)
	}
	if len(req.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(req.Items))
	}
	for i, item := range req.Items {
		if item.ItemNumber != i+1 {
			t.Errorf("item %d number = %d, want %d", i, item.ItemNumber, i+1)
		}
	}
	if len(req.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(req.Logs))
	}
	log := req.Logs[0]
	if log.Action != entity.ActionCreate {
		t.Errorf("log action = %q, want %q", log.Action, entity.ActionCreate)
	}
	if log.PreviousStatus != nil {
		t.Errorf("log previous status = %v, want nil", *log.PreviousStatus)
	}
	if log.NewStatus != entity.StatusPendiente {
		t.Errorf("log new status = %q, want pendiente", log.NewStatus)
	}
}

func TestCreateForbiddenRoles(t *testing.T) {
	f := newFixture(t)
	for _, user := range []*entity.User{f.gerente, f.compras} {
		_, err := f.svcs.Requisition.Create(context.Background(), user.UserID, f.createInput())
		if !errors.Is(err, service.ErrForbidden) {
			t.Errorf("Create as %s: err = %v, want ErrForbidden", user.Username, err)
		}
	}
}

func TestCreateCompanyRequiresProject(t *testing.T) {
	f := newFixture(t)
	company := testutil.SeedCompany(t, f.db, "Inversiones", "IV", true)

	in := f.createInput()
	in.CompanyID = company.CompanyID
	_, err := f.svcs.Requisition.Create(context.Background(), f.creator.UserID, in)
	if !errors.Is(err, service.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}

	project := testutil.SeedProject(t, f.db, company.CompanyID, "Torre Sur", "TS")
	in.ProjectID = &project.ProjectID
	req, err := f.svcs.Requisition.Create(context.Background(), f.creator.UserID, in)
	if err != nil {
		t.Fatalf("Create with project: %v", err)
	}
	if req.RequisitionNumber != "TS-001" {
		t.Errorf("number = %q, want TS-001", req.RequisitionNumber)
	}
}

func TestCreateNoItems(t *testing.T) {
	f := newFixture(t)
	in := f.createInput()
	in.Items = nil
	_, err := f.svcs.Requisition.Create(context.Background(), f.creator.UserID, in)
	if !errors.Is(err, service.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestCreateFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	// A company with an operation center but no prefix makes the numbering
	// step fail inside the transaction.
	company := &entity.Company{Name: "SinPrefijo", TaxID: "900SP", Active: true}
	if err := f.db.Create(company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	center := &entity.OperationCenter{CompanyID: company.CompanyID, Code: "SP1"}
	if err := f.db.Create(center).Error; err != nil {
		t.Fatalf("seed center: %v", err)
	}

	in := f.createInput()
	in.CompanyID = company.CompanyID
	_, err := f.svcs.Requisition.Create(context.Background(), f.creator.UserID, in)
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var reqs, logs int64
	f.db.Model(&entity.Requisition{}).Count(&reqs)
	f.db.Model(&entity.RequisitionLog{}).Count(&logs)
	if reqs != 0 || logs != 0 {
		t.Errorf("leftover rows after failed create: %d requisitions, %d logs", reqs, logs)
	}
}

func TestReviewApprove(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	updated, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, "revisada")
	if err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}
	if updated.Status != entity.StatusAprobadaRevisor {
		t.Errorf("status = %q, want aprobada_revisor", updated.Status)
	}
	last := updated.Logs[len(updated.Logs)-1]
	if last.Action != entity.ActionReviewApprove {
		t.Errorf("log action = %q, want %q", last.Action, entity.ActionReviewApprove)
	}
	if last.PreviousStatus == nil || *last.PreviousStatus != entity.StatusPendiente {
		t.Errorf("log previous status = %v, want pendiente", last.PreviousStatus)
	}

	// A second approval hits the wrong state.
	_, err = f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, "")
	if !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("second approve err = %v, want ErrInvalidState", err)
	}
}

func TestReviewWithoutEdge(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)

	_, err := f.svcs.Requisition.ReviewApprove(context.Background(), req.RequisitionID, f.stranger.UserID, "")
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestReviewRejectRequiresComment(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	_, err := f.svcs.Requisition.ReviewReject(ctx, req.RequisitionID, f.director.UserID, "  ")
	if !errors.Is(err, service.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}

	updated, err := f.svcs.Requisition.ReviewReject(ctx, req.RequisitionID, f.director.UserID, "faltan cantidades")
	if err != nil {
		t.Fatalf("ReviewReject: %v", err)
	}
	if updated.Status != entity.StatusRechazadaRevisor {
		t.Errorf("status = %q, want rechazada_revisor", updated.Status)
	}
	last := updated.Logs[len(updated.Logs)-1]
	if last.Comments != "faltan cantidades" {
		t.Errorf("log comment = %q", last.Comments)
	}
}

func TestManagementApprove(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	// Management cannot act before the review stage.
	_, err := f.svcs.Requisition.ManagementApprove(ctx, req.RequisitionID, f.gerente.UserID, "")
	if !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("premature approve err = %v, want ErrInvalidState", err)
	}

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}

	updated, err := f.svcs.Requisition.ManagementApprove(ctx, req.RequisitionID, f.gerente.UserID, "presupuesto ok")
	if err != nil {
		t.Fatalf("ManagementApprove: %v", err)
	}
	if updated.Status != entity.StatusAprobadaGerencia {
		t.Errorf("status = %q, want aprobada_gerencia", updated.Status)
	}
}

func TestManagementApproveNeedsApproverRole(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}

	// The aprobacion edge alone is not enough without the role.
	testutil.SeedAuthorization(t, f.db, f.director.UserID, f.creator.UserID, entity.AuthorizationAprobacion)
	_, err := f.svcs.Requisition.ManagementApprove(ctx, req.RequisitionID, f.director.UserID, "")
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestManagementRejectRequiresComment(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}

	_, err := f.svcs.Requisition.ManagementReject(ctx, req.RequisitionID, f.gerente.UserID, "")
	if !errors.Is(err, service.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}

	updated, err := f.svcs.Requisition.ManagementReject(ctx, req.RequisitionID, f.gerente.UserID, "sin presupuesto")
	if err != nil {
		t.Fatalf("ManagementReject: %v", err)
	}
	if updated.Status != entity.StatusRechazadaGerencia {
		t.Errorf("status = %q, want rechazada_gerencia", updated.Status)
	}
}

func TestUpdateResetsStatusAndReplacesItems(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	if _, err := f.svcs.Requisition.ReviewReject(ctx, req.RequisitionID, f.director.UserID, "cambiar material"); err != nil {
		t.Fatalf("ReviewReject: %v", err)
	}

	other := testutil.SeedMaterial(t, f.db, "MAT-002", "Arena lavada")
	updated, err := f.svcs.Requisition.Update(ctx, req.RequisitionID, f.creator.UserID, service.UpdateRequisitionInput{
		Items: []service.ItemInput{
			{MaterialID: other.MaterialID, Quantity: 7},
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != entity.StatusPendiente {
		t.Errorf("status = %q, want pendiente", updated.Status)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(updated.Items))
	}
	if updated.Items[0].ItemNumber != 1 || updated.Items[0].MaterialID != other.MaterialID {
		t.Errorf("item = %+v, want number 1 of MAT-002", updated.Items[0])
	}
	last := updated.Logs[len(updated.Logs)-1]
	if last.Action != entity.ActionEdit {
		t.Errorf("log action = %q, want %q", last.Action, entity.ActionEdit)
	}
	if last.PreviousStatus == nil || *last.PreviousStatus != entity.StatusRechazadaRevisor {
		t.Errorf("log previous status = %v, want rechazada_revisor", last.PreviousStatus)
	}
}

func TestUpdateGuards(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()
	in := service.UpdateRequisitionInput{Items: []service.ItemInput{{MaterialID: f.material.MaterialID, Quantity: 1}}}

	if _, err := f.svcs.Requisition.Update(ctx, req.RequisitionID, f.stranger.UserID, in); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("stranger update err = %v, want ErrForbidden", err)
	}

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}
	if _, err := f.svcs.Requisition.Update(ctx, req.RequisitionID, f.creator.UserID, in); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("approved update err = %v, want ErrInvalidState", err)
	}
}

func TestDeleteRules(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	if err := f.svcs.Requisition.Delete(ctx, req.RequisitionID, f.stranger.UserID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("stranger delete err = %v, want ErrForbidden", err)
	}

	if err := f.svcs.Requisition.Delete(ctx, req.RequisitionID, f.creator.UserID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int64
	f.db.Model(&entity.RequisitionItem{}).Where("requisition_id = ?", req.RequisitionID).Count(&n)
	if n != 0 {
		t.Errorf("leftover items after delete: %d", n)
	}

	// Once reviewed, deletion is rejected as a bad request.
	req2 := f.createRequisition(t)
	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req2.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}
	if err := f.svcs.Requisition.Delete(ctx, req2.RequisitionID, f.creator.UserID); !errors.Is(err, service.ErrBadRequest) {
		t.Errorf("reviewed delete err = %v, want ErrBadRequest", err)
	}
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	for _, user := range []*entity.User{f.creator, f.director, f.gerente} {
		if _, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, user.UserID); err != nil {
			t.Errorf("GetByID as %s: %v", user.Username, err)
		}
	}
	for _, user := range []*entity.User{f.stranger, f.compras} {
		if _, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, user.UserID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("GetByID as %s err = %v, want ErrForbidden", user.Username, err)
		}
	}
}

func TestPurchasingViewScopedToApproved(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	// While the approval chain runs, purchasing is just another stranger.
	if _, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, f.compras.UserID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("compras GetByID on pendiente err = %v, want ErrForbidden", err)
	}

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}
	if _, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, f.compras.UserID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("compras GetByID on aprobada_revisor err = %v, want ErrForbidden", err)
	}

	if _, err := f.svcs.Requisition.ManagementApprove(ctx, req.RequisitionID, f.gerente.UserID, ""); err != nil {
		t.Fatalf("ManagementApprove: %v", err)
	}
	if _, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, f.compras.UserID); err != nil {
		t.Errorf("compras GetByID on aprobada_gerencia: %v", err)
	}
}

func TestPendingActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req1 := f.createRequisition(t)
	req2 := f.createRequisition(t)

	if _, err := f.svcs.Requisition.ReviewApprove(ctx, req2.RequisitionID, f.director.UserID, ""); err != nil {
		t.Fatalf("ReviewApprove: %v", err)
	}

	directorPage, err := f.svcs.Requisition.PendingActions(ctx, f.director.UserID, 1, 10)
	if err != nil {
		t.Fatalf("director PendingActions: %v", err)
	}
	if directorPage.Total != 1 || directorPage.Items[0].RequisitionID != req1.RequisitionID {
		t.Errorf("director sees %d items, want only the pendiente one", directorPage.Total)
	}

	gerentePage, err := f.svcs.Requisition.PendingActions(ctx, f.gerente.UserID, 1, 10)
	if err != nil {
		t.Fatalf("gerente PendingActions: %v", err)
	}
	if gerentePage.Total != 1 || gerentePage.Items[0].RequisitionID != req2.RequisitionID {
		t.Errorf("gerente sees %d items, want only the reviewed one", gerentePage.Total)
	}

	comprasPage, err := f.svcs.Requisition.PendingActions(ctx, f.compras.UserID, 1, 10)
	if err != nil {
		t.Fatalf("compras PendingActions: %v", err)
	}
	if comprasPage.Total != 0 {
		t.Errorf("compras sees %d items before management approval, want 0", comprasPage.Total)
	}

	if _, err := f.svcs.Requisition.ManagementApprove(ctx, req2.RequisitionID, f.gerente.UserID, ""); err != nil {
		t.Fatalf("ManagementApprove: %v", err)
	}
	comprasPage, err = f.svcs.Requisition.PendingActions(ctx, f.compras.UserID, 1, 10)
	if err != nil {
		t.Fatalf("compras PendingActions: %v", err)
	}
	if comprasPage.Total != 1 {
		t.Errorf("compras sees %d items after management approval, want 1", comprasPage.Total)
	}

	// The creator's queue holds their rejected work.
	if _, err := f.svcs.Requisition.ReviewReject(ctx, req1.RequisitionID, f.director.UserID, "revisar"); err != nil {
		t.Fatalf("ReviewReject: %v", err)
	}
	creatorPage, err := f.svcs.Requisition.PendingActions(ctx, f.creator.UserID, 1, 10)
	if err != nil {
		t.Fatalf("creator PendingActions: %v", err)
	}
	if creatorPage.Total != 1 || creatorPage.Items[0].RequisitionID != req1.RequisitionID {
		t.Errorf("creator sees %d items, want the rejected one", creatorPage.Total)
	}
}

func TestListMinePagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.createRequisition(t)
	}

	page, err := f.svcs.Requisition.ListMine(context.Background(), f.creator.UserID, service.ListFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Errorf("page = total %d, items %d, pages %d; want 3, 2, 2", page.Total, len(page.Items), page.TotalPages)
	}
}

func TestConcurrentDecisionsLastWriteWins(t *testing.T) {
	f := newFixture(t)
	req := f.createRequisition(t)
	ctx := context.Background()

	director2 := testutil.SeedUser(t, f.db, "director2", f.director.RoleID)
	testutil.SeedAuthorization(t, f.db, director2.UserID, f.creator.UserID, entity.AuthorizationRevision)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.svcs.Requisition.ReviewApprove(ctx, req.RequisitionID, f.director.UserID, "")
	}()
	go func() {
		defer wg.Done()
		f.svcs.Requisition.ReviewReject(ctx, req.RequisitionID, director2.UserID, "no procede")
	}()
	wg.Wait()

	final, err := f.svcs.Requisition.GetByID(ctx, req.RequisitionID, f.creator.UserID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	// Whatever interleaving happened, the header must agree with the
	// newest log entry and every committed transition must be logged.
	var logs []entity.RequisitionLog
	if err := f.db.Where("requisition_id = ?", req.RequisitionID).Order("log_id ASC").Find(&logs).Error; err != nil {
		t.Fatalf("load logs: %v", err)
	}
	if len(logs) < 2 {
		t.Fatalf("logs = %d, want at least create plus one decision", len(logs))
	}
	last := logs[len(logs)-1]
	if final.Status != last.NewStatus {
		t.Errorf("status %q disagrees with newest log entry %q", final.Status, last.NewStatus)
	}
}
