package handler_test

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/handler"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/grupocyc/compras/internal/purchasing/service"
	"github.com/grupocyc/compras/internal/purchasing/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	creator  *entity.User
	director *entity.User
	gerente  *entity.User
	compras  *entity.User
	stranger *entity.User
	company  *entity.Company
	material *entity.Material
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	roles := testutil.SeedRoles(t, db)

	env := &apiEnv{
		db:       db,
		creator:  testutil.SeedUser(t, db, "residente1", roles["Residente"].RoleID),
		director: testutil.SeedUser(t, db, "director1", roles["Director de Obra"].RoleID),
		gerente:  testutil.SeedUser(t, db, "gerente1", roles["Gerencia"].RoleID),
		compras:  testutil.SeedUser(t, db, "compras1", roles["Compras"].RoleID),
		stranger: testutil.SeedUser(t, db, "residente2", roles["Residente"].RoleID),
		company:  testutil.SeedCompany(t, db, "Constructora", "CB", false),
		material: testutil.SeedMaterial(t, db, "MAT-001", "Cemento gris"),
	}
	testutil.SeedAuthorization(t, db, env.director.UserID, env.creator.UserID, entity.AuthorizationRevision)
	testutil.SeedAuthorization(t, db, env.gerente.UserID, env.creator.UserID, entity.AuthorizationAprobacion)

	repos := repository.NewRepositories(db)
	svcs := service.NewServices(db, repos, nil, zap.NewNop())
	h := handler.NewHandlers(svcs)

	router := testutil.SetupRouter()
	purchases := testutil.AuthGroup(router, "/api/v1/purchases")
	requisitions := purchases.Group("/requisitions")
	{
		requisitions.POST("", h.Requisition.Create)
		requisitions.GET("/my-requisitions", h.Requisition.ListMine)
		requisitions.GET("/pending-actions", h.Requisition.PendingActions)
		requisitions.GET("/export", h.Requisition.Export)
		requisitions.GET("/:id", h.Requisition.Get)
		requisitions.PUT("/:id", h.Requisition.Update)
		requisitions.DELETE("/:id", h.Requisition.Delete)
		requisitions.POST("/:id/review/approve", h.Requisition.ReviewApprove)
		requisitions.POST("/:id/review/reject", h.Requisition.ReviewReject)
		requisitions.POST("/:id/management/approve", h.Requisition.ManagementApprove)
		requisitions.POST("/:id/management/reject", h.Requisition.ManagementReject)
	}
	env.router = router
	return env
}

func (env *apiEnv) token(user *entity.User) string {
	return testutil.GenerateTestToken(user.UserID, user.Name, "")
}

func (env *apiEnv) createBody() map[string]interface{} {
	return map[string]interface{}{
		"company_id": env.company.CompanyID,
		"items": []map[string]interface{}{
			{"material_id": env.material.MaterialID, "cantidad": 5, "observacion": "urgente"},
		},
	}
}

func (env *apiEnv) createRequisition(t *testing.T) uint {
	t.Helper()
	w := testutil.DoRequest(env.router, "POST", "/api/v1/purchases/requisitions", env.createBody(), env.token(env.creator))
	if w.Code != 201 {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	return uint(data["requisition_id"].(float64))
}

func TestCreateRequisitionHTTP(t *testing.T) {
	env := setupAPI(t)

	w := testutil.DoRequest(env.router, "POST", "/api/v1/purchases/requisitions", env.createBody(), env.token(env.creator))
	if w.Code != 201 {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["requisition_number"] != "CB-001" {
		t.Errorf("number = %v, want CB-001", data["requisition_number"])
	}
	if data["status"] != "pendiente" {
		t.Errorf("status = %v, want pendiente", data["status"])
	}
}

func TestCreateRequisitionUnauthenticated(t *testing.T) {
	env := setupAPI(t)
	w := testutil.DoRequest(env.router, "POST", "/api/v1/purchases/requisitions", env.createBody(), "")
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGetRequisitionVisibilityHTTP(t *testing.T) {
	env := setupAPI(t)
	id := env.createRequisition(t)
	path := fmt.Sprintf("/api/v1/purchases/requisitions/%d", id)

	w := testutil.DoRequest(env.router, "GET", path, nil, env.token(env.director))
	if w.Code != 200 {
		t.Errorf("director status = %d, want 200", w.Code)
	}

	w = testutil.DoRequest(env.router, "GET", path, nil, env.token(env.stranger))
	if w.Code != 403 {
		t.Errorf("stranger status = %d, want 403", w.Code)
	}
}

func TestApprovalChainHTTP(t *testing.T) {
	env := setupAPI(t)
	id := env.createRequisition(t)
	base := fmt.Sprintf("/api/v1/purchases/requisitions/%d", id)

	w := testutil.DoRequest(env.router, "POST", base+"/review/approve", map[string]interface{}{"comentario": "ok"}, env.token(env.director))
	if w.Code != 200 {
		t.Fatalf("review approve status = %d, body %s", w.Code, w.Body.String())
	}

	// A repeated review conflicts with the current state.
	w = testutil.DoRequest(env.router, "POST", base+"/review/approve", nil, env.token(env.director))
	if w.Code != 409 {
		t.Errorf("second review status = %d, want 409", w.Code)
	}

	// Rejection without a comment is a bad request.
	w = testutil.DoRequest(env.router, "POST", base+"/management/reject", map[string]interface{}{"comentario": ""}, env.token(env.gerente))
	if w.Code != 400 {
		t.Errorf("empty reject status = %d, want 400", w.Code)
	}

	w = testutil.DoRequest(env.router, "POST", base+"/management/approve", nil, env.token(env.gerente))
	if w.Code != 200 {
		t.Fatalf("management approve status = %d, body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "aprobada_gerencia" {
		t.Errorf("status = %v, want aprobada_gerencia", data["status"])
	}
}

func TestPendingActionsHTTP(t *testing.T) {
	env := setupAPI(t)
	env.createRequisition(t)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/purchases/requisitions/pending-actions", nil, env.token(env.director))
	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", data["total"])
	}
	// Defaults applied when no query params are sent.
	if data["page"].(float64) != 1 || data["limit"].(float64) != 10 {
		t.Errorf("pagination = page %v limit %v, want 1 and 10", data["page"], data["limit"])
	}
}

func TestExportHTTP(t *testing.T) {
	env := setupAPI(t)
	env.createRequisition(t)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/purchases/requisitions/export", nil, env.token(env.creator))
	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	ct := w.Header().Get("Content-Type")
	if ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty workbook body")
	}
}

func TestDeleteRequisitionHTTP(t *testing.T) {
	env := setupAPI(t)
	id := env.createRequisition(t)
	path := fmt.Sprintf("/api/v1/purchases/requisitions/%d", id)

	w := testutil.DoRequest(env.router, "DELETE", path, nil, env.token(env.stranger))
	if w.Code != 403 {
		t.Errorf("stranger delete status = %d, want 403", w.Code)
	}

	w = testutil.DoRequest(env.router, "DELETE", path, nil, env.token(env.creator))
	if w.Code != 200 {
		t.Errorf("creator delete status = %d, body %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, "GET", path, nil, env.token(env.creator))
	if w.Code != 404 {
		t.Errorf("deleted get status = %d, want 404", w.Code)
	}
}
