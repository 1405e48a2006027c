package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/grupocyc/compras/internal/middleware"
	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_compras"
	JWTSecret  = "compras-test-jwt-secret"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test
// schema. Each test gets an isolated schema that is dropped afterwards.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "compras")
	password := getEnv("DB_PASSWORD", "compras123")
	dbname := getEnv("DB_NAME", "compras_test")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so all pooled connections use the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.Company{},
		&entity.Project{},
		&entity.OperationCenter{},
		&entity.ProjectCode{},
		&entity.MaterialGroup{},
		&entity.Material{},
		&entity.Authorization{},
		&entity.RequisitionPrefix{},
		&entity.RequisitionSequence{},
		&entity.PurchaseOrderSequence{},
		&entity.Requisition{},
		&entity.RequisitionItem{},
		&entity.RequisitionLog{},
		&entity.Supplier{},
		&entity.PurchaseOrder{},
		&entity.PurchaseOrderItem{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing.
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing.
func GenerateTestToken(userID uint, name, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"uid":  userID,
		"name": name,
		"role": role,
		"iss":  "compras",
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
		"jti":  fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router.
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedRoles creates the four baseline roles and returns them by name.
func SeedRoles(t *testing.T, db *gorm.DB) map[string]*entity.Role {
	t.Helper()
	roles := map[string]*entity.Role{}
	for _, name := range []string{"Gerencia", "Compras", "Director de Obra", "Residente"} {
		role := &entity.Role{Name: name}
		if err := db.Create(role).Error; err != nil {
			t.Fatalf("Failed to seed role %s: %v", name, err)
		}
		roles[name] = role
	}
	return roles
}

// SeedUser creates an active user with the given role.
func SeedUser(t *testing.T, db *gorm.DB, username string, roleID uint) *entity.User {
	t.Helper()
	user := &entity.User{
		Username: username,
		Name:     username,
		Email:    username + "@test.com",
		RoleID:   roleID,
		Active:   true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return user
}

// SeedCompany creates a company with an operation center, a prefix and a
// zeroed sequence, scoped to the optional project.
func SeedCompany(t *testing.T, db *gorm.DB, name, prefix string, requiresProject bool) *entity.Company {
	t.Helper()
	company := &entity.Company{Name: name, TaxID: "900" + name[:minInt(10, len(name))], RequiresProject: requiresProject, Active: true}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("Failed to seed company %s: %v", name, err)
	}
	SeedScope(t, db, company.CompanyID, nil, prefix)
	return company
}

// SeedProject creates a project under the company together with its own
// operation center, prefix and sequence.
func SeedProject(t *testing.T, db *gorm.DB, companyID uint, name, prefix string) *entity.Project {
	t.Helper()
	project := &entity.Project{CompanyID: companyID, Name: name, Active: true}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed project %s: %v", name, err)
	}
	SeedScope(t, db, companyID, &project.ProjectID, prefix)
	return project
}

// SeedScope creates the operation center, project code, prefix and
// sequence rows for one (company, project) scope.
func SeedScope(t *testing.T, db *gorm.DB, companyID uint, projectID *uint, prefix string) {
	t.Helper()
	center := &entity.OperationCenter{CompanyID: companyID, ProjectID: projectID, Code: prefix[:minInt(3, len(prefix))]}
	if err := db.Create(center).Error; err != nil {
		t.Fatalf("Failed to seed operation center: %v", err)
	}
	code := &entity.ProjectCode{CompanyID: companyID, ProjectID: projectID, Code: "PC-" + prefix}
	if err := db.Create(code).Error; err != nil {
		t.Fatalf("Failed to seed project code: %v", err)
	}
	prefixRow := &entity.RequisitionPrefix{CompanyID: companyID, ProjectID: projectID, Prefix: prefix}
	if err := db.Create(prefixRow).Error; err != nil {
		t.Fatalf("Failed to seed prefix %s: %v", prefix, err)
	}
	seq := &entity.RequisitionSequence{PrefixID: prefixRow.PrefixID, LastNumber: 0}
	if err := db.Create(seq).Error; err != nil {
		t.Fatalf("Failed to seed sequence for %s: %v", prefix, err)
	}
}

// SeedMaterial creates a material inside a fresh group.
func SeedMaterial(t *testing.T, db *gorm.DB, code, description string) *entity.Material {
	t.Helper()
	group := &entity.MaterialGroup{Name: "grupo_" + code}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("Failed to seed material group: %v", err)
	}
	material := &entity.Material{
		GroupID:     group.GroupID,
		Code:        code,
		Description: description,
		Unit:        "und",
		Active:      true,
	}
	if err := db.Create(material).Error; err != nil {
		t.Fatalf("Failed to seed material %s: %v", code, err)
	}
	return material
}

// SeedAuthorization creates an active directed edge.
func SeedAuthorization(t *testing.T, db *gorm.DB, authorizerID, authorizedID uint, authType string) *entity.Authorization {
	t.Helper()
	edge := &entity.Authorization{
		AuthorizerID: authorizerID,
		AuthorizedID: authorizedID,
		Type:         authType,
		Level:        1,
		Active:       true,
	}
	if err := db.Create(edge).Error; err != nil {
		t.Fatalf("Failed to seed authorization edge: %v", err)
	}
	return edge
}

// SeedOrderSequence creates the single purchase-order sequence row.
func SeedOrderSequence(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Create(&entity.PurchaseOrderSequence{LastNumber: 0}).Error; err != nil {
		t.Fatalf("Failed to seed purchase order sequence: %v", err)
	}
}

// SeedSupplier creates an active supplier.
func SeedSupplier(t *testing.T, db *gorm.DB, name string) *entity.Supplier {
	t.Helper()
	supplier := &entity.Supplier{Name: name, TaxID: "800" + name[:minInt(10, len(name))], Active: true}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatalf("Failed to seed supplier %s: %v", name, err)
	}
	return supplier
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
