package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/grupocyc/compras/internal/config"
	"github.com/grupocyc/compras/internal/middleware"
	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/handler"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/grupocyc/compras/internal/purchasing/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting compras service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := seed(db); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, continuing without cache", zap.Error(err))
			rdb = nil
		}
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, zapLogger)
	handlers := handler.NewHandlers(services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg, db)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
}

// seed creates the baseline roles and the single purchase-order sequence
// row. Every insert is idempotent so restarts are safe.
func seed(db *gorm.DB) error {
	roles := []entity.Role{
		{Name: "Gerencia", Description: "Aprobacion de gerencia"},
		{Name: "Compras", Description: "Gestion de ordenes de compra"},
		{Name: "Director de Obra", Description: "Revision de requisiciones"},
		{Name: "Residente", Description: "Creacion de requisiciones"},
	}
	for _, role := range roles {
		var existing entity.Role
		if err := db.Where(entity.Role{Name: role.Name}).
			Attrs(entity.Role{Description: role.Description}).
			FirstOrCreate(&existing).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}

	var n int64
	if err := db.Model(&entity.PurchaseOrderSequence{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		if err := db.Create(&entity.PurchaseOrderSequence{LastNumber: 0}).Error; err != nil {
			return fmt.Errorf("failed to seed purchase order sequence: %w", err)
		}
	}
	return nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config, db *gorm.DB) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		purchases := v1.Group("/purchases")
		purchases.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
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

			orders := purchases.Group("/orders")
			{
				orders.POST("", h.PurchaseOrder.Create)
				orders.GET("", h.PurchaseOrder.List)
				orders.GET("/:id", h.PurchaseOrder.Get)
				orders.POST("/:id/receive", h.PurchaseOrder.Receive)
			}

			purchases.GET("/authorizations/granted", h.Authorization.ListGranted)
		}
	}
}
