package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradeflow-api/api/swagger"
	"github.com/noah-isme/gradeflow-api/internal/handler"
	"github.com/noah-isme/gradeflow-api/internal/middleware"
	"github.com/noah-isme/gradeflow-api/internal/models"
	"github.com/noah-isme/gradeflow-api/internal/repository"
	"github.com/noah-isme/gradeflow-api/internal/service"
	"github.com/noah-isme/gradeflow-api/pkg/cache"
	"github.com/noah-isme/gradeflow-api/pkg/config"
	"github.com/noah-isme/gradeflow-api/pkg/database"
	"github.com/noah-isme/gradeflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradeflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradeflow-api/pkg/middleware/requestid"
	"github.com/noah-isme/gradeflow-api/pkg/storage"
)

// @title GradeFlow API
// @version 1.0.0
// @description Grade aggregation, report cards and class result exports
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	reportCardScope = "report-cards"
	exportScope     = "exports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	signer := storage.NewSigner(cfg.Storage.SignedURLSecret)
	filesURL := cfg.APIPrefix + "/files"

	reportStore, photos, localReportStore, err := buildReportStore(cfg, signer, filesURL)
	if err != nil {
		logr.Fatal("failed to init report card storage", zap.Error(err))
	}
	exportStore, err := storage.NewLocalStore(storage.LocalOptions{
		Scope:   exportScope,
		BaseDir: cfg.Exports.StorageDir,
		BaseURL: filesURL,
		Signer:  signer,
	})
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	statsRepo := repository.NewReportStatsRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	reportCardRepo := repository.NewReportCardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.ReportCards.StatsCacheTTL, logr, redisClient != nil)
	auditSvc := service.NewAuditService(auditRepo, logr)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	gradeSvc := service.NewGradeService(gradeRepo, classRepo, subjectRepo, cacheSvc, auditSvc, validate, logr)
	reportCardSvc := service.NewReportCardService(service.ReportCardDeps{
		Cards:     reportCardRepo,
		Students:  studentRepo,
		Programs:  classRepo,
		Grades:    gradeRepo,
		Stats:     statsRepo,
		Templates: templateRepo,
		Store:     reportStore,
		Photos:    photos,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Audit:     auditSvc,
	}, validate, logr, service.ReportCardServiceConfig{
		BatchSize:     cfg.ReportCards.BatchSize,
		SignedURLTTL:  cfg.Storage.SignedURLTTL,
		StatsCacheTTL: cfg.ReportCards.StatsCacheTTL,
		PhotoMaxSize:  cfg.ReportCards.PhotoMaxSize,
	})
	exportSvc := service.NewExportService(studentRepo, gradeRepo, statsRepo, exportStore, auditSvc, service.ExportConfig{
		ResultTTL:   cfg.Exports.ResultTTL,
		CleanupCron: cfg.Exports.CleanupCron,
	}, logr)
	fileSvc := service.NewFileService(signer, logr, exportStore)
	if localReportStore != nil {
		fileSvc = service.NewFileService(signer, logr, exportStore, localReportStore)
	}

	if _, err := exportSvc.StartCleanup(ctx); err != nil {
		logr.Fatal("failed to schedule export cleanup", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics"))
	r.Use(middleware.AuditMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:        handler.NewAuthHandler(authSvc),
		grades:      handler.NewGradeHandler(gradeSvc),
		reportCards: handler.NewReportCardHandler(reportCardSvc),
		files:       handler.NewFileHandler(fileSvc),
		exports:     handler.NewExportHandler(exportSvc),
		audit:       handler.NewAuditHandler(auditSvc),
	}, middleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeHandlers struct {
	auth        *handler.AuthHandler
	grades      *handler.GradeHandler
	reportCards *handler.ReportCardHandler
	files       *handler.FileHandler
	exports     *handler.ExportHandler
	audit       *handler.AuditHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers, auth gin.HandlerFunc) {
	api.POST("/auth/login", h.auth.Login)
	api.GET("/files/:token", h.files.Download)

	protected := api.Group("", auth)
	anyStaff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleSecretary)
	gradeEditors := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	cardManagers := middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary)

	grades := protected.Group("/grades")
	grades.GET("", anyStaff, h.grades.List)
	grades.POST("", gradeEditors, h.grades.Create)
	grades.POST("/bulk", gradeEditors, h.grades.BulkCreate)
	grades.PUT("/:id", gradeEditors, h.grades.Update)
	grades.DELETE("/:id", gradeEditors, h.grades.Delete)

	cards := protected.Group("/report-cards")
	cards.GET("", anyStaff, h.reportCards.List)
	cards.GET("/:id", anyStaff, h.reportCards.Get)
	cards.POST("/generate", cardManagers, h.reportCards.Generate)
	cards.POST("/pdf/bulk", cardManagers, h.reportCards.BulkGeneratePDF)
	cards.PUT("/:id/edits", cardManagers, h.reportCards.UpdateEdits)
	cards.POST("/:id/finalize", cardManagers, h.reportCards.Finalize)
	cards.POST("/:id/pdf", cardManagers, h.reportCards.GeneratePDF)
	cards.DELETE("/:id", cardManagers, h.reportCards.Delete)

	protected.POST("/exports/class-results", cardManagers, h.exports.ClassResults)
	protected.GET("/audit-logs", middleware.RequireRoles(models.RoleAdmin), h.audit.List)
}

// buildReportStore selects the report card object store. The local store is
// also returned so signed download tokens for it can be served.
func buildReportStore(cfg *config.Config, signer *storage.Signer, filesURL string) (storage.ObjectStore, service.PhotoReader, *storage.LocalStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverOSS:
		store, err := storage.NewOSSStore(cfg.Storage.OSS, cfg.Storage.PublicBucket)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, nil, nil
	case config.StorageDriverLocal, "":
		store, err := storage.NewLocalStore(storage.LocalOptions{
			Scope:   reportCardScope,
			BaseDir: cfg.Storage.LocalDir,
			BaseURL: filesURL,
			Public:  cfg.Storage.PublicBucket,
			Signer:  signer,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
