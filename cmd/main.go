package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talentflow/internal/apperrors"
	"talentflow/internal/caching"
	"talentflow/internal/handlers"
	"talentflow/internal/jobs/background"
	"talentflow/internal/logger"
	"talentflow/internal/metrics"
	"talentflow/internal/middleware"
	"talentflow/internal/realtime"
	"talentflow/internal/repositories"
	"talentflow/internal/services"
	"talentflow/pkg/database"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("ENVIRONMENT"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		log.Warn("JWT_SECRET not set, using a generated secret; tokens will not survive restarts")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			redisDB = db
		}
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	defer redisClient.Close()

	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin"
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin"
	}
	minioBucket := os.Getenv("MINIO_BUCKET")
	if minioBucket == "" {
		minioBucket = "talentflow-evidence"
	}
	storage, err := services.NewMinioStorage(minioEndpoint, minioAccessKey, minioSecretKey, minioBucket, os.Getenv("MINIO_USE_SSL") == "true")
	if err != nil {
		log.Fatal("failed to initialize object storage", zap.Error(err))
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		log.Warn("could not ensure evidence bucket", zap.Error(err))
	}

	m := metrics.New()

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	stageRepo := repositories.NewStageRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	candidateRepo := repositories.NewCandidateRepo(pool)

	// Realtime hub with the redis backplane for cross-process fan-out.
	hub := realtime.NewHub(realtime.NewRedisBackplane(redisClient), m, log)
	if err := hub.Start(ctx); err != nil {
		log.Fatal("failed to start realtime hub", zap.Error(err))
	}
	defer hub.Stop()

	// Services. The shared event order keeps a candidate's broadcasts in
	// commit order across the three mutating services.
	order := services.NewEventOrder()
	cacheSvc := caching.NewRedisCacheService(redisClient)
	settingsSvc := services.NewSettingsService(tenantRepo, stageRepo, candidateRepo, userRepo, cacheSvc, log)
	candidateSvc := services.NewCandidateService(candidateRepo, tenantRepo, storage, hub, order, log)
	pipelineSvc := services.NewPipelineService(candidateRepo, tenantRepo, settingsSvc, hub, order)
	userSvc := services.NewUserService(userRepo, tenantRepo)

	summarizer, err := services.NewAIService(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("OPENROUTER_API_KEY"), m, log)
	if err != nil {
		log.Warn("summarizer disabled", zap.Error(err))
		summarizer = services.NoopSummarizer{}
	}
	assessmentSvc := services.NewAssessmentService(candidateRepo, storage, summarizer, hub, order, log)

	// Background jobs
	scheduler, err := background.NewJobScheduler(settingsSvc, tenantRepo, log)
	if err != nil {
		log.Fatal("failed to create job scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	candidateHandlers := handlers.NewCandidateHandlers(candidateSvc, pipelineSvc, assessmentSvc)
	settingsHandlers := handlers.NewSettingsHandlers(settingsSvc)
	userHandlers := handlers.NewUserHandlers(userSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)
	wsHandler := realtime.NewWSHandler(hub, log)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperrors.NewEchoErrorHandler(log)
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(logger.RequestLogger(log))

	e.GET("/health", healthHandlers.Health)
	e.GET("/health/ready", healthHandlers.Ready)
	e.GET("/health/detailed", healthHandlers.Detailed)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/v1/tenants", settingsHandlers.Bootstrap)

	jwtMiddleware, err := middleware.NewJWTMiddleware(jwtSecret, os.Getenv("AUTH_JWKS_URL"))
	if err != nil {
		log.Fatal("failed to configure JWT middleware", zap.Error(err))
	}

	v1 := e.Group("/v1", jwtMiddleware)

	v1.GET("/ws", wsHandler.Serve)

	v1.GET("/settings", settingsHandlers.GetSettings)
	v1.PUT("/settings", settingsHandlers.UpdateSettings)
	v1.PUT("/settings/plan", settingsHandlers.ChangePlan, middleware.RequireAdmin)
	v1.GET("/settings/usage", settingsHandlers.GetUsage)
	v1.GET("/settings/stages", settingsHandlers.ListStages)
	v1.POST("/settings/stages", settingsHandlers.AddStage, middleware.RequireAdmin)
	v1.PUT("/settings/stages/reorder", settingsHandlers.ReorderStages, middleware.RequireAdmin)
	v1.PUT("/settings/stages/:id", settingsHandlers.UpdateStage, middleware.RequireAdmin)
	v1.DELETE("/settings/stages/:id", settingsHandlers.RemoveStage, middleware.RequireAdmin)

	v1.POST("/users", userHandlers.Invite, middleware.RequireAdmin)
	v1.GET("/users", userHandlers.List)
	v1.GET("/users/:id", userHandlers.Get)

	v1.POST("/candidates", candidateHandlers.Create)
	v1.GET("/candidates", candidateHandlers.List)
	v1.GET("/candidates/:id", candidateHandlers.Get)
	v1.PATCH("/candidates/:id", candidateHandlers.Update)
	v1.DELETE("/candidates/:id", candidateHandlers.Delete, middleware.RequireAdmin)
	v1.PUT("/candidates/:id/stage", candidateHandlers.UpdateStage)
	v1.PUT("/candidates/:id/archive", candidateHandlers.SetArchived)
	v1.POST("/candidates/:id/comments", candidateHandlers.AddComment)
	v1.PUT("/candidates/:id/tests/:testId", candidateHandlers.SetTestResult)
	v1.POST("/candidates/:id/tests/:testId/evidence", candidateHandlers.UploadEvidence)
	v1.GET("/candidates/:id/tests/:testId/evidence", candidateHandlers.GetEvidenceURL)
	v1.POST("/candidates/:id/tests/:testId/summarize", candidateHandlers.Summarize)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		log.Info("starting server", zap.String("port", port), zap.String("version", version))
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
