// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/freshrisk/internal/api"
	"github.com/andresuchdata/freshrisk/internal/cache"
	"github.com/andresuchdata/freshrisk/internal/config"
	"github.com/andresuchdata/freshrisk/internal/pipeline/actions"
	"github.com/andresuchdata/freshrisk/internal/pipeline/changedetect"
	"github.com/andresuchdata/freshrisk/internal/pipeline/features"
	"github.com/andresuchdata/freshrisk/internal/pipeline/risk"
	"github.com/andresuchdata/freshrisk/internal/repository/postgres"
	"github.com/andresuchdata/freshrisk/internal/scheduler"
	"github.com/andresuchdata/freshrisk/internal/service"
	"github.com/andresuchdata/freshrisk/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	salesRepo := postgres.NewSalesRepository(db.DB)
	inventoryRepo := postgres.NewInventoryRepository(db.DB)
	featureRepo := postgres.NewFeatureRepository(db)
	riskRepo := postgres.NewRiskRepository(db)
	actionRepo := postgres.NewActionRepository(db)
	trackingRepo := postgres.NewChangeTrackingRepository(db)
	jobRepo := postgres.NewJobRepository(db)
	costRepo := postgres.NewCostRepository(db.DB)
	masterRepo := postgres.NewMasterRepository(db.DB)
	kpiRepo := postgres.NewKPIRepository(db.DB)

	// Initialize pipeline components
	builder := features.NewBuilder(salesRepo, featureRepo)
	runner := risk.NewRunner(inventoryRepo, featureRepo, riskRepo, costRepo, cfg.Risk.DefaultUnitCost)
	engine := actions.NewEngine(riskRepo, featureRepo, actionRepo, masterRepo, costRepo, cfg.Actions, cfg.Risk.DefaultUnitCost)
	detector := changedetect.NewDetector(salesRepo, inventoryRepo, featureRepo, riskRepo, trackingRepo,
		cfg.Risk.ChangedScoreDelta, cfg.Risk.AlwaysReprocessScore)

	// Initialize scheduler and jobs
	sched := scheduler.NewScheduler(jobRepo, scheduler.NewRetryPolicy(cfg.Scheduler))
	featureJob := scheduler.NewFeatureBuildJob(builder, detector)
	riskJob := scheduler.NewRiskScoringJob(runner, detector)
	actionJob := scheduler.NewActionGenerationJob(engine, detector)
	sched.Register(featureJob)
	sched.Register(riskJob)
	sched.Register(actionJob)
	sched.Register(scheduler.NewNightlyJob(featureJob, riskJob, actionJob))

	if err := sched.StartCron(cfg.Scheduler.NightlyCronSpec); err != nil {
		log.Fatalf("Failed to start nightly schedule: %v", err)
	}
	defer sched.StopCron()

	// Initialize KPI service with cache
	kpiCache, err := cache.NewKPICache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("KPI cache unavailable, continuing without cache")
		kpiCache = cache.NewNoopKPICache()
	}
	kpiService := service.NewKPIService(kpiRepo, kpiCache)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		KPIService:   kpiService,
		Scheduler:    sched,
		ActionEngine: engine,
	}, cfg.Server.AllowedOrigins)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
