package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/designos/designos-backend/internal/db"
	"github.com/designos/designos-backend/internal/handlers"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/middleware"
	"github.com/designos/designos-backend/internal/observability"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/server"
	"github.com/designos/designos-backend/internal/services"
	"github.com/designos/designos-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "designos-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	projectRepo := repos.NewProjectRepo(thePG, log)
	stageRepo := repos.NewStageRepo(thePG, log)
	outputRepo := repos.NewStageOutputRepo(thePG, log)
	generationRepo := repos.NewGenerationRepo(thePG, log)
	providerRepo := repos.NewAIProviderConfigRepo(thePG, log)
	contractRepo := repos.NewContractRepo(thePG, log)
	eventRepo := repos.NewContractEventRepo(thePG, log)
	batchRepo := repos.NewBatchRunRepo(thePG, log)
	exportRepo := repos.NewExportPackageRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService", "error", err)
	}
	rateLimiter := services.NewRateLimiter(log)
	projectService := services.NewProjectService(thePG, log, projectRepo, stageRepo)
	stageService := services.NewStageService(thePG, log, stageRepo, outputRepo, generationRepo, projectRepo)
	generationService := services.NewGenerationService(thePG, log, stageRepo, outputRepo, generationRepo, projectRepo, providerRepo, rateLimiter, nil)
	contractService := services.NewContractService(thePG, log, contractRepo, eventRepo, stageRepo, projectRepo)
	automationService := services.NewAutomationService(thePG, log, projectRepo, contractRepo, batchRepo, contractService)
	providerService := services.NewProviderService(log, providerRepo)
	exportService := services.NewExportService(log, projectRepo, stageRepo, contractRepo, exportRepo, bucketService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Error("Could not init AuthMiddleware", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	projectHandler := handlers.NewProjectHandler(log, projectService)
	stageHandler := handlers.NewStageHandler(log, projectService, stageService, generationService)
	contractHandler := handlers.NewContractHandler(log, projectService, contractService)
	automationHandler := handlers.NewAutomationHandler(log, projectService, automationService)
	exportHandler := handlers.NewExportHandler(log, projectService, exportService)
	providerHandler := handlers.NewProviderHandler(log, providerService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:    authMiddleware,
		ProjectHandler:    projectHandler,
		StageHandler:      stageHandler,
		ContractHandler:   contractHandler,
		AutomationHandler: automationHandler,
		ExportHandler:     exportHandler,
		ProviderHandler:   providerHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if otelShutdown != nil {
			_ = otelShutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
