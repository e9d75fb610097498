package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/designos/designos-backend/internal/handlers"
	"github.com/designos/designos-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware    *middleware.AuthMiddleware
	ProjectHandler    *handlers.ProjectHandler
	StageHandler      *handlers.StageHandler
	ContractHandler   *handlers.ContractHandler
	AutomationHandler *handlers.AutomationHandler
	ExportHandler     *handlers.ExportHandler
	ProviderHandler   *handlers.ProviderHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware("designos-backend"))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Providers
	api.POST("/providers", cfg.ProviderHandler.Create)
	api.GET("/providers", cfg.ProviderHandler.List)
	api.DELETE("/providers/:providerId", cfg.ProviderHandler.Delete)

	// Projects
	api.POST("/projects", cfg.ProjectHandler.Create)
	api.GET("/projects", cfg.ProjectHandler.List)
	api.GET("/projects/:projectId", cfg.ProjectHandler.Get)
	api.DELETE("/projects/:projectId", cfg.ProjectHandler.Archive)
	api.GET("/projects/:projectId/brief", cfg.ProjectHandler.Brief)

	// Stages
	api.GET("/projects/:projectId/stages", cfg.StageHandler.List)
	api.GET("/projects/:projectId/stages/:num", cfg.StageHandler.Get)
	api.PUT("/projects/:projectId/stages/:num", cfg.StageHandler.Save)
	api.POST("/projects/:projectId/stages/:num/generate", cfg.StageHandler.Generate)
	api.POST("/projects/:projectId/stages/:num/complete", cfg.StageHandler.Complete)
	api.POST("/projects/:projectId/stages/:num/revert", cfg.StageHandler.Revert)
	api.POST("/projects/:projectId/stages/:num/versions/:version/activate", cfg.StageHandler.ActivateVersion)
	api.GET("/projects/:projectId/stages/:num/generations", cfg.StageHandler.ListGenerations)

	// Contracts
	api.POST("/projects/:projectId/contracts/generate", cfg.ContractHandler.Generate)
	api.GET("/projects/:projectId/contracts", cfg.ContractHandler.List)
	api.GET("/projects/:projectId/contracts/next", cfg.ContractHandler.Next)
	api.GET("/projects/:projectId/contracts/:contractId", cfg.ContractHandler.Get)
	api.GET("/projects/:projectId/contracts/:contractId/events", cfg.ContractHandler.Events)
	api.POST("/projects/:projectId/contracts/:contractId/start", cfg.ContractHandler.Start)
	api.POST("/projects/:projectId/contracts/:contractId/submit", cfg.ContractHandler.Submit)
	api.POST("/projects/:projectId/contracts/:contractId/approve", cfg.ContractHandler.Approve)
	api.POST("/projects/:projectId/contracts/:contractId/request-changes", cfg.ContractHandler.RequestChanges)

	// Automation
	api.GET("/projects/:projectId/automation/config", cfg.AutomationHandler.GetConfig)
	api.PATCH("/projects/:projectId/automation/config", cfg.AutomationHandler.UpdateConfig)
	api.POST("/projects/:projectId/automation/batch", cfg.AutomationHandler.StartBatch)
	api.GET("/projects/:projectId/automation/batch/latest", cfg.AutomationHandler.LatestBatch)
	api.GET("/projects/:projectId/automation/batch/:batchId", cfg.AutomationHandler.GetBatch)
	api.POST("/projects/:projectId/automation/batch/:batchId/stop", cfg.AutomationHandler.StopBatch)
	api.POST("/projects/:projectId/automation/tasks/:contractId/quality-gates", cfg.AutomationHandler.RecordQualityGates)
	api.POST("/projects/:projectId/automation/batch-approve", cfg.AutomationHandler.BulkApprove)
	api.GET("/projects/:projectId/automation/workflow-prompt", cfg.AutomationHandler.WorkflowPrompt)

	// Export
	api.POST("/projects/:projectId/export", cfg.ExportHandler.Export)
	api.GET("/projects/:projectId/exports", cfg.ExportHandler.List)

	return router
}
