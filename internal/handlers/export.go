package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/services"
)

type ExportHandler struct {
	log        *logger.Logger
	projectSvc services.ProjectService
	exportSvc  services.ExportService
}

func NewExportHandler(log *logger.Logger, projectSvc services.ProjectService, exportSvc services.ExportService) *ExportHandler {
	return &ExportHandler{
		log:        log.With("handler", "ExportHandler"),
		projectSvc: projectSvc,
		exportSvc:  exportSvc,
	}
}

func (h *ExportHandler) Export(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	pkg, err := h.exportSvc.ExportProject(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, pkg)
}

func (h *ExportHandler) List(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	if _, err := h.projectSvc.GetProject(c.Request.Context(), userID, projectID); err != nil {
		RespondError(c, err)
		return
	}
	exports, err := h.exportSvc.ListExports(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, exports)
}
