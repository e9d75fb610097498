package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/services"
	"github.com/designos/designos-backend/internal/types"
)

type AutomationHandler struct {
	log           *logger.Logger
	projectSvc    services.ProjectService
	automationSvc services.AutomationService
}

func NewAutomationHandler(log *logger.Logger, projectSvc services.ProjectService, automationSvc services.AutomationService) *AutomationHandler {
	return &AutomationHandler{
		log:           log.With("handler", "AutomationHandler"),
		projectSvc:    projectSvc,
		automationSvc: automationSvc,
	}
}

func (h *AutomationHandler) projectScope(c *gin.Context) (projectID uuid.UUID, ok bool) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.projectSvc.GetProject(c.Request.Context(), userID, projectID); err != nil {
		RespondError(c, err)
		return uuid.Nil, false
	}
	return projectID, true
}

func (h *AutomationHandler) GetConfig(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	cfg, err := h.automationSvc.GetConfig(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cfg)
}

func (h *AutomationHandler) UpdateConfig(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	var req types.AutomationConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid automation config")
		return
	}
	cfg, err := h.automationSvc.UpdateConfig(c.Request.Context(), projectID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cfg)
}

func (h *AutomationHandler) StartBatch(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	batch, err := h.automationSvc.StartBatch(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, batch)
}

func (h *AutomationHandler) LatestBatch(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	batch, err := h.automationSvc.LatestBatch(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batch)
}

func (h *AutomationHandler) GetBatch(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		RespondBadRequest(c, "invalid batch ID")
		return
	}
	batch, err := h.automationSvc.GetBatch(c.Request.Context(), projectID, batchID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batch)
}

func (h *AutomationHandler) StopBatch(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		RespondBadRequest(c, "invalid batch ID")
		return
	}
	batch, err := h.automationSvc.StopBatch(c.Request.Context(), projectID, batchID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batch)
}

func (h *AutomationHandler) RecordQualityGates(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	contractID, err := uuid.Parse(c.Param("contractId"))
	if err != nil {
		RespondBadRequest(c, "invalid contract ID")
		return
	}
	var report types.QualityReport
	if err := c.ShouldBindJSON(&report); err != nil {
		RespondBadRequest(c, "invalid quality report")
		return
	}
	contract, err := h.automationSvc.RecordQualityGates(c.Request.Context(), projectID, contractID, report)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

func (h *AutomationHandler) BulkApprove(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	result, err := h.automationSvc.BulkApprove(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AutomationHandler) WorkflowPrompt(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	prompt, err := h.automationSvc.WorkflowPrompt(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"prompt": prompt})
}
