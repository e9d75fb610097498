package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/services"
)

type ContractHandler struct {
	log         *logger.Logger
	projectSvc  services.ProjectService
	contractSvc services.ContractService
}

func NewContractHandler(log *logger.Logger, projectSvc services.ProjectService, contractSvc services.ContractService) *ContractHandler {
	return &ContractHandler{
		log:         log.With("handler", "ContractHandler"),
		projectSvc:  projectSvc,
		contractSvc: contractSvc,
	}
}

func (h *ContractHandler) projectScope(c *gin.Context) (projectID uuid.UUID, ok bool) {
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

func (h *ContractHandler) contractScope(c *gin.Context) (projectID, contractID uuid.UUID, ok bool) {
	projectID, ok = h.projectScope(c)
	if !ok {
		return
	}
	contractID, err := uuid.Parse(c.Param("contractId"))
	if err != nil {
		RespondBadRequest(c, "invalid contract ID")
		return projectID, uuid.Nil, false
	}
	return projectID, contractID, true
}

func (h *ContractHandler) Generate(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	contracts, err := h.contractSvc.RegenerateContracts(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, contracts)
}

func (h *ContractHandler) List(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	contracts, err := h.contractSvc.ListContracts(c.Request.Context(), projectID, c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contracts)
}

func (h *ContractHandler) Next(c *gin.Context) {
	projectID, ok := h.projectScope(c)
	if !ok {
		return
	}
	contract, err := h.contractSvc.NextReady(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

func (h *ContractHandler) Get(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	contract, err := h.contractSvc.GetContract(c.Request.Context(), projectID, contractID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

func (h *ContractHandler) Events(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	events, err := h.contractSvc.ListEvents(c.Request.Context(), projectID, contractID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, events)
}

func (h *ContractHandler) Start(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	contract, err := h.contractSvc.Start(c.Request.Context(), projectID, contractID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

type submitContractRequest struct {
	Summary string `json:"summary" binding:"required"`
}

func (h *ContractHandler) Submit(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	var req submitContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "summary is required")
		return
	}
	contract, err := h.contractSvc.Submit(c.Request.Context(), projectID, contractID, req.Summary)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

type requestChangesRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

func (h *ContractHandler) RequestChanges(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	var req requestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "feedback is required")
		return
	}
	contract, err := h.contractSvc.RequestChanges(c.Request.Context(), projectID, contractID, req.Feedback)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}

func (h *ContractHandler) Approve(c *gin.Context) {
	projectID, contractID, ok := h.contractScope(c)
	if !ok {
		return
	}
	contract, err := h.contractSvc.Approve(c.Request.Context(), projectID, contractID, "")
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contract)
}
