package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/services"
)

type StageHandler struct {
	log        *logger.Logger
	projectSvc services.ProjectService
	stageSvc   services.StageService
	genSvc     services.GenerationService
}

func NewStageHandler(
	log *logger.Logger,
	projectSvc services.ProjectService,
	stageSvc services.StageService,
	genSvc services.GenerationService,
) *StageHandler {
	return &StageHandler{
		log:        log.With("handler", "StageHandler"),
		projectSvc: projectSvc,
		stageSvc:   stageSvc,
		genSvc:     genSvc,
	}
}

// stageScope additionally parses the :num param and verifies project
// ownership before any stage operation dispatches.
func (h *StageHandler) stageScope(c *gin.Context) (userID, projectID uuid.UUID, number int, ok bool) {
	userID, projectID, ok = requestScope(c)
	if !ok {
		return
	}
	number, err := strconv.Atoi(c.Param("num"))
	if err != nil || number < 1 {
		RespondBadRequest(c, "invalid stage number")
		return userID, projectID, 0, false
	}
	if _, err := h.projectSvc.GetProject(c.Request.Context(), userID, projectID); err != nil {
		RespondError(c, err)
		return userID, projectID, 0, false
	}
	return userID, projectID, number, true
}

func (h *StageHandler) List(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	if _, err := h.projectSvc.GetProject(c.Request.Context(), userID, projectID); err != nil {
		RespondError(c, err)
		return
	}
	stages, err := h.stageSvc.ListStages(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stages)
}

func (h *StageHandler) Get(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	detail, err := h.stageSvc.GetStage(c.Request.Context(), projectID, number)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, detail)
}

type saveStageRequest struct {
	Data      json.RawMessage `json:"data"`
	UserInput string          `json:"user_input"`
}

func (h *StageHandler) Save(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	var req saveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid request body")
		return
	}
	stage, err := h.stageSvc.SaveStage(c.Request.Context(), projectID, number, req.Data, req.UserInput)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stage)
}

type generateStageRequest struct {
	UserInput string `json:"user_input"`
}

func (h *StageHandler) Generate(c *gin.Context) {
	userID, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	var req generateStageRequest
	// Body is optional for generation.
	_ = c.ShouldBindJSON(&req)

	stage, err := h.genSvc.GenerateStage(c.Request.Context(), userID, projectID, number, req.UserInput)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stage)
}

func (h *StageHandler) Complete(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	stage, err := h.stageSvc.CompleteStage(c.Request.Context(), projectID, number)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stage)
}

func (h *StageHandler) Revert(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	stage, err := h.stageSvc.RevertStage(c.Request.Context(), projectID, number)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stage)
}

func (h *StageHandler) ActivateVersion(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		RespondBadRequest(c, "invalid output version")
		return
	}
	stage, err := h.stageSvc.ActivateOutputVersion(c.Request.Context(), projectID, number, version)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stage)
}

func (h *StageHandler) ListGenerations(c *gin.Context) {
	_, projectID, number, ok := h.stageScope(c)
	if !ok {
		return
	}
	generations, err := h.stageSvc.ListGenerations(c.Request.Context(), projectID, number)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, generations)
}
