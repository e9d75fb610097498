package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/middleware"
	"github.com/designos/designos-backend/internal/services"
)

type ProjectHandler struct {
	log        *logger.Logger
	projectSvc services.ProjectService
}

func NewProjectHandler(log *logger.Logger, projectSvc services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		log:        log.With("handler", "ProjectHandler"),
		projectSvc: projectSvc,
	}
}

// requestScope pulls the authenticated user and the :projectId param.
// Responds and returns ok=false on any failure.
func requestScope(c *gin.Context) (userID, projectID uuid.UUID, ok bool) {
	userID, found := middleware.UserID(c)
	if !found {
		RespondBadRequest(c, "missing authenticated user")
		return uuid.Nil, uuid.Nil, false
	}
	raw := c.Param("projectId")
	projectID, err := uuid.Parse(raw)
	if err != nil {
		RespondBadRequest(c, "invalid project ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondBadRequest(c, "missing authenticated user")
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid request body")
		return
	}
	project, err := h.projectSvc.CreateProject(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondBadRequest(c, "missing authenticated user")
		return
	}
	projects, err := h.projectSvc.ListProjects(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	project, err := h.projectSvc.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, project)
}

func (h *ProjectHandler) Archive(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	project, err := h.projectSvc.ArchiveProject(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, project)
}

func (h *ProjectHandler) Brief(c *gin.Context) {
	userID, projectID, ok := requestScope(c)
	if !ok {
		return
	}
	content, err := h.projectSvc.Brief(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"content": content})
}
