package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/middleware"
	"github.com/designos/designos-backend/internal/services"
)

type ProviderHandler struct {
	log         *logger.Logger
	providerSvc services.ProviderService
}

func NewProviderHandler(log *logger.Logger, providerSvc services.ProviderService) *ProviderHandler {
	return &ProviderHandler{
		log:         log.With("handler", "ProviderHandler"),
		providerSvc: providerSvc,
	}
}

type createProviderRequest struct {
	Provider     string `json:"provider" binding:"required"`
	Label        string `json:"label"`
	APIKey       string `json:"apiKey" binding:"required"`
	DefaultModel string `json:"defaultModel" binding:"required"`
	BaseURL      string `json:"baseUrl"`
	IsDefault    bool   `json:"isDefault"`
}

func (h *ProviderHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondBadRequest(c, "missing user identity")
		return
	}
	var req createProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "provider, apiKey, and defaultModel are required")
		return
	}
	cfg, err := h.providerSvc.CreateProvider(c.Request.Context(), userID, services.CreateProviderInput{
		Provider:     req.Provider,
		Label:        req.Label,
		APIKey:       req.APIKey,
		DefaultModel: req.DefaultModel,
		BaseURL:      req.BaseURL,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, cfg)
}

func (h *ProviderHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondBadRequest(c, "missing user identity")
		return
	}
	configs, err := h.providerSvc.ListProviders(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, configs)
}

func (h *ProviderHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondBadRequest(c, "missing user identity")
		return
	}
	providerID, err := uuid.Parse(c.Param("providerId"))
	if err != nil {
		RespondBadRequest(c, "invalid provider ID")
		return
	}
	if err := h.providerSvc.DeleteProvider(c.Request.Context(), userID, providerID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
