package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
	"github.com/designos/designos-backend/internal/utils"
)

type CreateProviderInput struct {
	Provider     string `json:"provider"`
	Label        string `json:"label"`
	APIKey       string `json:"api_key"`
	DefaultModel string `json:"default_model"`
	BaseURL      string `json:"base_url"`
	IsDefault    bool   `json:"is_default"`
}

// ProviderService manages per-user AI provider configurations. Keys are
// encrypted at rest and never returned to callers.
type ProviderService interface {
	CreateProvider(ctx context.Context, userID uuid.UUID, input CreateProviderInput) (*types.AIProviderConfig, error)
	ListProviders(ctx context.Context, userID uuid.UUID) ([]*types.AIProviderConfig, error)
	DeleteProvider(ctx context.Context, userID, providerID uuid.UUID) error
}

type providerService struct {
	log          *logger.Logger
	providerRepo repos.AIProviderConfigRepo
}

func NewProviderService(baseLog *logger.Logger, providerRepo repos.AIProviderConfigRepo) ProviderService {
	return &providerService{
		log:          baseLog.With("service", "ProviderService"),
		providerRepo: providerRepo,
	}
}

func (s *providerService) CreateProvider(ctx context.Context, userID uuid.UUID, input CreateProviderInput) (*types.AIProviderConfig, error) {
	switch input.Provider {
	case types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderOpenRouter,
		types.ProviderDeepSeek, types.ProviderKimi, types.ProviderCustom:
	default:
		return nil, apierr.BadRequest("unsupported provider %q", input.Provider)
	}
	if strings.TrimSpace(input.APIKey) == "" {
		return nil, apierr.BadRequest("api key is required")
	}
	if strings.TrimSpace(input.DefaultModel) == "" {
		return nil, apierr.BadRequest("default model is required")
	}
	if input.Provider == types.ProviderCustom && strings.TrimSpace(input.BaseURL) == "" {
		return nil, apierr.BadRequest("custom provider requires a base url")
	}

	encrypted, err := utils.Encrypt(input.APIKey)
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		label = input.Provider
	}

	cfg := &types.AIProviderConfig{
		ID:              uuid.New(),
		UserID:          userID,
		Provider:        input.Provider,
		Label:           label,
		APIKeyEncrypted: encrypted,
		DefaultModel:    input.DefaultModel,
		BaseURL:         strings.TrimSuffix(strings.TrimSpace(input.BaseURL), "/"),
		IsDefault:       input.IsDefault,
	}
	if _, err := s.providerRepo.Create(ctx, nil, cfg); err != nil {
		return nil, err
	}
	s.log.Info("Provider config created", "user_id", userID, "provider", cfg.Provider)
	return cfg, nil
}

func (s *providerService) ListProviders(ctx context.Context, userID uuid.UUID) ([]*types.AIProviderConfig, error) {
	return s.providerRepo.ListByUser(ctx, nil, userID)
}

func (s *providerService) DeleteProvider(ctx context.Context, userID, providerID uuid.UUID) error {
	cfg, err := s.providerRepo.GetForUser(ctx, nil, providerID, userID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return apierr.NotFound("provider config not found")
	}
	return s.providerRepo.Delete(ctx, nil, providerID, userID)
}
