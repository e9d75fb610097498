package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

// generationTimeout bounds the provider call, not the surrounding
// bookkeeping.
const generationTimeout = 10 * time.Minute

// ProviderClientFactory builds a client for a stored provider config.
// Swappable for tests.
type ProviderClientFactory func(cfg *types.AIProviderConfig, log *logger.Logger) (ProviderClient, error)

type GenerationService interface {
	// GenerateStage runs one AI generation for a stage: claim, call,
	// parse, commit. Whatever happens after a successful claim, the stage
	// never ends up stuck in generating.
	GenerateStage(ctx context.Context, userID, projectID uuid.UUID, number int, userInput string) (*types.Stage, error)
}

type generationService struct {
	db            *gorm.DB
	log           *logger.Logger
	stageRepo     repos.StageRepo
	outputRepo    repos.StageOutputRepo
	genRepo       repos.GenerationRepo
	projectRepo   repos.ProjectRepo
	providerRepo  repos.AIProviderConfigRepo
	limiter       RateLimiter
	clientFactory ProviderClientFactory
}

func NewGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	stageRepo repos.StageRepo,
	outputRepo repos.StageOutputRepo,
	genRepo repos.GenerationRepo,
	projectRepo repos.ProjectRepo,
	providerRepo repos.AIProviderConfigRepo,
	limiter RateLimiter,
	clientFactory ProviderClientFactory,
) GenerationService {
	if clientFactory == nil {
		clientFactory = NewProviderClient
	}
	return &generationService{
		db:            db,
		log:           baseLog.With("service", "GenerationService"),
		stageRepo:     stageRepo,
		outputRepo:    outputRepo,
		genRepo:       genRepo,
		projectRepo:   projectRepo,
		providerRepo:  providerRepo,
		limiter:       limiter,
		clientFactory: clientFactory,
	}
}

func (s *generationService) GenerateStage(ctx context.Context, userID, projectID uuid.UUID, number int, userInput string) (*types.Stage, error) {
	cfg, ok := types.StageConfigByNumber(number)
	if !ok {
		return nil, apierr.NotFound("stage %d not found", number)
	}
	if cfg.Name == types.StageNameExport {
		return nil, apierr.InvalidStage("export stage has no generation step")
	}

	allowed, err := s.limiter.Allow(ctx, userID.String())
	if err != nil {
		s.log.Warn("Rate limiter unavailable, allowing request", "error", err)
	} else if !allowed {
		return nil, apierr.RateLimited("generation rate limit exceeded")
	}

	// Claim. From here on every path must end with a terminating stage
	// update: success commit or revert to priorStatus.
	stage, priorStatus, err := s.stageRepo.ClaimForGeneration(ctx, nil, projectID, number)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, apierr.NotFound("stage %d not found", number)
	}
	if priorStatus == "" {
		return nil, apierr.BadStatus("cannot generate stage in %q status", stage.Status)
	}

	// Provider resolution: project override first, then the user default.
	// No generation row here, nothing was attempted yet.
	providerCfg, err := s.resolveProvider(ctx, userID, projectID)
	if err != nil {
		s.revert(ctx, stage.ID, priorStatus)
		return nil, err
	}

	client, err := s.clientFactory(providerCfg, s.log)
	if err != nil {
		s.revert(ctx, stage.ID, priorStatus)
		return nil, apierr.NoProvider("provider client: %v", err)
	}

	contextData, err := s.gatherContext(ctx, projectID, cfg.Name)
	if err != nil {
		s.revert(ctx, stage.ID, priorStatus)
		return nil, err
	}

	input := userInput
	if input == "" {
		input = stage.UserInput
	}
	system, user, err := BuildPrompt(cfg.Name, contextData, input)
	if err != nil {
		s.revert(ctx, stage.ID, priorStatus)
		return nil, apierr.InvalidStage("%v", err)
	}

	// The provider call runs outside any transaction. A crash here leaves
	// the stage claimed until an explicit revert, which is the accepted
	// tradeoff for not holding a transaction open for minutes.
	callCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	started := time.Now()
	result, callErr := client.Generate(callCtx, GenerateRequest{
		Model:     providerCfg.DefaultModel,
		System:    system,
		User:      user,
		MaxTokens: DefaultMaxOutputTokens,
	})
	duration := time.Since(started)

	if callErr != nil {
		status := types.GenerationStatusError
		if errors.Is(callErr, context.DeadlineExceeded) {
			status = types.GenerationStatusTimeout
		}
		s.failGeneration(ctx, stage, priorStatus, providerCfg, cfg.Name, duration, &GenerateResult{Model: providerCfg.DefaultModel}, status, callErr.Error())
		return nil, apierr.GenerationFailed("provider call failed: %v", callErr)
	}

	if result.StopReason == StopReasonMaxTokens {
		msg := fmt.Sprintf("output truncated at %d tokens", result.OutputTokens)
		s.failGeneration(ctx, stage, priorStatus, providerCfg, cfg.Name, duration, result, types.GenerationStatusError, msg)
		return nil, apierr.Truncated("%s", msg)
	}

	parsed, strategy, ok := ExtractJSON(result.Content)
	if !ok {
		s.failGeneration(ctx, stage, priorStatus, providerCfg, cfg.Name, duration, result, types.GenerationStatusError, "no extraction strategy produced valid JSON")
		return nil, apierr.ParseError("response is not recoverable as structured data")
	}
	s.log.Debug("Extracted generation output", "stage", cfg.Name, "strategy", strategy)

	parsedRaw, err := json.Marshal(parsed)
	if err != nil {
		s.failGeneration(ctx, stage, priorStatus, providerCfg, cfg.Name, duration, result, types.GenerationStatusError, err.Error())
		return nil, apierr.ParseError("re-encode parsed output: %v", err)
	}

	// Atomic commit: audit row, output version, stage data + review.
	var updated *types.Stage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		generation := &types.Generation{
			ID:             uuid.New(),
			StageID:        stage.ID,
			ProviderID:     providerCfg.ID,
			Model:          result.Model,
			PromptTemplate: cfg.Name,
			InputTokens:    result.InputTokens,
			OutputTokens:   result.OutputTokens,
			TotalTokens:    result.InputTokens + result.OutputTokens,
			EstimatedCost:  EstimateCost(result.Model, result.InputTokens, result.OutputTokens),
			DurationMs:     duration.Milliseconds(),
			Status:         types.GenerationStatusSuccess,
		}
		if _, err := s.genRepo.Create(ctx, tx, generation); err != nil {
			return err
		}

		output := &types.StageOutput{
			ID:           uuid.New(),
			StageID:      stage.ID,
			Format:       types.OutputFormatJSON,
			Content:      string(parsedRaw),
			GeneratedBy:  types.GeneratedByAI,
			GenerationID: &generation.ID,
		}
		if _, err := s.outputRepo.InsertVersion(ctx, tx, output); err != nil {
			return err
		}

		affected, err := s.stageRepo.ConditionalUpdate(ctx, tx, stage.ID,
			[]string{types.StageStatusGenerating},
			map[string]interface{}{
				"status": types.StageStatusReview,
				"data":   datatypes.JSON(parsedRaw),
			})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.BadStatus("stage left generating state during call")
		}

		updated, err = s.stageRepo.GetByProjectAndNumber(ctx, tx, projectID, number)
		return err
	})
	if err != nil {
		s.revert(ctx, stage.ID, priorStatus)
		return nil, err
	}

	s.log.Info("Stage generated",
		"project_id", projectID,
		"stage", cfg.Name,
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"strategy", strategy,
	)
	return updated, nil
}

func (s *generationService) resolveProvider(ctx context.Context, userID, projectID uuid.UUID) (*types.AIProviderConfig, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}
	if project.AIProviderID != nil {
		cfg, err := s.providerRepo.GetForUser(ctx, nil, *project.AIProviderID, userID)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	cfg, err := s.providerRepo.GetDefaultForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apierr.NoProvider("no AI provider configured")
	}
	return cfg, nil
}

// gatherContext loads the completed data of the stages this stage's prompt
// depends on, keyed by stage name.
func (s *generationService) gatherContext(ctx context.Context, projectID uuid.UUID, stageName string) (map[string]json.RawMessage, error) {
	deps := StageContextDeps[stageName]
	if len(deps) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var numbers []int
	for _, dep := range deps {
		if cfg, ok := types.StageConfigByName(dep); ok {
			numbers = append(numbers, cfg.Number)
		}
	}
	stages, err := s.stageRepo.GetByProjectAndNumbers(ctx, nil, projectID, numbers)
	if err != nil {
		return nil, err
	}
	contextData := make(map[string]json.RawMessage, len(stages))
	for _, st := range stages {
		if len(st.Data) == 0 {
			continue
		}
		contextData[st.StageName] = json.RawMessage(st.Data)
	}
	return contextData, nil
}

// failGeneration durably records the failed attempt and reverts the stage
// to its pre-claim status in one transaction. The audit row survives the
// visible rollback.
func (s *generationService) failGeneration(
	ctx context.Context,
	stage *types.Stage,
	priorStatus string,
	providerCfg *types.AIProviderConfig,
	template string,
	duration time.Duration,
	result *GenerateResult,
	status string,
	message string,
) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		generation := &types.Generation{
			ID:             uuid.New(),
			StageID:        stage.ID,
			ProviderID:     providerCfg.ID,
			Model:          result.Model,
			PromptTemplate: template,
			InputTokens:    result.InputTokens,
			OutputTokens:   result.OutputTokens,
			TotalTokens:    result.InputTokens + result.OutputTokens,
			EstimatedCost:  EstimateCost(result.Model, result.InputTokens, result.OutputTokens),
			DurationMs:     duration.Milliseconds(),
			Status:         status,
			ErrorMessage:   message,
		}
		if _, err := s.genRepo.Create(ctx, tx, generation); err != nil {
			return err
		}
		_, err := s.stageRepo.ConditionalUpdate(ctx, tx, stage.ID,
			[]string{types.StageStatusGenerating},
			map[string]interface{}{"status": priorStatus})
		return err
	})
	if err != nil {
		s.log.Error("Failed to record generation failure", "stage_id", stage.ID, "error", err)
		// Last resort so the stage is not stuck in generating.
		s.revert(ctx, stage.ID, priorStatus)
	}
}

func (s *generationService) revert(ctx context.Context, stageID uuid.UUID, priorStatus string) {
	if _, err := s.stageRepo.ConditionalUpdate(ctx, nil, stageID,
		[]string{types.StageStatusGenerating},
		map[string]interface{}{"status": priorStatus}); err != nil {
		s.log.Error("Failed to revert claimed stage", "stage_id", stageID, "error", err)
	}
}

func nowPtr() *time.Time {
	now := time.Now()
	return &now
}
