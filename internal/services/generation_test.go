package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
)

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }

type fakeProviderClient struct {
	result *GenerateResult
	err    error
}

func (f *fakeProviderClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func fakeFactory(client ProviderClient) ProviderClientFactory {
	return func(cfg *types.AIProviderConfig, log *logger.Logger) (ProviderClient, error) {
		return client, nil
	}
}

func newGenerationEnv(t *testing.T, client ProviderClient, limiter RateLimiter) (*testEnv, GenerationService, uuid.UUID, *types.Project) {
	t.Helper()
	env := newTestEnv(t)
	userID := uuid.New()
	project := env.createProject(t, userID)

	if _, err := env.providerRepo.Create(context.Background(), nil, &types.AIProviderConfig{
		ID:              uuid.New(),
		UserID:          userID,
		Provider:        types.ProviderAnthropic,
		Label:           "default",
		APIKeyEncrypted: "irrelevant-for-tests",
		DefaultModel:    "claude-sonnet-4",
		IsDefault:       true,
	}); err != nil {
		t.Fatalf("create provider: %v", err)
	}

	if limiter == nil {
		limiter = allowAllLimiter{}
	}
	svc := NewGenerationService(env.db, env.log,
		env.stageRepo, env.outputRepo, env.genRepo, env.projectRepo, env.providerRepo,
		limiter, fakeFactory(client))
	return env, svc, userID, project
}

func TestGenerateStage_SuccessCommitsOutputAndAudit(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{
		Content:      "```json\n{\"name\": \"My App\", \"features\": []}\n```",
		Model:        "claude-sonnet-4",
		StopReason:   StopReasonEnd,
		InputTokens:  1200,
		OutputTokens: 400,
	}}
	env, svc, userID, project := newGenerationEnv(t, client, nil)
	ctx := context.Background()

	stage, err := svc.GenerateStage(ctx, userID, project.ID, 1, "a todo app")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if stage.Status != types.StageStatusReview {
		t.Fatalf("expected review got %q", stage.Status)
	}
	if !strings.Contains(string(stage.Data), `"My App"`) {
		t.Fatalf("parsed data not stored: %s", stage.Data)
	}

	gens, err := env.genRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 1 {
		t.Fatalf("expected 1 generation row got %d", len(gens))
	}
	g := gens[0]
	if g.Status != types.GenerationStatusSuccess {
		t.Fatalf("expected success got %q", g.Status)
	}
	if g.TotalTokens != 1600 {
		t.Fatalf("expected 1600 total tokens got %d", g.TotalTokens)
	}
	if g.EstimatedCost <= 0 {
		t.Fatalf("expected positive cost")
	}

	output, err := env.outputRepo.GetActive(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("get active output: %v", err)
	}
	if output == nil || output.Version != 1 {
		t.Fatalf("expected active output version 1, got %+v", output)
	}
	if output.GeneratedBy != types.GeneratedByAI {
		t.Fatalf("expected ai output, got %q", output.GeneratedBy)
	}
}

func TestGenerateStage_TruncationRevertsAndRecords(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{
		Content:      `{"partial":`,
		Model:        "claude-sonnet-4",
		StopReason:   StopReasonMaxTokens,
		InputTokens:  1000,
		OutputTokens: 64000,
	}}
	env, svc, userID, project := newGenerationEnv(t, client, nil)
	ctx := context.Background()

	_, err := svc.GenerateStage(ctx, userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeTruncated) {
		t.Fatalf("expected TRUNCATED got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	if stage.Status != types.StageStatusActive {
		t.Fatalf("stage should revert to pre-claim status, got %q", stage.Status)
	}
	if len(stage.Data) != 0 {
		t.Fatalf("no data should be committed, got %s", stage.Data)
	}

	gens, err := env.genRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 1 {
		t.Fatalf("expected 1 audit row got %d", len(gens))
	}
	if gens[0].Status != types.GenerationStatusError {
		t.Fatalf("expected error status got %q", gens[0].Status)
	}
	if !strings.Contains(gens[0].ErrorMessage, "truncated") {
		t.Fatalf("expected truncation message, got %q", gens[0].ErrorMessage)
	}
}

func TestGenerateStage_UnparseableOutputRevertsAndRecords(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{
		Content:    "I could not produce structured output, sorry.",
		Model:      "claude-sonnet-4",
		StopReason: StopReasonEnd,
	}}
	env, svc, userID, project := newGenerationEnv(t, client, nil)

	_, err := svc.GenerateStage(context.Background(), userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeParseError) {
		t.Fatalf("expected PARSE_ERROR got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	if stage.Status != types.StageStatusActive {
		t.Fatalf("stage should revert, got %q", stage.Status)
	}
}

func TestGenerateStage_ProviderErrorRevertsAndRecords(t *testing.T) {
	client := &fakeProviderClient{err: errors.New("connection refused")}
	env, svc, userID, project := newGenerationEnv(t, client, nil)
	ctx := context.Background()

	_, err := svc.GenerateStage(ctx, userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeGenerationFailed) {
		t.Fatalf("expected GENERATION_FAILED got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	if stage.Status != types.StageStatusActive {
		t.Fatalf("stage should revert, got %q", stage.Status)
	}
	gens, err := env.genRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 1 || gens[0].Status != types.GenerationStatusError {
		t.Fatalf("expected one error audit row, got %+v", gens)
	}
}

func TestGenerateStage_TimeoutRecordedAsTimeout(t *testing.T) {
	client := &fakeProviderClient{err: context.DeadlineExceeded}
	env, svc, userID, project := newGenerationEnv(t, client, nil)
	ctx := context.Background()

	_, err := svc.GenerateStage(ctx, userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeGenerationFailed) {
		t.Fatalf("expected GENERATION_FAILED got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	gens, err := env.genRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 1 || gens[0].Status != types.GenerationStatusTimeout {
		t.Fatalf("expected timeout audit row, got %+v", gens)
	}
}

func TestGenerateStage_ExportStageHasNoGeneration(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{Content: "{}", StopReason: StopReasonEnd}}
	env, svc, userID, project := newGenerationEnv(t, client, nil)

	_, err := svc.GenerateStage(context.Background(), userID, project.ID, 9, "")
	if !apierr.Is(err, apierr.CodeInvalidStage) {
		t.Fatalf("expected INVALID_STAGE got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 9)
	if stage.Status != types.StageStatusLocked {
		t.Fatalf("export stage must be untouched, got %q", stage.Status)
	}
}

func TestGenerateStage_NoProviderRevertsWithoutAuditRow(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{Content: "{}", StopReason: StopReasonEnd}}
	env := newTestEnv(t)
	userID := uuid.New()
	project := env.createProject(t, userID)
	ctx := context.Background()

	svc := NewGenerationService(env.db, env.log,
		env.stageRepo, env.outputRepo, env.genRepo, env.projectRepo, env.providerRepo,
		allowAllLimiter{}, fakeFactory(client))

	_, err := svc.GenerateStage(ctx, userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeNoProvider) {
		t.Fatalf("expected NO_PROVIDER got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	if stage.Status != types.StageStatusActive {
		t.Fatalf("stage should revert, got %q", stage.Status)
	}
	// Nothing was attempted against a provider: no audit row.
	gens, err := env.genRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 0 {
		t.Fatalf("expected no audit rows, got %d", len(gens))
	}
}

func TestGenerateStage_RateLimitedBeforeClaim(t *testing.T) {
	client := &fakeProviderClient{result: &GenerateResult{Content: "{}", StopReason: StopReasonEnd}}
	env, svc, userID, project := newGenerationEnv(t, client, denyLimiter{})

	_, err := svc.GenerateStage(context.Background(), userID, project.ID, 1, "")
	if !apierr.Is(err, apierr.CodeRateLimited) {
		t.Fatalf("expected RATE_LIMITED got %v", err)
	}

	stage := env.stageByNumber(t, project.ID, 1)
	if stage.Status != types.StageStatusActive {
		t.Fatalf("limited request must not claim the stage, got %q", stage.Status)
	}
}
