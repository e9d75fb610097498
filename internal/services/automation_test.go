package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/types"
)

func TestGetConfig_DefaultsWhenUnset(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())

	cfg, err := env.automation.GetConfig(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	want := types.DefaultAutomationConfig()
	if cfg.TrustLevel != want.TrustLevel {
		t.Fatalf("expected trust level %q got %q", want.TrustLevel, cfg.TrustLevel)
	}
	if cfg.BatchLimits.MaxTasks != want.BatchLimits.MaxTasks {
		t.Fatalf("expected maxTasks %d got %d", want.BatchLimits.MaxTasks, cfg.BatchLimits.MaxTasks)
	}
}

func TestUpdateConfig_ValidatesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	cfg := types.DefaultAutomationConfig()
	cfg.TrustLevel = "semi_auto"
	cfg.BatchLimits.MaxTasks = 25

	if _, err := env.automation.UpdateConfig(ctx, project.ID, cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}
	stored, err := env.automation.GetConfig(ctx, project.ID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if stored.TrustLevel != "semi_auto" || stored.BatchLimits.MaxTasks != 25 {
		t.Fatalf("config not persisted: %+v", stored)
	}

	bad := types.DefaultAutomationConfig()
	bad.TrustLevel = "yolo"
	if _, err := env.automation.UpdateConfig(ctx, project.ID, bad); !apierr.Is(err, apierr.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST for trust level, got %v", err)
	}

	bad = types.DefaultAutomationConfig()
	bad.BatchLimits.MaxTasks = 0
	if _, err := env.automation.UpdateConfig(ctx, project.ID, bad); !apierr.Is(err, apierr.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST for maxTasks, got %v", err)
	}
}

func TestStartBatch_SnapshotsConfig(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	cfg := types.DefaultAutomationConfig()
	cfg.TrustLevel = "full_auto"
	if _, err := env.automation.UpdateConfig(ctx, project.ID, cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}

	run, err := env.automation.StartBatch(ctx, project.ID)
	if err != nil {
		t.Fatalf("start batch: %v", err)
	}
	if run.Status != types.BatchStatusRunning {
		t.Fatalf("expected running got %q", run.Status)
	}
	if run.StartedAt == nil {
		t.Fatalf("expected started_at set")
	}
	if !strings.Contains(string(run.Config), "full_auto") {
		t.Fatalf("config snapshot missing, got %s", run.Config)
	}

	latest, err := env.automation.LatestBatch(ctx, project.ID)
	if err != nil {
		t.Fatalf("latest batch: %v", err)
	}
	if latest == nil || latest.ID != run.ID {
		t.Fatalf("expected latest batch %s, got %+v", run.ID, latest)
	}
}

func TestStopBatch_OnlyRunningBatchesStop(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	run, err := env.automation.StartBatch(ctx, project.ID)
	if err != nil {
		t.Fatalf("start batch: %v", err)
	}

	stopped, err := env.automation.StopBatch(ctx, project.ID, run.ID)
	if err != nil {
		t.Fatalf("stop batch: %v", err)
	}
	if stopped.Status != types.BatchStatusStopped || stopped.CompletedAt == nil {
		t.Fatalf("expected stopped with completed_at, got %+v", stopped)
	}

	// Stopping again reports not-found and leaves the row alone.
	if _, err := env.automation.StopBatch(ctx, project.ID, run.ID); !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND got %v", err)
	}
	after, err := env.automation.GetBatch(ctx, project.ID, run.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if after.Status != types.BatchStatusStopped {
		t.Fatalf("second stop must not mutate, got %q", after.Status)
	}
}

func TestRecordQualityGates_AttachesReportRegardlessOfStatus(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	c := env.insertContract(t, project.ID, "backlogged", types.ContractStatusBacklog, 1, nil)

	yes := true
	updated, err := env.automation.RecordQualityGates(ctx, project.ID, c.ID, types.QualityReport{
		Compiles:  &yes,
		TestsPass: &yes,
		Passed:    true,
	})
	if err != nil {
		t.Fatalf("record gates: %v", err)
	}
	if len(updated.QualityReport) == 0 {
		t.Fatalf("expected quality report stored")
	}
	if updated.Status != types.ContractStatusBacklog {
		t.Fatalf("recording gates must not change status, got %q", updated.Status)
	}
}

func TestBulkApprove_ApprovesOnlyPassedReports(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	passed := env.insertContract(t, project.ID, "passed", types.ContractStatusInReview, 1, nil)
	failed := env.insertContract(t, project.ID, "failed", types.ContractStatusInReview, 2, nil)
	noReport := env.insertContract(t, project.ID, "no report", types.ContractStatusInReview, 3, nil)

	yes, no := true, false
	if _, err := env.automation.RecordQualityGates(ctx, project.ID, passed.ID, types.QualityReport{Compiles: &yes, Passed: true}); err != nil {
		t.Fatalf("record passed: %v", err)
	}
	if _, err := env.automation.RecordQualityGates(ctx, project.ID, failed.ID, types.QualityReport{Compiles: &no, Passed: false}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	result, err := env.automation.BulkApprove(ctx, project.ID)
	if err != nil {
		t.Fatalf("bulk approve: %v", err)
	}
	if result.Approved != 1 || result.Total != 3 {
		t.Fatalf("expected 1/3 approved, got %d/%d", result.Approved, result.Total)
	}

	got, err := env.contracts.GetContract(ctx, project.ID, passed.ID)
	if err != nil {
		t.Fatalf("get passed: %v", err)
	}
	if got.Status != types.ContractStatusDone {
		t.Fatalf("passed contract should be done, got %q", got.Status)
	}
	for _, id := range []uuid.UUID{failed.ID, noReport.ID} {
		got, err := env.contracts.GetContract(ctx, project.ID, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != types.ContractStatusInReview {
			t.Fatalf("unpassed contract must stay in review, got %q", got.Status)
		}
	}

	events, err := env.contracts.ListEvents(ctx, project.ID, passed.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Actor != contractActorBatch {
		t.Fatalf("expected one automation-actor approval event, got %+v", events)
	}
}

func TestWorkflowPrompt_ReflectsConfig(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	cfg := types.DefaultAutomationConfig()
	cfg.QualityGates.LintClean = true
	cfg.Boundaries.ProtectedPaths = []string{"infra/"}
	cfg.BatchLimits.MaxTasks = 7
	if _, err := env.automation.UpdateConfig(ctx, project.ID, cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}

	prompt, err := env.automation.WorkflowPrompt(ctx, project.ID)
	if err != nil {
		t.Fatalf("workflow prompt: %v", err)
	}
	for _, want := range []string{
		project.Name,
		"- Code compiles",
		"- Tests pass",
		"- Lint clean",
		"- Do NOT modify .env files",
		"- Do NOT modify files in: infra/",
		"Maximum tasks per run: 7",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBulkApprove_CascadesDependentsToReady(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	blocker := env.insertContract(t, project.ID, "blocker", types.ContractStatusInReview, 1, nil)
	dependent := env.insertContract(t, project.ID, "dependent", types.ContractStatusBacklog, 2,
		[]string{blocker.ID.String()})

	yes := true
	if _, err := env.automation.RecordQualityGates(ctx, project.ID, blocker.ID, types.QualityReport{Compiles: &yes, Passed: true}); err != nil {
		t.Fatalf("record report: %v", err)
	}
	if _, err := env.automation.BulkApprove(ctx, project.ID); err != nil {
		t.Fatalf("bulk approve: %v", err)
	}

	got, err := env.contracts.GetContract(ctx, project.ID, dependent.ID)
	if err != nil {
		t.Fatalf("get dependent: %v", err)
	}
	if got.Status != types.ContractStatusReady {
		t.Fatalf("dependent should be ready after its blocker is done, got %q", got.Status)
	}
}
