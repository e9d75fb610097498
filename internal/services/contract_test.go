package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/types"
)

func TestRegenerateContracts_RequiresAllGenerativeStagesComplete(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())

	_, err := env.contracts.RegenerateContracts(context.Background(), project.ID)
	if !apierr.Is(err, apierr.CodeBadStatus) {
		t.Fatalf("expected BAD_STATUS got %v", err)
	}
}

func TestRegenerateContracts_ReplacesExistingSet(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	env.completeAllGenerativeStages(t, project.ID)
	ctx := context.Background()

	stale := env.insertContract(t, project.ID, "stale contract", types.ContractStatusDone, 1, nil)

	rows, err := env.contracts.RegenerateContracts(ctx, project.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	// Minimal payloads produce the foundation set.
	if len(rows) != 4 {
		t.Fatalf("expected 4 contracts got %d", len(rows))
	}
	for _, row := range rows {
		if row.Status != types.ContractStatusReady {
			t.Fatalf("contract %q: expected ready got %q", row.Title, row.Status)
		}
	}

	if _, err := env.contracts.GetContract(ctx, project.ID, stale.ID); !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("stale contract should be gone, got %v", err)
	}
}

func TestContractLifecycle_TransitionsAndEvents(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	c := env.insertContract(t, project.ID, "build login", types.ContractStatusReady, 1, nil)

	started, err := env.contracts.Start(ctx, project.ID, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != types.ContractStatusInProgress || started.StartedAt == nil {
		t.Fatalf("expected in_progress with started_at, got %+v", started)
	}

	submitted, err := env.contracts.Submit(ctx, project.ID, c.ID, "implemented login form")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != types.ContractStatusInReview {
		t.Fatalf("expected in_review got %q", submitted.Status)
	}
	if submitted.ReviewSummary != "implemented login form" {
		t.Fatalf("summary not stored: %q", submitted.ReviewSummary)
	}

	changed, err := env.contracts.RequestChanges(ctx, project.ID, c.ID, "missing validation")
	if err != nil {
		t.Fatalf("request changes: %v", err)
	}
	if changed.Status != types.ContractStatusInProgress {
		t.Fatalf("expected in_progress got %q", changed.Status)
	}
	if changed.ReviewFeedback != "missing validation" {
		t.Fatalf("feedback not stored: %q", changed.ReviewFeedback)
	}

	if _, err := env.contracts.Submit(ctx, project.ID, c.ID, "added validation"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	approved, err := env.contracts.Approve(ctx, project.ID, c.ID, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != types.ContractStatusDone || approved.CompletedAt == nil || approved.ReviewedAt == nil {
		t.Fatalf("expected done with timestamps, got %+v", approved)
	}

	events, err := env.contracts.ListEvents(ctx, project.ID, c.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	wantTypes := []string{
		types.EventStarted,
		types.EventSubmitted,
		types.EventChangesRequested,
		types.EventSubmitted,
		types.EventApproved,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events got %d", len(wantTypes), len(events))
	}
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Fatalf("event %d: expected %q got %q", i, wantTypes[i], ev.Type)
		}
	}
}

func TestContractTransitions_WrongStatusIsBadStatus(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	c := env.insertContract(t, project.ID, "backlogged", types.ContractStatusBacklog, 1, nil)

	if _, err := env.contracts.Start(ctx, project.ID, c.ID); !apierr.Is(err, apierr.CodeBadStatus) {
		t.Fatalf("start on backlog: expected BAD_STATUS got %v", err)
	}
	if _, err := env.contracts.Submit(ctx, project.ID, c.ID, "x"); !apierr.Is(err, apierr.CodeBadStatus) {
		t.Fatalf("submit on backlog: expected BAD_STATUS got %v", err)
	}
	if _, err := env.contracts.Approve(ctx, project.ID, c.ID, ""); !apierr.Is(err, apierr.CodeBadStatus) {
		t.Fatalf("approve on backlog: expected BAD_STATUS got %v", err)
	}

	got, err := env.contracts.GetContract(ctx, project.ID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.ContractStatusBacklog {
		t.Fatalf("rejected transitions must not mutate, got %q", got.Status)
	}
}

func TestApprove_CascadeUnlocksDependents(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	a := env.insertContract(t, project.ID, "A", types.ContractStatusReady, 1, nil)
	b := env.insertContract(t, project.ID, "B", types.ContractStatusBacklog, 2, []string{a.ID.String()})
	c := env.insertContract(t, project.ID, "C", types.ContractStatusBacklog, 3, []string{a.ID.String(), b.ID.String()})

	approve := func(id uuid.UUID) {
		t.Helper()
		if _, err := env.contracts.Start(ctx, project.ID, id); err != nil {
			t.Fatalf("start: %v", err)
		}
		if _, err := env.contracts.Submit(ctx, project.ID, id, "done"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := env.contracts.Approve(ctx, project.ID, id, ""); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	approve(a.ID)

	bRow, err := env.contracts.GetContract(ctx, project.ID, b.ID)
	if err != nil {
		t.Fatalf("get B: %v", err)
	}
	if bRow.Status != types.ContractStatusReady {
		t.Fatalf("B should unlock after A is done, got %q", bRow.Status)
	}
	cRow, err := env.contracts.GetContract(ctx, project.ID, c.ID)
	if err != nil {
		t.Fatalf("get C: %v", err)
	}
	if cRow.Status != types.ContractStatusBacklog {
		t.Fatalf("C still waits on B, got %q", cRow.Status)
	}

	approve(b.ID)

	cRow, err = env.contracts.GetContract(ctx, project.ID, c.ID)
	if err != nil {
		t.Fatalf("get C: %v", err)
	}
	if cRow.Status != types.ContractStatusReady {
		t.Fatalf("C should unlock after A and B, got %q", cRow.Status)
	}
}

func TestNextReady_LowestPriorityWins(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	env.insertContract(t, project.ID, "later", types.ContractStatusReady, 5, nil)
	first := env.insertContract(t, project.ID, "first", types.ContractStatusReady, 2, nil)
	env.insertContract(t, project.ID, "blocked", types.ContractStatusBacklog, 1, []string{uuid.NewString()})

	next, err := env.contracts.NextReady(ctx, project.ID)
	if err != nil {
		t.Fatalf("next ready: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected %q, got %+v", first.Title, next)
	}
}

func TestNextReady_EmptyQueueReturnsNil(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())

	next, err := env.contracts.NextReady(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("next ready: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil, got %+v", next)
	}
}

func TestListContracts_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, uuid.New())
	ctx := context.Background()

	env.insertContract(t, project.ID, "ready one", types.ContractStatusReady, 1, nil)
	env.insertContract(t, project.ID, "backlog one", types.ContractStatusBacklog, 2, []string{uuid.NewString()})

	ready, err := env.contracts.ListContracts(ctx, project.ID, types.ContractStatusReady)
	if err != nil {
		t.Fatalf("list ready: %v", err)
	}
	if len(ready) != 1 || ready[0].Title != "ready one" {
		t.Fatalf("expected the ready contract, got %+v", ready)
	}

	all, err := env.contracts.ListContracts(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 contracts got %d", len(all))
	}

	if _, err := env.contracts.ListContracts(ctx, project.ID, "bogus"); !apierr.Is(err, apierr.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST got %v", err)
	}
}
