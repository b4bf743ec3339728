package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/grindloop/grind/pkg/models"
)

func newTestRun(id string) *Run {
	return &Run{
		ID:                id,
		Prompt:            "fix the failing tests",
		CompletionPromise: "TASK_COMPLETE",
		Model:             "claude-sonnet-4-5",
		MaxIterations:     50,
		CostCeiling:       10.0,
		StartedAt:         time.Now(),
	}
}

func TestCreateRun(t *testing.T) {
	db := setupTestDB(t)

	run := newTestRun("run-1")
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for existing run")
	}
	if got.Prompt != run.Prompt {
		t.Errorf("Prompt = %q, want %q", got.Prompt, run.Prompt)
	}
	if got.CompletionPromise != run.CompletionPromise {
		t.Errorf("CompletionPromise = %q, want %q", got.CompletionPromise, run.CompletionPromise)
	}
	if got.Model != run.Model {
		t.Errorf("Model = %q, want %q", got.Model, run.Model)
	}
	if got.MaxIterations != 50 {
		t.Errorf("MaxIterations = %d, want 50", got.MaxIterations)
	}
	if got.CostCeiling != 10.0 {
		t.Errorf("CostCeiling = %f, want 10.0", got.CostCeiling)
	}
	// New runs default to in-flight
	if got.Outcome != OutcomeRunning {
		t.Errorf("Outcome = %q, want %q", got.Outcome, OutcomeRunning)
	}
	if got.FinishedAt != nil {
		t.Error("FinishedAt should be nil for a new run")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetRun("no-such-run")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)

	// Insert with distinct start times so ordering is deterministic
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := newTestRun(fmt.Sprintf("run-%d", i))
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.CreateRun(run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	// Newest first
	if runs[0].ID != "run-2" || runs[2].ID != "run-0" {
		t.Errorf("runs not ordered newest first: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d runs with limit 2, want 2", len(limited))
	}
	if limited[0].ID != "run-2" {
		t.Errorf("limited list should start with newest, got %s", limited[0].ID)
	}
}

func TestActiveRun(t *testing.T) {
	db := setupTestDB(t)

	// No runs at all
	active, err := db.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected nil with no runs, got %+v", active)
	}

	finished := newTestRun("finished-run")
	finished.StartedAt = time.Now().Add(-time.Hour)
	if err := db.CreateRun(finished); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := db.FinishRun("finished-run", models.OutcomeCompleted, 3, 1.5, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	running := newTestRun("running-run")
	if err := db.CreateRun(running); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	active, err = db.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun failed: %v", err)
	}
	if active == nil {
		t.Fatal("expected active run, got nil")
	}
	if active.ID != "running-run" {
		t.Errorf("ActiveRun = %s, want running-run", active.ID)
	}
}

func TestFinishRun(t *testing.T) {
	db := setupTestDB(t)

	run := newTestRun("run-1")
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := db.FinishRun("run-1", models.OutcomeBudgetExceeded, 3, 6.0, "cost ceiling reached"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Outcome != string(models.OutcomeBudgetExceeded) {
		t.Errorf("Outcome = %q, want %q", got.Outcome, models.OutcomeBudgetExceeded)
	}
	if got.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", got.Iterations)
	}
	if got.Spend != 6.0 {
		t.Errorf("Spend = %f, want 6.0", got.Spend)
	}
	if got.Error != "cost ceiling reached" {
		t.Errorf("Error = %q, want %q", got.Error, "cost ceiling reached")
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set after FinishRun")
	}
}

func TestRecordIteration(t *testing.T) {
	db := setupTestDB(t)

	run := newTestRun("run-1")
	run.Model = "claude-sonnet-4-5"
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	started := time.Now().Add(-10 * time.Second)
	rec := models.IterationRecord{
		Index:            0,
		PromptSent:       "fix the failing tests",
		ResponseReceived: "working on it",
		CostDelta:        1.25,
		Model:            "claude-sonnet-4-5",
		StartedAt:        started,
		FinishedAt:       started.Add(5 * time.Second),
	}
	if err := db.RecordIteration("run-1", rec); err != nil {
		t.Fatalf("RecordIteration failed: %v", err)
	}

	rec2 := rec
	rec2.Index = 1
	rec2.ResponseReceived = "done\nTASK_COMPLETE"
	rec2.CostDelta = 0.75
	rec2.CompletionDetected = true
	rec2.Model = "claude-opus-4-1"
	if err := db.RecordIteration("run-1", rec2); err != nil {
		t.Fatalf("RecordIteration failed: %v", err)
	}

	// Run row tracks progress
	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", got.Iterations)
	}
	if got.Spend != 2.0 {
		t.Errorf("Spend = %f, want 2.0", got.Spend)
	}
	if got.Model != "claude-opus-4-1" {
		t.Errorf("Model = %q, want latest model claude-opus-4-1", got.Model)
	}
}

func TestListIterations(t *testing.T) {
	db := setupTestDB(t)

	run := newTestRun("run-1")
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := models.IterationRecord{
			Index:            i,
			PromptSent:       "fix the failing tests",
			ResponseReceived: fmt.Sprintf("response %d", i),
			CostDelta:        0.5,
			Model:            "claude-sonnet-4-5",
			StartedAt:        time.Now(),
			FinishedAt:       time.Now(),
		}
		if i == 2 {
			rec.CompletionDetected = true
		}
		if err := db.RecordIteration("run-1", rec); err != nil {
			t.Fatalf("RecordIteration failed: %v", err)
		}
	}

	recs, err := db.ListIterations("run-1")
	if err != nil {
		t.Fatalf("ListIterations failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d iterations, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Index != i {
			t.Errorf("iteration %d has Index %d", i, rec.Index)
		}
	}
	if recs[0].ResponseReceived != "response 0" {
		t.Errorf("ResponseReceived = %q, want %q", recs[0].ResponseReceived, "response 0")
	}
	if !recs[2].CompletionDetected {
		t.Error("last iteration should have CompletionDetected set")
	}
	if recs[0].CompletionDetected {
		t.Error("first iteration should not have CompletionDetected set")
	}

	// Unknown run yields empty, not error
	empty, err := db.ListIterations("no-such-run")
	if err != nil {
		t.Fatalf("ListIterations for unknown run failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no iterations for unknown run, got %d", len(empty))
	}
}

func TestRecordIteration_UnknownRun(t *testing.T) {
	db := setupTestDB(t)

	rec := models.IterationRecord{
		Index:      0,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	// Foreign key constraint rejects iterations for unknown runs
	if err := db.RecordIteration("no-such-run", rec); err == nil {
		t.Error("expected error recording iteration for unknown run")
	}
}
