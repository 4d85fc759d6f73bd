package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
	"github.com/cognicore/cvsift/pkg/cvsift/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, createdAt time.Time) store.Run {
	return store.Run{
		ID:                      id,
		DocID:                   "doc-1",
		Lang:                    "fr",
		CreatedAt:               createdAt,
		InputLines:              23,
		NonEmptyLines:           17,
		TotalBlocks:             4,
		KeepRate:                1.0,
		Coverage:                0.82,
		FalsePositivePrevention: 1.0,
		MeanConfidence:          0.84,
	}
}

func sampleResults(runID string) []store.BlockResult {
	return []store.BlockResult{
		{
			RunID:      runID,
			BlockIdx:   0,
			Preview:    "Développeur Full Stack TechCorp Solutions SAS",
			Category:   "experience",
			Decision:   "accept_experience",
			Confidence: 0.9,
			FinalScore: 5.8,
			ExpScore:   1.0,
			OrgScore:   2.0,
			DateScore:  1.8,
			Reasoning:  `["final_score_sufficient"]`,
		},
		{
			RunID:      runID,
			BlockIdx:   1,
			Preview:    "TOEFL - Score 105",
			Category:   "certification",
			Decision:   "route_certification",
			Confidence: 0.88,
			FinalScore: 0.5,
			Reasoning:  `["certification_signals"]`,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	if err := s.SaveRun(ctx, sampleRun("run-1", created), sampleResults("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run, results, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.DocID != "doc-1" || run.Lang != "fr" || run.TotalBlocks != 4 {
		t.Errorf("run = %+v", run)
	}
	if !run.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", run.CreatedAt, created)
	}
	if run.KeepRate != 1.0 || run.Coverage != 0.82 {
		t.Errorf("metrics = %+v", run)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].BlockIdx != 0 || results[1].BlockIdx != 1 {
		t.Errorf("results out of order: %+v", results)
	}
	if results[0].Decision != "accept_experience" || results[0].Confidence != 0.9 {
		t.Errorf("result 0 = %+v", results[0])
	}
	if results[1].Reasoning != `["certification_signals"]` {
		t.Errorf("result 1 reasoning = %q", results[1].Reasoning)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.GetRun(context.Background(), "absent")
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	s := openTestStore(t)

	err := s.SaveRun(context.Background(), store.Run{}, nil)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC())
	if err := s.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, run, nil); err == nil {
		t.Fatal("expected a constraint error for a duplicate run ID")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2 (limit)", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order = %s, %s, want run-c, run-b", runs[0].ID, runs[1].ID)
	}
}

func TestListRunsEmpty(t *testing.T) {
	s := openTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}
