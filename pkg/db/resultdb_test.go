package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/yumyai/ggphylo/pkg/congruence"
)

func openTestDB(t *testing.T) *ResultDB {
	t.Helper()
	rdb, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func sampleRows() []congruence.ReportRow {
	score := congruence.Score{
		GroupID: "OG_000001", LeafCount: 5, Entropy: 0.3,
		Congruence: 0.85, Slope: 1.1, RValue: 0.9, HasRegression: true, Weight: 2,
	}
	return []congruence.ReportRow{
		{GroupID: "OG_000001", LeafCount: 5, Completeness: 1, Entropy: 0.3, Score: &score, Status: "scored"},
		{GroupID: "OG_000002", LeafCount: 3, Completeness: 0.6, Status: "excluded", Reason: "3 leaves"},
		{GroupID: "OG_000003", LeafCount: 1, Completeness: 0.2, Status: "dropped", Reason: "singleton"},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	rdb := openTestDB(t)
	ctx := context.Background()

	run := RunRecord{
		RunID:         "run-1",
		CreatedAt:     time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		GenomeCount:   5,
		GroupCount:    3,
		ScorableCount: 1,
		ExcludedCount: 1,
		Aggregate:     sql.NullFloat64{Float64: 0.85, Valid: true},
	}
	if err := rdb.SaveRun(ctx, run, sampleRows()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := rdb.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.GenomeCount != 5 || got.GroupCount != 3 || got.ScorableCount != 1 {
		t.Errorf("run = %+v", got)
	}
	if !got.Aggregate.Valid || got.Aggregate.Float64 != 0.85 {
		t.Errorf("aggregate = %+v", got.Aggregate)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
}

func TestGroupScores(t *testing.T) {
	rdb := openTestDB(t)
	ctx := context.Background()

	run := RunRecord{RunID: "run-1", CreatedAt: time.Now()}
	if err := rdb.SaveRun(ctx, run, sampleRows()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	scores, err := rdb.GroupScores(ctx, "run-1")
	if err != nil {
		t.Fatalf("GroupScores: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d rows, want 3", len(scores))
	}

	scored := scores[0]
	if scored.GroupID != "OG_000001" || scored.Status != "scored" {
		t.Errorf("first row = %+v", scored)
	}
	if !scored.Congruence.Valid || scored.Congruence.Float64 != 0.85 {
		t.Errorf("congruence = %+v", scored.Congruence)
	}
	if !scored.Slope.Valid || scored.Slope.Float64 != 1.1 {
		t.Errorf("slope = %+v", scored.Slope)
	}

	// Unscored rows carry NULL score columns, not zeroes.
	excluded := scores[1]
	if excluded.Congruence.Valid || excluded.Entropy.Valid {
		t.Errorf("excluded row should have NULL scores: %+v", excluded)
	}
	if excluded.Reason != "3 leaves" {
		t.Errorf("reason = %q", excluded.Reason)
	}
}

func TestSaveRunDuplicate(t *testing.T) {
	rdb := openTestDB(t)
	ctx := context.Background()

	run := RunRecord{RunID: "run-1", CreatedAt: time.Now()}
	if err := rdb.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := rdb.SaveRun(ctx, run, nil); err == nil {
		t.Fatalf("duplicate run id must fail")
	}
}

func TestGetRunMissing(t *testing.T) {
	rdb := openTestDB(t)
	if _, err := rdb.GetRun(context.Background(), "nope"); err == nil {
		t.Fatalf("missing run must fail")
	}
}
