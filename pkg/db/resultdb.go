// Package db persists run results (group partition, per-group scores,
// aggregate congruence) to a SQLite database so runs can be compared and
// queried after the fact.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yumyai/ggphylo/pkg/congruence"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id               TEXT PRIMARY KEY,
	created_at           TEXT NOT NULL,
	genome_count         INTEGER NOT NULL,
	group_count          INTEGER NOT NULL,
	scorable_count       INTEGER NOT NULL,
	excluded_count       INTEGER NOT NULL,
	aggregate_congruence REAL
);
CREATE TABLE IF NOT EXISTS group_scores (
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	group_id     TEXT NOT NULL,
	leaf_count   INTEGER NOT NULL,
	completeness REAL NOT NULL,
	entropy      REAL,
	congruence   REAL,
	slope        REAL,
	r_value      REAL,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, group_id)
);
`

// ResultDB wraps the sqlite handle.
type ResultDB struct {
	db *sql.DB
}

// Open opens (creating if needed) the result database at path.
func Open(path string) (*ResultDB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := sqldb.Exec(schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("init result db schema: %w", err)
	}
	return &ResultDB{db: sqldb}, nil
}

// Close closes the underlying handle.
func (r *ResultDB) Close() error { return r.db.Close() }

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID         string
	CreatedAt     time.Time
	GenomeCount   int
	GroupCount    int
	ScorableCount int
	ExcludedCount int
	Aggregate     sql.NullFloat64
}

// SaveRun stores the run header and every report row in one transaction.
func (r *ResultDB) SaveRun(ctx context.Context, run RunRecord, rows []congruence.ReportRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, genome_count, group_count, scorable_count, excluded_count, aggregate_congruence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.UTC().Format(time.RFC3339),
		run.GenomeCount, run.GroupCount, run.ScorableCount, run.ExcludedCount, run.Aggregate,
	); err != nil {
		return err
	}

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO group_scores (run_id, group_id, leaf_count, completeness, entropy, congruence, slope, r_value, status, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stm.Close()

	for _, row := range rows {
		entropy, congr, slope, rval := scoreColumns(row)
		if _, err := stm.ExecContext(ctx,
			run.RunID, row.GroupID, row.LeafCount, row.Completeness,
			entropy, congr, slope, rval, row.Status, row.Reason,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scoreColumns(row congruence.ReportRow) (entropy, congr, slope, rval sql.NullFloat64) {
	if row.Status != "scored" || row.Score == nil {
		return
	}
	entropy = sql.NullFloat64{Float64: row.Entropy, Valid: true}
	congr = sql.NullFloat64{Float64: row.Score.Congruence, Valid: true}
	if row.Score.HasRegression {
		slope = sql.NullFloat64{Float64: row.Score.Slope, Valid: true}
		rval = sql.NullFloat64{Float64: row.Score.RValue, Valid: true}
	}
	return
}

// GetRun fetches one run header.
func (r *ResultDB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	stm, err := r.db.PrepareContext(ctx,
		`SELECT run_id, created_at, genome_count, group_count, scorable_count, excluded_count, aggregate_congruence
		 FROM runs WHERE run_id = ?`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	var rec RunRecord
	var created string
	if err := stm.QueryRowContext(ctx, runID).Scan(
		&rec.RunID, &created, &rec.GenomeCount, &rec.GroupCount,
		&rec.ScorableCount, &rec.ExcludedCount, &rec.Aggregate,
	); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &rec, nil
}

// GroupScores returns the stored rows for a run, ordered by group id.
func (r *ResultDB) GroupScores(ctx context.Context, runID string) ([]StoredScore, error) {
	stm, err := r.db.PrepareContext(ctx,
		`SELECT group_id, leaf_count, completeness, entropy, congruence, slope, r_value, status, reason
		 FROM group_scores WHERE run_id = ? ORDER BY group_id`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredScore
	for rows.Next() {
		var s StoredScore
		if err := rows.Scan(&s.GroupID, &s.LeafCount, &s.Completeness,
			&s.Entropy, &s.Congruence, &s.Slope, &s.RValue, &s.Status, &s.Reason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StoredScore is a group_scores row as read back from the database.
type StoredScore struct {
	GroupID      string
	LeafCount    int
	Completeness float64
	Entropy      sql.NullFloat64
	Congruence   sql.NullFloat64
	Slope        sql.NullFloat64
	RValue       sql.NullFloat64
	Status       string
	Reason       string
}
