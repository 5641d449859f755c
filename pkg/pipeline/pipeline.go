// Package pipeline wires the stages: catalog -> similarity graph -> homolog
// groups -> per-group trees -> consensus -> congruence -> report.
//
// Fatal stages (input loading, graph building, consensus building) abort
// the run; per-group failures in the parallel phase accumulate into the
// report instead.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/ggphylo/logger"
	"github.com/yumyai/ggphylo/pkg/config"
	"github.com/yumyai/ggphylo/pkg/congruence"
	"github.com/yumyai/ggphylo/pkg/consensus"
	"github.com/yumyai/ggphylo/pkg/db"
	"github.com/yumyai/ggphylo/pkg/genome"
	"github.com/yumyai/ggphylo/pkg/homolog"
	"github.com/yumyai/ggphylo/pkg/phylo"
	"github.com/yumyai/ggphylo/pkg/simgraph"
	"github.com/yumyai/ggphylo/pkg/tree"
)

// Deps carries the external-tool implementations so the whole pipeline can
// run against deterministic stand-ins in tests.
type Deps struct {
	Searcher  simgraph.Searcher
	Aligner   phylo.Aligner
	Builder   phylo.TreeBuilder
	Consensus consensus.Builder
	Results   *db.ResultDB // optional
}

// Outcome is everything a run produced.
type Outcome struct {
	RunID      string
	Catalog    *genome.Catalog
	Resolution *homolog.Resolution
	Results    []phylo.GroupResult
	Failures   []phylo.GroupFailure
	Consensus  *tree.Tree // nil when too few genomes to build one
	Summary    *congruence.Summary
	Rows       []congruence.ReportRow
}

// Run executes the full pipeline. The returned error is fatal; everything
// recoverable lands in Outcome.Rows with a status and reason.
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Outcome, error) {
	runID := uuid.New().String()
	out := &Outcome{RunID: runID}

	cat, err := genome.LoadDir(cfg.Input.FeatureDir)
	if err != nil {
		return nil, err
	}
	if cfg.Input.LocusAnnotation != "" {
		cat, err = genome.ApplyLocusAnnotation(cat, cfg.Input.LocusAnnotation)
		if err != nil {
			return nil, err
		}
	}
	out.Catalog = cat
	logger.Info("catalog loaded",
		zap.Int("genomes", cat.NumGenomes()),
		zap.Int("genes", cat.NumGenes()))

	hits, err := deps.Searcher.AllVsAll(ctx, cat.AllProteinFasta())
	if err != nil {
		return nil, err
	}
	graph, err := simgraph.Build(cat, hits, simgraph.Thresholds{
		MinIdentity: cfg.Search.MinIdentity,
		MinCoverage: cfg.Search.MinCoverage,
		MaxEvalue:   cfg.Search.MaxEvalue,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("similarity graph built",
		zap.Int("hits", len(hits)),
		zap.Int("edges", len(graph.Edges)))

	mode := homolog.Strict
	if cfg.Grouping.Mode == config.ModeParalogTolerant {
		mode = homolog.ParalogTolerant
	}
	resolution, err := homolog.Resolve(cat, graph, homolog.Options{
		Mode:            mode,
		MinCompleteness: cfg.Grouping.MinCompleteness,
	})
	if err != nil {
		return nil, err
	}
	out.Resolution = resolution
	retained := resolution.Retained()
	logger.Info("homolog groups resolved",
		zap.Int("groups", len(resolution.Groups)),
		zap.Int("singletons", resolution.Singletons),
		zap.Int("retained", len(retained)))

	orch := &phylo.Orchestrator{
		Aligner: deps.Aligner,
		Builder: deps.Builder,
		Workers: cfg.Phylo.Workers,
		Jobs:    phylo.NewJobManager(),
	}
	out.Results, out.Failures = orch.Run(ctx, cat, retained)
	counts := orch.Jobs.CountByStatus()
	logger.Info("per-group trees built",
		zap.Int("completed", counts[phylo.JobCompleted]),
		zap.Int("failed", counts[phylo.JobFailed]),
		zap.Int("skipped", counts[phylo.JobSkipped]))

	out.Summary = &congruence.Summary{}
	if cat.NumGenomes() >= 2 {
		cons, err := deps.Consensus.Build(ctx, consensus.Input{
			Trees:       genomeTrees(out.Results),
			Genomes:     cat.GenomeIDs(),
			GeneContent: geneContent(cat, resolution),
		})
		if err != nil {
			return nil, fmt.Errorf("consensus building: %w", err)
		}
		out.Consensus = cons

		out.Summary, err = congruence.Evaluate(cons, out.Results)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("too few genomes for a consensus tree; skipping congruence",
			zap.Int("genomes", cat.NumGenomes()))
	}

	out.Rows = buildRows(resolution, cfg.Grouping.MinCompleteness, out)

	if err := writeArtifacts(cfg.Output.Dir, out); err != nil {
		return nil, err
	}
	if deps.Results != nil {
		if err := saveRun(ctx, deps.Results, cat, out); err != nil {
			return nil, err
		}
	}

	if out.Summary.HasAggregate {
		logger.Info("locus congruence",
			zap.Float64("aggregate", out.Summary.Aggregate),
			zap.Int("scorable", len(out.Summary.Scores)),
			zap.Int("excluded", len(out.Summary.Excluded)))
	}
	return out, nil
}

func genomeTrees(results []phylo.GroupResult) []*tree.Tree {
	var trees []*tree.Tree
	for _, r := range results {
		if r.GenomeTree != nil {
			trees = append(trees, r.GenomeTree)
		}
	}
	return trees
}

func geneContent(cat *genome.Catalog, res *homolog.Resolution) map[string]map[string]bool {
	content := make(map[string]map[string]bool)
	for _, id := range cat.GenomeIDs() {
		content[id] = make(map[string]bool)
	}
	for _, g := range res.Groups {
		for _, m := range g.Members {
			content[cat.Gene(m).GenomeID][g.ID] = true
		}
	}
	return content
}

// buildRows classifies every resolved group for the report: scored,
// excluded (by the congruence engine), failed (orchestrator), or dropped
// (never submitted to phylogenetics).
func buildRows(res *homolog.Resolution, minCompleteness float64, out *Outcome) []congruence.ReportRow {
	scored := make(map[string]*congruence.Score)
	for i := range out.Summary.Scores {
		scored[out.Summary.Scores[i].GroupID] = &out.Summary.Scores[i]
	}
	excluded := make(map[string]string)
	for _, e := range out.Summary.Excluded {
		excluded[e.GroupID] = e.Reason
	}
	failed := make(map[string]string)
	for _, f := range out.Failures {
		failed[f.GroupID] = f.Reason
	}
	hasResult := make(map[string]bool)
	for _, r := range out.Results {
		hasResult[r.GroupID] = true
	}

	rows := make([]congruence.ReportRow, 0, len(res.Groups))
	for _, g := range res.Groups {
		row := congruence.ReportRow{
			GroupID:      g.ID,
			LeafCount:    len(g.Members),
			Completeness: g.Completeness,
		}
		switch {
		case scored[g.ID] != nil:
			s := scored[g.ID]
			row.Score = s
			row.LeafCount = s.LeafCount
			row.Entropy = s.Entropy
			row.Status = "scored"
		case excluded[g.ID] != "":
			row.Status = "excluded"
			row.Reason = excluded[g.ID]
		case hasResult[g.ID]:
			row.Status = "excluded"
			row.Reason = "no consensus tree to compare against"
		case failed[g.ID] != "":
			row.Status = "failed"
			row.Reason = failed[g.ID]
		case len(g.Members) < 2:
			row.Status = "dropped"
			row.Reason = "singleton"
		case g.Completeness < minCompleteness:
			row.Status = "dropped"
			row.Reason = fmt.Sprintf("completeness %.2f below minimum %.2f", g.Completeness, minCompleteness)
		default:
			row.Status = "dropped"
			row.Reason = "not retained for phylogenetics"
		}
		rows = append(rows, row)
	}
	return rows
}

func writeArtifacts(dir string, out *Outcome) error {
	groupsDir := filepath.Join(dir, "groups")
	if err := os.MkdirAll(groupsDir, 0o755); err != nil {
		return err
	}

	for _, r := range out.Results {
		alnPath := filepath.Join(groupsDir, r.GroupID+".codon.fna")
		fh, err := os.Create(alnPath)
		if err != nil {
			return err
		}
		if err := genome.WriteFasta(fh, r.Alignment); err != nil {
			fh.Close()
			return err
		}
		fh.Close()

		nwkPath := filepath.Join(groupsDir, r.GroupID+".nwk")
		if err := os.WriteFile(nwkPath, []byte(r.GeneTree.Newick()+"\n"), 0o644); err != nil {
			return err
		}
	}

	if out.Consensus != nil {
		consPath := filepath.Join(dir, "consensus.nwk")
		if err := os.WriteFile(consPath, []byte(out.Consensus.Newick()+"\n"), 0o644); err != nil {
			return err
		}
	}

	fh, err := os.Create(filepath.Join(dir, "congruence_report.tsv"))
	if err != nil {
		return err
	}
	defer fh.Close()
	return congruence.WriteReport(fh, out.Rows, out.Summary)
}

func saveRun(ctx context.Context, rdb *db.ResultDB, cat *genome.Catalog, out *Outcome) error {
	aggregate := sql.NullFloat64{}
	if out.Summary.HasAggregate {
		aggregate = sql.NullFloat64{Float64: out.Summary.Aggregate, Valid: true}
	}
	return rdb.SaveRun(ctx, db.RunRecord{
		RunID:         out.RunID,
		CreatedAt:     time.Now(),
		GenomeCount:   cat.NumGenomes(),
		GroupCount:    len(out.Resolution.Groups),
		ScorableCount: len(out.Summary.Scores),
		ExcludedCount: len(out.Summary.Excluded),
		Aggregate:     aggregate,
	}, out.Rows)
}
