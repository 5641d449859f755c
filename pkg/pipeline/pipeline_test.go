package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/yumyai/ggphylo/pkg/config"
	"github.com/yumyai/ggphylo/pkg/consensus"
	"github.com/yumyai/ggphylo/pkg/db"
	"github.com/yumyai/ggphylo/pkg/genome"
	"github.com/yumyai/ggphylo/pkg/simgraph"
	"github.com/yumyai/ggphylo/pkg/tree"
)

// tagSearcher links every pair of genes sharing a locus tag, standing in
// for an all-vs-all protein search.
type tagSearcher struct{}

func (tagSearcher) AllVsAll(_ context.Context, recs []genome.FastaRecord) ([]simgraph.Hit, error) {
	byTag := make(map[string][]string)
	for _, rec := range recs {
		parts := strings.SplitN(rec.ID, "|", 2)
		byTag[parts[1]] = append(byTag[parts[1]], rec.ID)
	}

	var hits []simgraph.Hit
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		ids := byTag[tag]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				hits = append(hits, simgraph.Hit{
					Query: ids[i], Subject: ids[j],
					Identity: 90, Coverage: 95, Evalue: 1e-50, BitScore: 200,
				})
			}
		}
	}
	return hits, nil
}

type passAligner struct{}

func (passAligner) Align(_ context.Context, recs []genome.FastaRecord) ([]genome.FastaRecord, error) {
	return recs, nil
}

// ladderBuilder produces the same ultrametric ladder over sorted leaf ids
// for every group, so all gene trees agree with each other.
type ladderBuilder struct{}

func (ladderBuilder) BuildTree(_ context.Context, aln []genome.FastaRecord) (*tree.Tree, error) {
	ids := make([]string, len(aln))
	for i, rec := range aln {
		ids[i] = rec.ID
	}
	sort.Strings(ids)
	frag := ids[0]
	for k := 1; k < len(ids); k++ {
		frag = "(" + frag + ":1," + ids[k] + ":" + strconv.Itoa(k) + ")"
	}
	return tree.ParseNewick(frag + ";")
}

// writeFixture lays out 5 genomes with 3 genes each: two core genes shared
// by every genome plus one private gene per genome.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, gid := range []string{"A", "B", "C", "D", "E"} {
		rows := []string{
			"core1\tc1\t1\t9\t+\tMKV\tATGAAAGTG",
			"core2\tc1\t401\t409\t+\tMKV\tATGAAAGTG",
			"solo_" + gid + "\tc1\t801\t809\t+\tMKV\tATGAAAGTG",
		}
		path := filepath.Join(dir, gid+".tsv")
		if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testConfig(t *testing.T, featureDir string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.FeatureDir = featureDir
	cfg.Output.Dir = t.TempDir()
	cfg.Phylo.Workers = 2
	return cfg
}

func testDeps() Deps {
	return Deps{
		Searcher:  tagSearcher{},
		Aligner:   passAligner{},
		Builder:   ladderBuilder{},
		Consensus: consensus.DistanceBuilder{},
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, writeFixture(t))
	out, err := Run(context.Background(), cfg, testDeps())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Catalog.NumGenomes() != 5 || out.Catalog.NumGenes() != 15 {
		t.Fatalf("catalog: %d genomes, %d genes", out.Catalog.NumGenomes(), out.Catalog.NumGenes())
	}

	// Two core groups spanning all genomes plus five private singletons.
	if len(out.Resolution.Groups) != 7 {
		t.Fatalf("got %d groups, want 7: %+v", len(out.Resolution.Groups), out.Resolution.Groups)
	}
	if out.Resolution.Singletons != 5 {
		t.Errorf("singletons = %d", out.Resolution.Singletons)
	}
	for _, id := range []string{"OG_000001", "OG_000002"} {
		found := false
		for _, g := range out.Resolution.Groups {
			if g.ID == id && len(g.Members) == 5 && g.Completeness == 1.0 {
				found = true
			}
		}
		if !found {
			t.Errorf("core group %s missing or incomplete", id)
		}
	}

	if len(out.Results) != 2 || len(out.Failures) != 0 {
		t.Fatalf("results = %d, failures = %+v", len(out.Results), out.Failures)
	}

	// All gene trees agree, so the consensus matches them and every core
	// group scores perfect congruence.
	if out.Consensus == nil || out.Consensus.NumLeaves() != 5 {
		t.Fatalf("consensus = %v", out.Consensus)
	}
	if len(out.Summary.Scores) != 2 {
		t.Fatalf("scores = %+v", out.Summary.Scores)
	}
	for _, s := range out.Summary.Scores {
		if s.Congruence != 1.0 {
			t.Errorf("group %s congruence = %v, want 1.0", s.GroupID, s.Congruence)
		}
		if s.LeafCount != 5 || s.Weight != 2 {
			t.Errorf("group %s leafCount = %d, weight = %v", s.GroupID, s.LeafCount, s.Weight)
		}
	}
	if !out.Summary.HasAggregate || out.Summary.Aggregate != 1.0 {
		t.Errorf("aggregate = %v", out.Summary.Aggregate)
	}

	// Report rows cover every group.
	if len(out.Rows) != 7 {
		t.Fatalf("rows = %+v", out.Rows)
	}
	statuses := make(map[string]int)
	for _, row := range out.Rows {
		statuses[row.Status]++
	}
	if statuses["scored"] != 2 || statuses["dropped"] != 5 {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestRunSingleSpanningGroup(t *testing.T) {
	// One connected gene per genome, the rest private: the run must yield
	// exactly one scorable 5-leaf group and, with identical stub trees,
	// perfect congruence.
	dir := t.TempDir()
	for _, gid := range []string{"A", "B", "C", "D", "E"} {
		rows := []string{"core\tc1\t1\t9\t+\tMKV\tATGAAAGTG"}
		for i := 1; i <= 5; i++ {
			rows = append(rows, fmt.Sprintf("solo%d_%s\tc1\t%d\t%d\t+\tMKV\tATGAAAGTG",
				i, gid, 100*i+1, 100*i+9))
		}
		path := filepath.Join(dir, gid+".tsv")
		if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := Run(context.Background(), testConfig(t, dir), testDeps())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Resolution.Groups) != 26 || out.Resolution.Singletons != 25 {
		t.Fatalf("groups = %d, singletons = %d", len(out.Resolution.Groups), out.Resolution.Singletons)
	}
	if len(out.Summary.Scores) != 1 {
		t.Fatalf("scores = %+v", out.Summary.Scores)
	}
	s := out.Summary.Scores[0]
	if s.LeafCount != 5 || s.Congruence != 1.0 {
		t.Errorf("score = %+v", s)
	}
	if !out.Summary.HasAggregate || out.Summary.Aggregate != 1.0 {
		t.Errorf("aggregate = %v", out.Summary.Aggregate)
	}
}

func TestRunArtifacts(t *testing.T) {
	cfg := testConfig(t, writeFixture(t))
	out, err := Run(context.Background(), cfg, testDeps())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{
		"groups/OG_000001.codon.fna",
		"groups/OG_000001.nwk",
		"groups/OG_000002.codon.fna",
		"groups/OG_000002.nwk",
		"consensus.nwk",
		"congruence_report.tsv",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "consensus.nwk"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(raw)) != out.Consensus.Newick() {
		t.Errorf("consensus.nwk does not match the in-memory tree")
	}

	report, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "congruence_report.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(report), "# aggregate_congruence\t1.0000") {
		t.Errorf("report missing aggregate line:\n%s", report)
	}
}

func TestRunSavesResults(t *testing.T) {
	cfg := testConfig(t, writeFixture(t))
	rdb, err := db.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer rdb.Close()

	deps := testDeps()
	deps.Results = rdb
	out, err := Run(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx := context.Background()
	rec, err := rdb.GetRun(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.GenomeCount != 5 || rec.GroupCount != 7 || rec.ScorableCount != 2 {
		t.Errorf("run record = %+v", rec)
	}
	if !rec.Aggregate.Valid || rec.Aggregate.Float64 != 1.0 {
		t.Errorf("aggregate = %+v", rec.Aggregate)
	}

	scores, err := rdb.GroupScores(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GroupScores: %v", err)
	}
	if len(scores) != 7 {
		t.Errorf("stored %d rows, want 7", len(scores))
	}
}

func TestRunDeterministic(t *testing.T) {
	featureDir := writeFixture(t)

	first, err := Run(context.Background(), testConfig(t, featureDir), testDeps())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(context.Background(), testConfig(t, featureDir), testDeps())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Errorf("report rows differ between runs")
	}
	if first.Consensus.Newick() != second.Consensus.Newick() {
		t.Errorf("consensus differs between runs:\n%s\n%s",
			first.Consensus.Newick(), second.Consensus.Newick())
	}
}

func TestRunLocusAnnotation(t *testing.T) {
	featureDir := writeFixture(t)
	// Window genome A down to its two core genes.
	annot := filepath.Join(featureDir, "locus.txt")
	if err := os.WriteFile(annot, []byte("A\tc1\t1\t500\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, featureDir)
	cfg.Input.LocusAnnotation = annot
	out, err := Run(context.Background(), cfg, testDeps())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Catalog.NumGenes() != 14 {
		t.Errorf("catalog genes = %d, want 14 after windowing", out.Catalog.NumGenes())
	}
	if _, ok := out.Catalog.Index("A|solo_A"); ok {
		t.Errorf("A's private gene lies outside the locus window")
	}
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))
	if _, err := Run(context.Background(), cfg, testDeps()); err == nil {
		t.Fatalf("missing feature directory must fail the run")
	}
}
