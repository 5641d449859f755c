package phylo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/ggphylo/internal/apperr"
	"github.com/yumyai/ggphylo/logger"
	"github.com/yumyai/ggphylo/pkg/genome"
	"github.com/yumyai/ggphylo/pkg/homolog"
	"github.com/yumyai/ggphylo/pkg/tree"
)

// GroupResult is the per-group build artifact set.
type GroupResult struct {
	GroupID    string
	LeafCount  int
	Entropy    float64
	Alignment  []genome.FastaRecord // codon nucleotide alignment
	GeneTree   *tree.Tree           // leaves are genome|locus_tag
	GenomeTree *tree.Tree           // leaves collapsed to genome ids; nil when paralogous
}

// GroupFailure records a group excluded from consensus and congruence.
type GroupFailure struct {
	GroupID string
	Reason  string
	Err     error
}

// Orchestrator runs alignment and tree building for every retained group.
type Orchestrator struct {
	Aligner Aligner
	Builder TreeBuilder
	Workers int
	Jobs    *JobManager
}

// minTreeLeaves is the smallest member count worth aligning: a tree needs
// at least three leaves.
const minTreeLeaves = 3

// Run processes groups in parallel up to Workers. Per-group failures are
// isolated: they are logged, recorded, and never abort the run. Results
// come back sorted by group id so downstream stages are independent of
// scheduling order.
func (o *Orchestrator) Run(ctx context.Context, cat *genome.Catalog, groups []homolog.Group) ([]GroupResult, []GroupFailure) {
	if o.Jobs == nil {
		o.Jobs = NewJobManager()
	}
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	results := make(map[string]GroupResult)
	var failures []GroupFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, grp := range groups {
		o.Jobs.NewJob(grp.ID)
		if len(grp.Members) < minTreeLeaves {
			derr := &apperr.DataError{
				Subject: grp.ID,
				Msg:     fmt.Sprintf("%d members, need %d for a tree", len(grp.Members), minTreeLeaves),
			}
			o.Jobs.Skip(grp.ID, derr.Msg)
			mu.Lock()
			failures = append(failures, GroupFailure{GroupID: grp.ID, Reason: derr.Msg, Err: derr})
			mu.Unlock()
			continue
		}

		grp := grp
		g.Go(func() error {
			o.Jobs.SetRunning(grp.ID)
			res, err := o.processGroup(gctx, cat, grp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.Jobs.Fail(grp.ID, err)
				logger.Warn("group excluded", zap.String("group", grp.ID), zap.Error(err))
				failures = append(failures, GroupFailure{GroupID: grp.ID, Reason: err.Error(), Err: err})
				return nil // isolated: never abort the pool
			}
			o.Jobs.Complete(grp.ID)
			results[grp.ID] = res
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ordered := make([]GroupResult, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, results[id])
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].GroupID < failures[j].GroupID })

	return ordered, failures
}

func (o *Orchestrator) processGroup(ctx context.Context, cat *genome.Catalog, grp homolog.Group) (GroupResult, error) {
	prots := cat.ProteinFasta(grp.Members)
	nucl := make(map[string]string, len(grp.Members))
	for _, m := range grp.Members {
		g := cat.Gene(m)
		nucl[g.Key()] = g.Nucl
	}

	protAln, err := o.Aligner.Align(ctx, prots)
	if err != nil {
		return GroupResult{}, fmt.Errorf("alignment: %w", err)
	}

	codonAln, err := BackTranslate(protAln, nucl)
	if err != nil {
		return GroupResult{}, err
	}

	t, err := o.Builder.BuildTree(ctx, codonAln)
	if err != nil {
		return GroupResult{}, fmt.Errorf("tree building: %w", err)
	}
	if err := checkLeafSet(t, prots); err != nil {
		return GroupResult{}, err
	}

	res := GroupResult{
		GroupID:   grp.ID,
		LeafCount: t.NumLeaves(),
		Entropy:   MeanColumnEntropy(codonAln),
		Alignment: codonAln,
		GeneTree:  t,
	}

	// Collapse leaves to genome ids for consensus comparison. Groups with
	// same-genome paralogs keep GenomeTree nil and are later excluded from
	// scoring, not coerced.
	gt, err := t.RenameLeaves(func(leaf string) string {
		return strings.SplitN(leaf, "|", 2)[0]
	})
	if err == nil {
		res.GenomeTree = gt
	}

	return res, nil
}

func checkLeafSet(t *tree.Tree, recs []genome.FastaRecord) error {
	leaves := t.LeafSet()
	if len(leaves) != len(recs) {
		return fmt.Errorf("tree has %d leaves for %d sequences", len(leaves), len(recs))
	}
	for _, rec := range recs {
		if !leaves[rec.ID] {
			return fmt.Errorf("tree is missing leaf %q", rec.ID)
		}
	}
	return nil
}
