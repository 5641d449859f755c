// Package congruence scores each gene tree against the consensus topology
// restricted to the genomes the gene tree actually contains.
//
// The primary score is Robinson-Foulds based: 1 minus the bipartition
// symmetric difference normalized by the maximum 2(n-3), clamped to [0,1].
// A supplemental regression congruence (slope and r of per-pair patristic
// distances, gene tree vs restricted consensus) is reported alongside but
// never enters the aggregate.
package congruence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yumyai/ggphylo/pkg/phylo"
	"github.com/yumyai/ggphylo/pkg/tree"
)

// minScorableLeaves is the smallest leaf set with non-trivial bipartition
// information; smaller trees are excluded, not scored as zero.
const minScorableLeaves = 4

// Score is the congruence result for one homolog group.
type Score struct {
	GroupID       string
	LeafCount     int
	Entropy       float64
	Congruence    float64
	Slope         float64
	RValue        float64
	HasRegression bool
	Weight        float64 // leafCount - 3
}

// Exclusion names a group left out of the aggregate and why.
type Exclusion struct {
	GroupID string
	Reason  string
}

// Summary aggregates scores across the locus.
type Summary struct {
	Scores       []Score
	Excluded     []Exclusion
	Aggregate    float64 // weighted mean, weight = leafCount - 3
	HasAggregate bool
}

// Evaluate scores every group result against the consensus tree. Results
// must already be sorted by group id (the orchestrator guarantees this);
// the summary preserves that order.
func Evaluate(consensus *tree.Tree, results []phylo.GroupResult) (*Summary, error) {
	if consensus == nil {
		return nil, fmt.Errorf("nil consensus tree")
	}
	consensusLeaves := consensus.LeafSet()

	sum := &Summary{}
	var weights, scores []float64

	for _, res := range results {
		if res.GenomeTree == nil {
			sum.Excluded = append(sum.Excluded, Exclusion{res.GroupID, "paralogous leaves cannot map 1:1 to genomes"})
			continue
		}

		leafSet := res.GenomeTree.LeafSet()
		if len(leafSet) < minScorableLeaves {
			sum.Excluded = append(sum.Excluded, Exclusion{
				res.GroupID,
				fmt.Sprintf("%d leaves, congruence undefined below %d", len(leafSet), minScorableLeaves),
			})
			continue
		}
		missing := ""
		for l := range leafSet {
			if !consensusLeaves[l] {
				missing = l
				break
			}
		}
		if missing != "" {
			sum.Excluded = append(sum.Excluded, Exclusion{
				res.GroupID,
				fmt.Sprintf("leaf %q absent from consensus tree", missing),
			})
			continue
		}

		restricted, err := consensus.Restrict(leafSet)
		if err != nil {
			sum.Excluded = append(sum.Excluded, Exclusion{res.GroupID, "consensus restriction: " + err.Error()})
			continue
		}

		dist, err := tree.RFDistance(res.GenomeTree, restricted)
		if err != nil {
			sum.Excluded = append(sum.Excluded, Exclusion{res.GroupID, "RF distance: " + err.Error()})
			continue
		}

		score := Score{
			GroupID:    res.GroupID,
			LeafCount:  len(leafSet),
			Entropy:    res.Entropy,
			Congruence: clamp01(1 - dist),
			Weight:     float64(len(leafSet) - 3),
		}
		score.Slope, score.RValue, score.HasRegression = regressionCongruence(res.GenomeTree, restricted)

		sum.Scores = append(sum.Scores, score)
		weights = append(weights, score.Weight)
		scores = append(scores, score.Congruence)
	}

	if len(scores) > 0 {
		sum.Aggregate = stat.Mean(scores, weights)
		sum.HasAggregate = true
	}
	return sum, nil
}

// regressionCongruence regresses gene-tree patristic distances on the
// restricted consensus distances over all leaf pairs. Identical vectors
// short-circuit to (1, 1); fewer than 3 pairs yields no regression.
func regressionCongruence(gene, ref *tree.Tree) (slope, r float64, ok bool) {
	gNames, gDist := gene.DistanceMatrix()
	rNames, rDist := ref.DistanceMatrix()
	if len(gNames) != len(rNames) {
		return 0, 0, false
	}

	var xs, ys []float64
	identical := true
	for i := range gNames {
		for j := i + 1; j < len(gNames); j++ {
			xs = append(xs, rDist[i][j])
			ys = append(ys, gDist[i][j])
			if rDist[i][j] != gDist[i][j] {
				identical = false
			}
		}
	}
	if identical {
		return 1, 1, true
	}
	if len(xs) < 3 {
		return 0, 0, false
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(beta) || math.IsNaN(r) {
		// Degenerate reference distances (zero variance) carry no signal.
		return 0, 0, false
	}
	return beta, r, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
