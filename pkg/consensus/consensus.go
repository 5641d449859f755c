// Package consensus builds one reference topology over the full genome set
// from gene trees with unequal, partially overlapping leaf sets.
//
// The builder averages patristic distances across every gene tree
// containing a genome pair; pairs never co-observed in any tree fall back
// to gene-content Jaccard distance scaled to the observed range. UPGMA over
// that matrix gives a deterministic consensus, total over partial trees,
// with lexicographic tie-breaks.
package consensus

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/yumyai/ggphylo/pkg/tree"
)

// Input carries everything the builder may need.
type Input struct {
	Trees   []*tree.Tree // genome-leaf gene trees, partial leaf sets allowed
	Genomes []string     // the full genome set
	// GeneContent maps genome id -> group ids present in that genome; the
	// presence/absence fallback for pairs no tree covers.
	GeneContent map[string]map[string]bool
}

// Builder produces the consensus topology. Implementations must be
// deterministic given identical input tree set and order.
type Builder interface {
	Build(ctx context.Context, in Input) (*tree.Tree, error)
}

// DistanceBuilder is the default in-process implementation.
type DistanceBuilder struct{}

// minMultiTrees is the number of multi-genome trees below which the builder
// ignores tree distances entirely and uses gene content alone.
const minMultiTrees = 2

func (DistanceBuilder) Build(_ context.Context, in Input) (*tree.Tree, error) {
	genomes := append([]string(nil), in.Genomes...)
	sort.Strings(genomes)
	if len(genomes) < 2 {
		return nil, fmt.Errorf("consensus needs at least 2 genomes, got %d", len(genomes))
	}
	idx := make(map[string]int, len(genomes))
	for i, g := range genomes {
		idx[g] = i
	}

	n := len(genomes)
	sum := mat(n)
	count := mat(n)

	multi := 0
	for _, t := range in.Trees {
		if t.NumLeaves() >= 2 {
			multi++
		}
	}
	if multi >= minMultiTrees {
		for _, t := range in.Trees {
			names, dm := t.DistanceMatrix()
			for i, a := range names {
				ai, ok := idx[a]
				if !ok {
					return nil, fmt.Errorf("gene tree leaf %q is not a known genome", a)
				}
				for j := i + 1; j < len(names); j++ {
					bi := idx[names[j]]
					sum[ai][bi] += dm[i][j]
					sum[bi][ai] += dm[i][j]
					count[ai][bi]++
					count[bi][ai]++
				}
			}
		}
	}

	dist := mat(n)
	maxObserved := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if count[i][j] > 0 {
				d := sum[i][j] / count[i][j]
				dist[i][j], dist[j][i] = d, d
				if d > maxObserved {
					maxObserved = d
				}
			}
		}
	}
	if maxObserved == 0 {
		maxObserved = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if count[i][j] == 0 {
				d := jaccardDistance(in.GeneContent[genomes[i]], in.GeneContent[genomes[j]]) * maxObserved
				dist[i][j], dist[j][i] = d, d
			}
		}
	}

	nwk := upgma(genomes, dist)
	return tree.ParseNewick(nwk)
}

func mat(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func jaccardDistance(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, 0
	for g := range a {
		union++
		if b[g] {
			inter++
		}
	}
	for g := range b {
		if !a[g] {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return 1 - float64(inter)/float64(union)
}

type cluster struct {
	frag    string  // newick fragment without branch length
	height  float64 // ultrametric height of the cluster root
	minName string  // lexicographically smallest member, for tie-breaks
	size    int
	members []int
}

// upgma is a plain average-linkage agglomeration. Ties on distance are
// broken by the pair's smallest member names so the output is stable.
func upgma(names []string, dist [][]float64) string {
	clusters := make([]*cluster, len(names))
	for i, name := range names {
		clusters[i] = &cluster{frag: name, minName: name, size: 1, members: []int{i}}
	}

	avg := func(a, b *cluster) float64 {
		total := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				total += dist[i][j]
			}
		}
		return total / float64(len(a.members)*len(b.members))
	}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		bd := avg(clusters[0], clusters[1])
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := avg(clusters[i], clusters[j])
				if d < bd || (d == bd && pairKey(clusters[i], clusters[j]) < pairKey(clusters[bi], clusters[bj])) {
					bi, bj, bd = i, j, d
				}
			}
		}

		a, b := clusters[bi], clusters[bj]
		if b.minName < a.minName {
			a, b = b, a
		}
		h := bd / 2
		merged := &cluster{
			frag: "(" + a.frag + ":" + fmtLen(h-a.height) + "," +
				b.frag + ":" + fmtLen(h-b.height) + ")",
			height:  h,
			minName: a.minName,
			size:    a.size + b.size,
			members: append(append([]int(nil), a.members...), b.members...),
		}

		next := clusters[:0]
		for k, c := range clusters {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}

	return clusters[0].frag + ";"
}

func pairKey(a, b *cluster) string {
	if b.minName < a.minName {
		a, b = b, a
	}
	return a.minName + "\x00" + b.minName
}

func fmtLen(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
