// Package homolog partitions the similarity graph into homolog groups:
// connected components, with an optional reciprocal-best-hit split when a
// component carries more than one gene from the same genome.
package homolog

import (
	"fmt"
	"sort"

	"github.com/yumyai/ggphylo/pkg/genome"
	"github.com/yumyai/ggphylo/pkg/simgraph"
)

// Mode selects how multi-copy genomes inside one component are handled.
type Mode int

const (
	// Strict splits components so each group holds at most one gene per
	// genome, seeded by reciprocal best hits.
	Strict Mode = iota
	// ParalogTolerant keeps components whole, paralogs and all.
	ParalogTolerant
)

// Group is one homolog family. Members are catalog arena indices, sorted.
type Group struct {
	ID           string
	Members      []int
	Completeness float64
	ParalogSplit bool // true when the group came out of a component split
}

// Options configure the resolver.
type Options struct {
	Mode Mode
	// MinCompleteness drops groups representing too few genomes from
	// phylogenetic processing (they stay in the report).
	MinCompleteness float64
}

// Resolution is the resolver output: a partition of all catalog genes.
type Resolution struct {
	Groups     []Group // every group, singletons included
	Singletons int
	opts       Options
}

// Retained returns the groups eligible for alignment and tree building:
// non-singleton, above the completeness floor.
func (r *Resolution) Retained() []Group {
	var kept []Group
	for _, g := range r.Groups {
		if len(g.Members) < 2 {
			continue
		}
		if g.Completeness < r.opts.MinCompleteness {
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

// Resolve partitions the catalog's genes using the similarity graph.
func Resolve(cat *genome.Catalog, graph *simgraph.Graph, opts Options) (*Resolution, error) {
	if graph.N != cat.NumGenes() {
		return nil, fmt.Errorf("graph covers %d genes, catalog holds %d", graph.N, cat.NumGenes())
	}

	uf := newUnionFind(graph.N)
	for _, e := range graph.Edges {
		uf.union(e.A, e.B)
	}

	components := make(map[int][]int)
	for i := 0; i < graph.N; i++ {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var memberSets [][]int
	var splitFlags []bool
	for _, root := range roots {
		comp := components[root]
		sort.Ints(comp)
		if opts.Mode == Strict && hasGenomeDuplicates(cat, comp) {
			for _, sub := range splitComponent(cat, graph, comp) {
				memberSets = append(memberSets, sub)
				splitFlags = append(splitFlags, true)
			}
		} else {
			memberSets = append(memberSets, comp)
			splitFlags = append(splitFlags, false)
		}
	}

	res := &Resolution{opts: opts}
	total := float64(cat.NumGenomes())
	for i, members := range memberSets {
		sort.Ints(members)
		if len(members) == 1 {
			res.Singletons++
		}
		res.Groups = append(res.Groups, Group{
			Members:      members,
			Completeness: float64(countGenomes(cat, members)) / total,
			ParalogSplit: splitFlags[i],
		})
	}

	// Deterministic ids: order groups by their smallest member index.
	sort.Slice(res.Groups, func(i, j int) bool {
		return res.Groups[i].Members[0] < res.Groups[j].Members[0]
	})
	for i := range res.Groups {
		res.Groups[i].ID = fmt.Sprintf("OG_%06d", i+1)
	}

	return res, nil
}

func hasGenomeDuplicates(cat *genome.Catalog, members []int) bool {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		gid := cat.Gene(m).GenomeID
		if seen[gid] {
			return true
		}
		seen[gid] = true
	}
	return false
}

func countGenomes(cat *genome.Catalog, members []int) int {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[cat.Gene(m).GenomeID] = true
	}
	return len(seen)
}

// splitComponent breaks a component holding same-genome paralogs into
// genome-disjoint subgroups. Reciprocal best hits (processed best score
// first) seed the subgroups; every remaining gene joins the subgroup behind
// its highest-scoring edge that does not already hold its genome, ties
// broken by subgroup id. Genes with no admissible edge stay singletons.
func splitComponent(cat *genome.Catalog, graph *simgraph.Graph, comp []int) [][]int {
	inComp := make(map[int]bool, len(comp))
	for _, m := range comp {
		inComp[m] = true
	}

	var edges []simgraph.Edge
	for _, e := range graph.Edges {
		if inComp[e.A] && inComp[e.B] {
			edges = append(edges, e)
		}
	}

	// Best partner per (gene, partner genome).
	best := make(map[int]map[string]simgraph.Edge)
	record := func(from, to int, e simgraph.Edge) {
		gid := cat.Gene(to).GenomeID
		if best[from] == nil {
			best[from] = make(map[string]simgraph.Edge)
		}
		if prev, ok := best[from][gid]; !ok || e.Score > prev.Score {
			best[from][gid] = e
		}
	}
	for _, e := range edges {
		record(e.A, e.B, e)
		record(e.B, e.A, e)
	}

	other := func(e simgraph.Edge, from int) int {
		if e.A == from {
			return e.B
		}
		return e.A
	}
	isReciprocalBest := func(e simgraph.Edge) bool {
		ba, ok := best[e.A][cat.Gene(e.B).GenomeID]
		if !ok || other(ba, e.A) != e.B {
			return false
		}
		bb, ok := best[e.B][cat.Gene(e.A).GenomeID]
		return ok && other(bb, e.B) == e.A
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	// Seed subgroups from RBH pairs; refuse unions that would put two genes
	// of one genome in the same subgroup.
	sub := newUnionFind(cat.NumGenes())
	genomes := make(map[int]map[string]bool)
	genomeSet := func(x int) map[string]bool {
		root := sub.find(x)
		if genomes[root] == nil {
			genomes[root] = map[string]bool{cat.Gene(x).GenomeID: true}
		}
		return genomes[root]
	}
	tryUnion := func(a, b int) bool {
		ga, gb := genomeSet(a), genomeSet(b)
		for gid := range gb {
			if ga[gid] {
				return false
			}
		}
		ra, rb := sub.find(a), sub.find(b)
		if ra == rb {
			return false
		}
		sub.union(a, b)
		merged := genomes[sub.find(a)]
		if merged == nil {
			merged = make(map[string]bool)
		}
		for gid := range ga {
			merged[gid] = true
		}
		for gid := range gb {
			merged[gid] = true
		}
		genomes[sub.find(a)] = merged
		return true
	}

	for _, e := range edges {
		if isReciprocalBest(e) {
			tryUnion(e.A, e.B)
		}
	}

	// Attach leftover genes to their best-scoring admissible subgroup.
	for _, m := range comp {
		if len(genomeSet(m)) > 1 || sub.find(m) != m {
			continue // already seeded into a subgroup
		}
		candidates := make([]simgraph.Edge, 0, 4)
		for _, e := range edges {
			if e.A == m || e.B == m {
				candidates = append(candidates, e)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return sub.find(other(candidates[i], m)) < sub.find(other(candidates[j], m))
		})
		for _, e := range candidates {
			if tryUnion(m, other(e, m)) {
				break
			}
		}
	}

	grouped := make(map[int][]int)
	for _, m := range comp {
		root := sub.find(m)
		grouped[root] = append(grouped[root], m)
	}
	subRoots := make([]int, 0, len(grouped))
	for root := range grouped {
		subRoots = append(subRoots, root)
	}
	sort.Ints(subRoots)

	out := make([][]int, 0, len(subRoots))
	for _, root := range subRoots {
		out = append(out, grouped[root])
	}
	return out
}
