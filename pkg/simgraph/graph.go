package simgraph

import (
	"fmt"
	"sort"

	"github.com/yumyai/ggphylo/pkg/genome"
)

// Edge connects two genes (arena indices, A < B) that hit each other above
// threshold. Directed search results are merged symmetrically, keeping the
// best bitscore seen in either direction.
type Edge struct {
	A, B     int
	Score    float64
	Identity float64
	Coverage float64
}

// Thresholds filter raw hits before they become edges.
type Thresholds struct {
	MinIdentity float64 // percent
	MinCoverage float64 // percent
	MaxEvalue   float64
}

// Graph is the undirected similarity graph over catalog gene indices.
type Graph struct {
	N     int
	Edges []Edge
}

// Build filters hits, resolves ids against the catalog, discards self-hits
// and collapses duplicate pairs. Edges come out sorted (A, then B) so the
// graph is identical across runs for identical hit sets.
func Build(cat *genome.Catalog, hits []Hit, th Thresholds) (*Graph, error) {
	type pair struct{ a, b int }
	best := make(map[pair]Edge)

	for _, h := range hits {
		if h.Query == h.Subject {
			continue
		}
		if h.Identity < th.MinIdentity || h.Coverage < th.MinCoverage {
			continue
		}
		if th.MaxEvalue > 0 && h.Evalue > th.MaxEvalue {
			continue
		}

		qi, ok := cat.Index(h.Query)
		if !ok {
			return nil, fmt.Errorf("hit references unknown gene %q", h.Query)
		}
		si, ok := cat.Index(h.Subject)
		if !ok {
			return nil, fmt.Errorf("hit references unknown gene %q", h.Subject)
		}
		if qi == si {
			continue
		}

		a, b := qi, si
		if a > b {
			a, b = b, a
		}
		key := pair{a, b}
		if prev, seen := best[key]; !seen || h.BitScore > prev.Score {
			best[key] = Edge{A: a, B: b, Score: h.BitScore, Identity: h.Identity, Coverage: h.Coverage}
		}
	}

	edges := make([]Edge, 0, len(best))
	for _, e := range best {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	return &Graph{N: cat.NumGenes(), Edges: edges}, nil
}

// Adjacency returns, per gene index, the edges touching it.
func (g *Graph) Adjacency() [][]Edge {
	adj := make([][]Edge, g.N)
	for _, e := range g.Edges {
		adj[e.A] = append(adj[e.A], e)
		adj[e.B] = append(adj[e.B], e)
	}
	return adj
}
