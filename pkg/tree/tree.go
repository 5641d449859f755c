// Package tree implements phylogenetic trees over an arena of node records
// addressed by index. Pruning a leaf or collapsing a degree-2 internal node
// is an index rewrite, not pointer surgery, which keeps restriction (the hot
// operation of the congruence engine) simple and allocation-light.
package tree

import (
	"fmt"
	"sort"
	"strings"
)

const noNode = -1

type node struct {
	parent     int
	firstChild int
	nextSib    int
	length     float64
	name       string
}

// Tree is a rooted tree; unrooted semantics (bipartitions, RF) are derived
// views. Immutable after construction.
type Tree struct {
	nodes []node
	root  int
}

func (t *Tree) isLeaf(i int) bool { return t.nodes[i].firstChild == noNode }

func (t *Tree) children(i int) []int {
	var out []int
	for c := t.nodes[i].firstChild; c != noNode; c = t.nodes[c].nextSib {
		out = append(out, c)
	}
	return out
}

// Leaves returns leaf names in depth-first order.
func (t *Tree) Leaves() []string {
	var out []string
	var walk func(int)
	walk = func(i int) {
		if t.isLeaf(i) {
			out = append(out, t.nodes[i].name)
			return
		}
		for _, c := range t.children(i) {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// LeafSet returns the set of leaf names.
func (t *Tree) LeafSet() map[string]bool {
	set := make(map[string]bool)
	for _, l := range t.Leaves() {
		set[l] = true
	}
	return set
}

// NumLeaves returns the leaf count.
func (t *Tree) NumLeaves() int { return len(t.Leaves()) }

// RenameLeaves returns a copy with every leaf renamed through fn. Two
// leaves mapping to the same name is an error: the caller would silently
// lose a taxon otherwise.
func (t *Tree) RenameLeaves(fn func(string) string) (*Tree, error) {
	out := &Tree{nodes: append([]node(nil), t.nodes...), root: t.root}
	seen := make(map[string]bool)
	for i := range out.nodes {
		if out.isLeaf(i) {
			name := fn(out.nodes[i].name)
			if seen[name] {
				return nil, fmt.Errorf("leaf rename collision on %q", name)
			}
			seen[name] = true
			out.nodes[i].name = name
		}
	}
	return out, nil
}

// Restrict induces the subtree over the kept leaf names: leaves outside the
// set are removed and every resulting degree-2 internal node is collapsed,
// summing branch lengths. The result has exactly the kept leaves and no
// degree-2 internals.
func (t *Tree) Restrict(keep map[string]bool) (*Tree, error) {
	out := &Tree{}

	var build func(i int) (int, float64, bool)
	build = func(i int) (int, float64, bool) {
		n := t.nodes[i]
		if t.isLeaf(i) {
			if !keep[n.name] {
				return noNode, 0, false
			}
			idx := out.addNode(n.name, n.length)
			return idx, n.length, true
		}

		var kept []int
		for _, c := range t.children(i) {
			if idx, _, ok := build(c); ok {
				kept = append(kept, idx)
			}
		}
		switch len(kept) {
		case 0:
			return noNode, 0, false
		case 1:
			// Collapse this degree-2 node into its single surviving child.
			out.nodes[kept[0]].length += n.length
			return kept[0], out.nodes[kept[0]].length, true
		default:
			idx := out.addNode(n.name, n.length)
			out.attachChildren(idx, kept)
			return idx, n.length, true
		}
	}

	rootIdx, _, ok := build(t.root)
	if !ok {
		return nil, fmt.Errorf("restriction removes every leaf")
	}
	out.root = rootIdx
	out.nodes[rootIdx].parent = noNode
	out.nodes[rootIdx].length = 0

	kept := out.NumLeaves()
	want := 0
	for _, l := range t.Leaves() {
		if keep[l] {
			want++
		}
	}
	if kept != want {
		return nil, fmt.Errorf("restriction kept %d leaves, expected %d", kept, want)
	}
	return out, nil
}

func (t *Tree) addNode(name string, length float64) int {
	t.nodes = append(t.nodes, node{
		parent:     noNode,
		firstChild: noNode,
		nextSib:    noNode,
		length:     length,
		name:       name,
	})
	return len(t.nodes) - 1
}

func (t *Tree) attachChildren(parent int, kids []int) {
	prev := noNode
	for _, k := range kids {
		t.nodes[k].parent = parent
		if prev == noNode {
			t.nodes[parent].firstChild = k
		} else {
			t.nodes[prev].nextSib = k
		}
		prev = k
	}
}

// Bipartitions returns the non-trivial splits of the (unrooted view of the)
// tree as canonical strings: the split side not containing the
// lexicographically smallest leaf, sorted and comma-joined. Duplicates from
// the two root edges collapse naturally.
func (t *Tree) Bipartitions() []string {
	leaves := t.Leaves()
	if len(leaves) < 4 {
		return nil
	}
	all := make(map[string]bool, len(leaves))
	smallest := leaves[0]
	for _, l := range leaves {
		all[l] = true
		if l < smallest {
			smallest = l
		}
	}

	seen := make(map[string]bool)
	var below func(i int) []string
	below = func(i int) []string {
		if t.isLeaf(i) {
			return []string{t.nodes[i].name}
		}
		var out []string
		for _, c := range t.children(i) {
			out = append(out, below(c)...)
		}
		if i != t.root && len(out) >= 2 && len(leaves)-len(out) >= 2 {
			seen[canonicalSplit(out, all, smallest)] = true
		}
		return out
	}
	below(t.root)

	splits := make([]string, 0, len(seen))
	for s := range seen {
		splits = append(splits, s)
	}
	sort.Strings(splits)
	return splits
}

func canonicalSplit(side []string, all map[string]bool, smallest string) string {
	inSide := make(map[string]bool, len(side))
	for _, s := range side {
		inSide[s] = true
	}
	var chosen []string
	if inSide[smallest] {
		for l := range all {
			if !inSide[l] {
				chosen = append(chosen, l)
			}
		}
	} else {
		chosen = append(chosen, side...)
	}
	sort.Strings(chosen)
	return strings.Join(chosen, ",")
}

type chainEntry struct {
	node int
	dist float64 // distance from the leaf up to this ancestor
}

// DistanceMatrix returns patristic distances between all leaf pairs, with
// leaf names sorted. Branch lengths absent from the source Newick default
// to 1, so topology-only trees yield edge-count distances.
func (t *Tree) DistanceMatrix() ([]string, [][]float64) {
	names := t.Leaves()
	sort.Strings(names)
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}

	// Ancestor chains per leaf, with cumulative distance from the leaf.
	chains := make(map[int][]chainEntry)
	leafNode := make(map[string]int)
	for i := range t.nodes {
		if t.isLeaf(i) {
			leafNode[t.nodes[i].name] = i
			var chain []chainEntry
			d := 0.0
			for n := i; n != noNode; n = t.nodes[n].parent {
				chain = append(chain, chainEntry{node: n, dist: d})
				d += t.nodes[n].length
			}
			chains[i] = chain
		}
	}

	dm := make([][]float64, len(names))
	for i := range dm {
		dm[i] = make([]float64, len(names))
	}
	for i, a := range names {
		for j := i + 1; j < len(names); j++ {
			b := names[j]
			d := pathDistance(chains[leafNode[a]], chains[leafNode[b]])
			dm[i][j] = d
			dm[j][i] = d
		}
	}
	return names, dm
}

func pathDistance(ca, cb []chainEntry) float64 {
	bDist := make(map[int]float64, len(cb))
	for _, e := range cb {
		bDist[e.node] = e.dist
	}
	for _, e := range ca {
		if d, ok := bDist[e.node]; ok {
			return e.dist + d
		}
	}
	return 0
}
