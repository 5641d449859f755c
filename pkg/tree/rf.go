package tree

import "fmt"

// RFDistance computes the Robinson-Foulds distance between two trees over
// the same leaf set, normalized by the maximum possible bipartition count
// 2(n-3) and clamped to [0,1]. Trees with fewer than 4 shared leaves carry
// no non-trivial bipartition information and are rejected.
func RFDistance(a, b *Tree) (float64, error) {
	la, lb := a.LeafSet(), b.LeafSet()
	if len(la) != len(lb) {
		return 0, fmt.Errorf("leaf sets differ in size: %d vs %d", len(la), len(lb))
	}
	for l := range la {
		if !lb[l] {
			return 0, fmt.Errorf("leaf %q present in only one tree", l)
		}
	}
	n := len(la)
	if n < 4 {
		return 0, fmt.Errorf("RF distance undefined for %d leaves", n)
	}

	sa := a.Bipartitions()
	sb := b.Bipartitions()
	inB := make(map[string]bool, len(sb))
	for _, s := range sb {
		inB[s] = true
	}

	diff := 0
	for _, s := range sa {
		if !inB[s] {
			diff++
		}
	}
	inA := make(map[string]bool, len(sa))
	for _, s := range sa {
		inA[s] = true
	}
	for _, s := range sb {
		if !inA[s] {
			diff++
		}
	}

	d := float64(diff) / float64(2*(n-3))
	if d < 0 {
		d = 0
	}
	if d > 1 {
		d = 1
	}
	return d, nil
}
