package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseNewick parses a single Newick tree. Branch lengths are optional and
// default to 1 so topology-only trees still produce usable distances.
// Internal node labels (bootstrap/support values) are accepted and kept.
func ParseNewick(s string) (*Tree, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty newick string")
	}
	if !strings.HasSuffix(s, ";") {
		return nil, fmt.Errorf("newick string missing terminating ';'")
	}

	p := &newickParser{input: s[:len(s)-1]}
	t := &Tree{}
	root, err := p.parseClade(t)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing characters at offset %d", p.pos)
	}
	t.root = root
	t.nodes[root].parent = noNode
	t.nodes[root].length = 0

	if err := validateLeaves(t); err != nil {
		return nil, err
	}
	return t, nil
}

func validateLeaves(t *Tree) error {
	seen := make(map[string]bool)
	for _, l := range t.Leaves() {
		if l == "" {
			return fmt.Errorf("unnamed leaf")
		}
		if seen[l] {
			return fmt.Errorf("duplicate leaf %q", l)
		}
		seen[l] = true
	}
	return nil
}

type newickParser struct {
	input string
	pos   int
}

func (p *newickParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *newickParser) parseClade(t *Tree) (int, error) {
	var kids []int
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.parseClade(t)
			if err != nil {
				return noNode, err
			}
			kids = append(kids, child)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		if p.peek() != ')' {
			return noNode, fmt.Errorf("expected ')' at offset %d", p.pos)
		}
		p.pos++
	}

	name := p.parseLabel()
	length := 1.0
	if p.peek() == ':' {
		p.pos++
		raw := p.parseNumber()
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return noNode, fmt.Errorf("bad branch length %q at offset %d", raw, p.pos)
		}
		length = v
	}

	idx := t.addNode(name, length)
	if len(kids) > 0 {
		t.attachChildren(idx, kids)
	}
	return idx, nil
}

func (p *newickParser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ',', '(', ')', ':', ';':
			return p.input[start:p.pos]
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *newickParser) parseNumber() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

// Newick serializes the tree, children ordered by their smallest leaf so
// equal topologies serialize identically.
func (t *Tree) Newick() string {
	var sb strings.Builder
	t.writeNode(&sb, t.root, true)
	sb.WriteByte(';')
	return sb.String()
}

func (t *Tree) writeNode(sb *strings.Builder, i int, isRoot bool) {
	if !t.isLeaf(i) {
		kids := t.children(i)
		sort.Slice(kids, func(a, b int) bool {
			return t.smallestLeaf(kids[a]) < t.smallestLeaf(kids[b])
		})
		sb.WriteByte('(')
		for k, c := range kids {
			if k > 0 {
				sb.WriteByte(',')
			}
			t.writeNode(sb, c, false)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(t.nodes[i].name)
	if !isRoot {
		sb.WriteString(":" + strconv.FormatFloat(t.nodes[i].length, 'g', -1, 64))
	}
}

func (t *Tree) smallestLeaf(i int) string {
	if t.isLeaf(i) {
		return t.nodes[i].name
	}
	min := ""
	for _, c := range t.children(i) {
		s := t.smallestLeaf(c)
		if min == "" || s < min {
			min = s
		}
	}
	return min
}
