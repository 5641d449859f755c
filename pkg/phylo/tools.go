// Package phylo drives per-group alignment and tree building through
// external tools, bounded by a worker pool. Each tool sits behind a small
// interface so the pipeline runs against deterministic stand-ins in tests.
package phylo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/yumyai/ggphylo/pkg/exttool"
	"github.com/yumyai/ggphylo/pkg/genome"
	"github.com/yumyai/ggphylo/pkg/tree"
)

// Aligner produces a protein multiple sequence alignment.
type Aligner interface {
	Align(ctx context.Context, recs []genome.FastaRecord) ([]genome.FastaRecord, error)
}

// TreeBuilder infers a tree with branch lengths from a nucleotide alignment.
type TreeBuilder interface {
	BuildTree(ctx context.Context, aln []genome.FastaRecord) (*tree.Tree, error)
}

// MafftAligner shells out to mafft. Input goes through a scratch file since
// mafft insists on a path argument.
type MafftAligner struct {
	Binary  string // defaults to "mafft"
	WorkDir string
	Threads int
}

func (m *MafftAligner) binary() string {
	if m.Binary == "" {
		return "mafft"
	}
	return m.Binary
}

func (m *MafftAligner) Align(ctx context.Context, recs []genome.FastaRecord) ([]genome.FastaRecord, error) {
	scratch := filepath.Join(m.WorkDir, "aln-"+uuid.New().String()+".faa")
	defer os.Remove(scratch)

	var buf bytes.Buffer
	if err := genome.WriteFasta(&buf, recs); err != nil {
		return nil, err
	}
	if err := os.WriteFile(scratch, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	args := []string{"--auto", "--amino", "--quiet"}
	if m.Threads > 0 {
		args = append(args, "--thread", strconv.Itoa(m.Threads))
	}
	args = append(args, scratch)

	out, err := exttool.Run(ctx, m.binary(), args, nil)
	if err != nil {
		return nil, err
	}
	aln, err := genome.ReadFasta(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", m.binary(), err)
	}
	if len(aln) != len(recs) {
		return nil, fmt.Errorf("%s returned %d sequences for %d inputs", m.binary(), len(aln), len(recs))
	}
	return aln, nil
}

// FastTreeBuilder shells out to FastTree in nucleotide GTR mode, reading
// the alignment from stdin.
type FastTreeBuilder struct {
	Binary string // defaults to "fasttree"
}

func (f *FastTreeBuilder) binary() string {
	if f.Binary == "" {
		return "fasttree"
	}
	return f.Binary
}

func (f *FastTreeBuilder) BuildTree(ctx context.Context, aln []genome.FastaRecord) (*tree.Tree, error) {
	var buf bytes.Buffer
	if err := genome.WriteFasta(&buf, aln); err != nil {
		return nil, err
	}
	out, err := exttool.Run(ctx, f.binary(), []string{"-quiet", "-nopr", "-nt", "-gtr"}, buf.Bytes())
	if err != nil {
		return nil, err
	}
	t, err := tree.ParseNewick(string(out))
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", f.binary(), err)
	}
	return t, nil
}
