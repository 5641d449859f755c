// Package simgraph builds the pairwise similarity graph over all genes
// across all genomes from external search-tool hits.
package simgraph

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yumyai/ggphylo/internal/apperr"
	"github.com/yumyai/ggphylo/pkg/exttool"
	"github.com/yumyai/ggphylo/pkg/genome"
)

// Hit is one raw search result row, still keyed by genome|locus_tag.
type Hit struct {
	Query    string
	Subject  string
	Identity float64 // percent, 0-100
	Coverage float64 // percent query coverage, 0-100
	Evalue   float64
	BitScore float64
}

// Searcher produces all-vs-all protein hits for a set of records.
type Searcher interface {
	AllVsAll(ctx context.Context, recs []genome.FastaRecord) ([]Hit, error)
}

// DiamondSearcher shells out to diamond makedb + blastp.
type DiamondSearcher struct {
	Binary  string // defaults to "diamond"
	WorkDir string
	Threads int
}

const diamondOutfmt = "6 qseqid sseqid pident qcovhsp evalue bitscore"

func (d *DiamondSearcher) binary() string {
	if d.Binary == "" {
		return "diamond"
	}
	return d.Binary
}

// AllVsAll writes the proteins to a scratch FASTA, formats a diamond
// database from it and searches the file against itself.
func (d *DiamondSearcher) AllVsAll(ctx context.Context, recs []genome.FastaRecord) ([]Hit, error) {
	faa := filepath.Join(d.WorkDir, "all_proteins.faa")
	dbPath := filepath.Join(d.WorkDir, "all_proteins.dmnd")

	var buf bytes.Buffer
	if err := genome.WriteFasta(&buf, recs); err != nil {
		return nil, err
	}
	if err := os.WriteFile(faa, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	if err := exttool.RunToFile(ctx, d.binary(), []string{
		"makedb", "--in", faa, "-d", strings.TrimSuffix(dbPath, ".dmnd"),
	}); err != nil {
		return nil, err
	}

	args := []string{
		"blastp", "-q", faa, "-d", dbPath,
		"--outfmt", diamondOutfmt,
		"--max-target-seqs", "0",
	}
	if d.Threads > 0 {
		args = append(args, "-p", strconv.Itoa(d.Threads))
	}
	out, err := exttool.Run(ctx, d.binary(), args, nil)
	if err != nil {
		return nil, err
	}

	hits, err := ParseHits(out)
	if err != nil {
		return nil, &apperr.ToolError{Tool: d.binary(), ExitCode: 0, Err: err}
	}
	return hits, nil
}

// ParseHits parses tabular (outfmt 6) rows:
// qseqid sseqid pident qcovhsp evalue bitscore.
func ParseHits(out []byte) ([]Hit, error) {
	var hits []Hit
	for lineno, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, fmt.Errorf("hit line %d: expected 6 fields, got %d", lineno+1, len(fields))
		}
		ident, err1 := strconv.ParseFloat(fields[2], 64)
		cov, err2 := strconv.ParseFloat(fields[3], 64)
		eval, err3 := strconv.ParseFloat(fields[4], 64)
		bits, err4 := strconv.ParseFloat(fields[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("hit line %d: non-numeric score fields", lineno+1)
		}
		hits = append(hits, Hit{
			Query:    fields[0],
			Subject:  fields[1],
			Identity: ident,
			Coverage: cov,
			Evalue:   eval,
			BitScore: bits,
		})
	}
	return hits, nil
}
