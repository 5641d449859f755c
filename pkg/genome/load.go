package genome

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yumyai/ggphylo/internal/apperr"
	"github.com/yumyai/ggphylo/internal/util"
)

// Feature tables are one TSV per genome (<genome>.tsv) with columns:
// locus_tag, contig, start, end, strand, protein, nucleotide.
// Lines starting with '#' are skipped.
const featureColumns = 7

// LoadDir loads every *.tsv feature table under dir into a Catalog.
// Genomes are ordered by cleaned sample name so arena indices are stable
// across runs regardless of directory iteration order.
func LoadDir(dir string) (*Catalog, error) {
	if !util.DirExists(dir) {
		return nil, &apperr.InputError{Path: dir, Msg: "feature directory does not exist"}
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &apperr.InputError{Path: dir, Msg: "no feature tables (*.tsv) found"}
	}
	sort.Strings(paths)

	genomes := make([]*Genome, 0, len(paths))
	for _, p := range paths {
		name := util.CleanSampleName(strings.TrimSuffix(path.Base(p), ".tsv"))
		gn, err := loadFeatureTable(p, name)
		if err != nil {
			return nil, err
		}
		genomes = append(genomes, gn)
	}

	return NewCatalog(genomes)
}

func loadFeatureTable(p, genomeID string) (*Genome, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, &apperr.InputError{Path: p, Msg: err.Error()}
	}
	defer fh.Close()

	gn := &Genome{ID: genomeID}

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != featureColumns {
			return nil, &apperr.InputError{
				Path: p,
				Msg:  fmt.Sprintf("line %d: expected %d columns, got %d", lineno, featureColumns, len(fields)),
			}
		}
		g, err := parseGeneRow(genomeID, fields)
		if err != nil {
			return nil, &apperr.InputError{Path: p, Msg: fmt.Sprintf("line %d: %v", lineno, err)}
		}
		gn.Genes = append(gn.Genes, g)
	}
	if err := sc.Err(); err != nil {
		return nil, &apperr.InputError{Path: p, Msg: err.Error()}
	}
	if len(gn.Genes) == 0 {
		return nil, &apperr.InputError{Path: p, Msg: "feature table holds no genes"}
	}

	// Order by coordinate so the catalog reflects gene order on the contig.
	sort.SliceStable(gn.Genes, func(i, j int) bool {
		a, b := gn.Genes[i], gn.Genes[j]
		if a.Contig != b.Contig {
			return a.Contig < b.Contig
		}
		return a.Start < b.Start
	})

	return gn, nil
}

func parseGeneRow(genomeID string, fields []string) (*Gene, error) {
	start, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("bad start coordinate %q", fields[2])
	}
	end, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("bad end coordinate %q", fields[3])
	}
	if end < start {
		return nil, fmt.Errorf("end %d before start %d", end, start)
	}

	var strand int8
	switch fields[4] {
	case "+", "1":
		strand = 1
	case "-", "-1":
		strand = -1
	default:
		return nil, fmt.Errorf("bad strand %q", fields[4])
	}

	prot := strings.ToUpper(strings.TrimSuffix(fields[5], "*"))
	nucl := strings.ToUpper(fields[6])
	if prot == "" || nucl == "" {
		return nil, fmt.Errorf("empty sequence for %s", fields[0])
	}
	if len(nucl) != 3*len(prot) && len(nucl) != 3*(len(prot)+1) {
		return nil, fmt.Errorf("nucleotide length %d does not match protein length %d (3x codon relationship)",
			len(nucl), len(prot))
	}

	return &Gene{
		GenomeID: genomeID,
		LocusTag: fields[0],
		Contig:   fields[1],
		Start:    start,
		End:      end,
		Strand:   strand,
		Prot:     prot,
		Nucl:     nucl,
	}, nil
}

// ApplyLocusAnnotation restricts each annotated genome to genes overlapping
// its locus window. The annotation file is TSV: genome, contig, start, end.
// Genomes without an annotation line keep their full gene set.
func ApplyLocusAnnotation(c *Catalog, annotationFile string) (*Catalog, error) {
	fh, err := os.Open(annotationFile)
	if err != nil {
		return nil, &apperr.InputError{Path: annotationFile, Msg: err.Error()}
	}
	defer fh.Close()

	loci := make(map[string]*Region)
	sc := bufio.NewScanner(fh)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, &apperr.InputError{Path: annotationFile,
				Msg: fmt.Sprintf("line %d: expected 4 columns, got %d", lineno, len(fields))}
		}
		start, serr := strconv.Atoi(fields[2])
		end, eerr := strconv.Atoi(fields[3])
		if serr != nil || eerr != nil || end < start {
			return nil, &apperr.InputError{Path: annotationFile,
				Msg: fmt.Sprintf("line %d: bad locus window %s-%s", lineno, fields[2], fields[3])}
		}
		loci[util.CleanSampleName(fields[0])] = &Region{Contig: fields[1], Start: start, End: end}
	}
	if err := sc.Err(); err != nil {
		return nil, &apperr.InputError{Path: annotationFile, Msg: err.Error()}
	}

	genomes := make([]*Genome, 0, len(c.Genomes))
	for _, gn := range c.Genomes {
		region, ok := loci[gn.ID]
		if !ok {
			genomes = append(genomes, gn)
			continue
		}
		kept := &Genome{ID: gn.ID, Locus: region}
		for _, g := range gn.Genes {
			if g.Contig == region.Contig && g.Start <= region.End && g.End >= region.Start {
				kept.Genes = append(kept.Genes, g)
			}
		}
		if len(kept.Genes) == 0 {
			return nil, &apperr.InputError{Path: annotationFile,
				Msg: fmt.Sprintf("locus window for genome %s covers no genes", gn.ID)}
		}
		genomes = append(genomes, kept)
	}

	return NewCatalog(genomes)
}
