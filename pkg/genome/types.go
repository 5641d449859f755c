// Package genome holds the sequence catalog: per-genome gene records
// normalized into one immutable, integer-indexed arena that every later
// stage (similarity search, grouping, tree building) addresses by index.
package genome

import "fmt"

// Region is a half-open-free genomic interval (1-based, inclusive).
type Region struct {
	Contig string
	Start  int
	End    int
}

// Gene is one predicted CDS owned by a single genome.
type Gene struct {
	GenomeID string
	LocusTag string
	Contig   string
	Start    int // 1-based
	End      int // inclusive
	Strand   int8
	Prot     string
	Nucl     string
}

// Key returns the genome-qualified gene identifier used in FASTA headers
// and tree leaf names.
func (g *Gene) Key() string {
	return g.GenomeID + "|" + g.LocusTag
}

// Genome is an ordered set of genes plus an optional locus-of-interest
// annotation. Immutable once loaded into a Catalog.
type Genome struct {
	ID    string
	Genes []*Gene
	Locus *Region
}

// Catalog indexes every gene across every genome with a dense integer id.
type Catalog struct {
	Genomes []*Genome
	genes   []*Gene
	byKey   map[string]int
}

// NumGenes returns the total gene count across all genomes.
func (c *Catalog) NumGenes() int { return len(c.genes) }

// NumGenomes returns the number of genomes loaded.
func (c *Catalog) NumGenomes() int { return len(c.Genomes) }

// Gene returns the gene at arena index i.
func (c *Catalog) Gene(i int) *Gene { return c.genes[i] }

// Index resolves a genome|locus_tag key to its arena index.
func (c *Catalog) Index(key string) (int, bool) {
	i, ok := c.byKey[key]
	return i, ok
}

// GenomeIDs returns genome identifiers in load order.
func (c *Catalog) GenomeIDs() []string {
	ids := make([]string, len(c.Genomes))
	for i, g := range c.Genomes {
		ids[i] = g.ID
	}
	return ids
}

func (c *Catalog) add(gn *Genome) error {
	for _, g := range gn.Genes {
		key := g.Key()
		if _, dup := c.byKey[key]; dup {
			return fmt.Errorf("duplicate locus tag %q in genome %s", g.LocusTag, g.GenomeID)
		}
		c.byKey[key] = len(c.genes)
		c.genes = append(c.genes, g)
	}
	c.Genomes = append(c.Genomes, gn)
	return nil
}

// NewCatalog assembles genomes into a catalog, assigning arena indices in
// genome order then gene order.
func NewCatalog(genomes []*Genome) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int)}
	for _, gn := range genomes {
		if err := c.add(gn); err != nil {
			return nil, err
		}
	}
	return c, nil
}
