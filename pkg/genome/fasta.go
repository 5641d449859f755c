package genome

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// FastaRecord is one parsed FASTA sequence.
type FastaRecord struct {
	ID  string
	Seq string
}

// ReadFasta parses FASTA records from r. Only the first whitespace-delimited
// token of each header is kept as the ID.
func ReadFasta(r io.Reader) ([]FastaRecord, error) {
	var recs []FastaRecord
	var cur *FastaRecord
	var seq strings.Builder

	flush := func() {
		if cur != nil {
			cur.Seq = seq.String()
			recs = append(recs, *cur)
			seq.Reset()
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			id := strings.Fields(line[1:])
			if len(id) == 0 {
				return nil, fmt.Errorf("FASTA header with empty id")
			}
			cur = &FastaRecord{ID: id[0]}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("FASTA sequence before first header")
		}
		seq.WriteString(line)
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFastaFile opens path (gzip transparent on .gz suffix) and parses it.
func ReadFastaFile(path string) ([]FastaRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var r io.Reader = fh
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return ReadFasta(r)
}

// WriteFasta writes records wrapped at 60 columns.
func WriteFasta(w io.Writer, recs []FastaRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range recs {
		if _, err := fmt.Fprintf(bw, ">%s\n", rec.ID); err != nil {
			return err
		}
		for i := 0; i < len(rec.Seq); i += 60 {
			end := i + 60
			if end > len(rec.Seq) {
				end = len(rec.Seq)
			}
			if _, err := fmt.Fprintln(bw, rec.Seq[i:end]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ProteinFasta returns the protein records for the given arena indices,
// headed genome|locus_tag.
func (c *Catalog) ProteinFasta(indices []int) []FastaRecord {
	recs := make([]FastaRecord, 0, len(indices))
	for _, i := range indices {
		g := c.Gene(i)
		recs = append(recs, FastaRecord{ID: g.Key(), Seq: g.Prot})
	}
	return recs
}

// AllProteinFasta returns protein records for every gene in the catalog.
func (c *Catalog) AllProteinFasta() []FastaRecord {
	indices := make([]int, c.NumGenes())
	for i := range indices {
		indices[i] = i
	}
	return c.ProteinFasta(indices)
}
