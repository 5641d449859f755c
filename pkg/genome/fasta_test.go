package genome

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestReadFasta(t *testing.T) {
	in := strings.Join([]string{
		">A|g1 some description",
		"MKVL",
		"IW",
		"",
		">B|g2",
		"MKKK",
	}, "\n")

	recs, err := ReadFasta(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadFasta: %v", err)
	}
	want := []FastaRecord{
		{ID: "A|g1", Seq: "MKVLIW"},
		{ID: "B|g2", Seq: "MKKK"},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("records = %v, want %v", recs, want)
	}
}

func TestReadFastaErrors(t *testing.T) {
	if _, err := ReadFasta(strings.NewReader("MKVL\n")); err == nil {
		t.Errorf("sequence before header must fail")
	}
	if _, err := ReadFasta(strings.NewReader(">\nMKVL\n")); err == nil {
		t.Errorf("empty header id must fail")
	}
}

func TestWriteFastaWraps(t *testing.T) {
	long := strings.Repeat("A", 130)
	var buf bytes.Buffer
	if err := WriteFasta(&buf, []FastaRecord{{ID: "x", Seq: long}}); err != nil {
		t.Fatalf("WriteFasta: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3 sequence lines", len(lines))
	}
	if len(lines[1]) != 60 || len(lines[3]) != 10 {
		t.Errorf("wrap widths = %d, %d", len(lines[1]), len(lines[3]))
	}

	// Round trip back through the reader.
	recs, err := ReadFasta(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Seq != long {
		t.Errorf("round trip lost sequence content")
	}
}

func TestProteinFasta(t *testing.T) {
	cat, err := NewCatalog([]*Genome{
		{ID: "A", Genes: []*Gene{
			{GenomeID: "A", LocusTag: "g1", Prot: "MK"},
			{GenomeID: "A", LocusTag: "g2", Prot: "MV"},
		}},
		{ID: "B", Genes: []*Gene{
			{GenomeID: "B", LocusTag: "g1", Prot: "MW"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	recs := cat.ProteinFasta([]int{0, 2})
	want := []FastaRecord{
		{ID: "A|g1", Seq: "MK"},
		{ID: "B|g1", Seq: "MW"},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("records = %v, want %v", recs, want)
	}
	if got := len(cat.AllProteinFasta()); got != 3 {
		t.Errorf("AllProteinFasta returned %d records", got)
	}
}
