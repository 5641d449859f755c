package phylo

import (
	"fmt"
	"strings"

	"github.com/yumyai/ggphylo/internal/apperr"
	"github.com/yumyai/ggphylo/pkg/genome"
)

// BackTranslate converts a protein alignment into a codon-aware nucleotide
// alignment using the matching nucleotide sequences: each residue becomes
// its source codon, each gap becomes "---". A nucleotide sequence whose
// length is inconsistent with the 3x codon relationship (allowing one
// trailing stop codon) fails the group with a ConsistencyError.
func BackTranslate(protAln []genome.FastaRecord, nucl map[string]string) ([]genome.FastaRecord, error) {
	out := make([]genome.FastaRecord, 0, len(protAln))
	for _, rec := range protAln {
		nt, ok := nucl[rec.ID]
		if !ok {
			return nil, &apperr.ConsistencyError{Subject: rec.ID, Msg: "no nucleotide sequence for aligned protein"}
		}

		residues := len(rec.Seq) - strings.Count(rec.Seq, "-")
		switch len(nt) {
		case 3 * residues:
		case 3 * (residues + 1):
			nt = nt[:len(nt)-3] // trailing stop codon
		default:
			return nil, &apperr.ConsistencyError{
				Subject: rec.ID,
				Msg: fmt.Sprintf("nucleotide length %d inconsistent with %d aligned residues",
					len(nt), residues),
			}
		}

		var sb strings.Builder
		sb.Grow(3 * len(rec.Seq))
		pos := 0
		for _, aa := range rec.Seq {
			if aa == '-' {
				sb.WriteString("---")
				continue
			}
			sb.WriteString(nt[pos : pos+3])
			pos += 3
		}
		out = append(out, genome.FastaRecord{ID: rec.ID, Seq: sb.String()})
	}
	return out, nil
}
