package phylo

import (
	"math"

	"github.com/yumyai/ggphylo/pkg/genome"
)

// MeanColumnEntropy is the average per-site nucleotide entropy (base 4) of
// a codon alignment. Sites with 10% or more non-ACGT characters are skipped,
// and ambiguous characters are excluded from the frequency counts at the
// sites that remain. Returns 0 when no site qualifies.
func MeanColumnEntropy(aln []genome.FastaRecord) float64 {
	if len(aln) == 0 || len(aln[0].Seq) == 0 {
		return 0
	}
	width := len(aln[0].Seq)

	total := 0.0
	accounted := 0
	for site := 0; site < width; site++ {
		var counts [4]int
		valid := 0
		for _, rec := range aln {
			if site >= len(rec.Seq) {
				continue
			}
			switch rec.Seq[site] {
			case 'A':
				counts[0]++
			case 'C':
				counts[1]++
			case 'G':
				counts[2]++
			case 'T':
				counts[3]++
			default:
				continue
			}
			valid++
		}
		if float64(len(aln)-valid)/float64(len(aln)) >= 0.1 {
			continue
		}

		entropy := 0.0
		for _, c := range counts {
			if c == 0 {
				continue
			}
			p := float64(c) / float64(valid)
			entropy -= p * math.Log(p)
		}
		total += entropy / math.Log(4)
		accounted++
	}

	if accounted == 0 {
		return 0
	}
	return total / float64(accounted)
}
