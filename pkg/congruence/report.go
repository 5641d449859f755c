package congruence

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// ReportRow is one line of the per-group congruence report. Rows cover
// every resolved group: scored ones, and excluded ones with a reason.
type ReportRow struct {
	GroupID      string
	LeafCount    int
	Completeness float64
	Entropy      float64
	Score        *Score // nil when the group was not scored
	Status       string // scored | excluded | failed | dropped
	Reason       string
}

// WriteReport writes the tabular report: one row per group, then the
// aggregate summary as trailing comment lines.
func WriteReport(w io.Writer, rows []ReportRow, sum *Summary) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, "group_id\tleaf_count\tcompleteness\tentropy\tcongruence\tslope\tr_value\tstatus\treason"); err != nil {
		return err
	}
	for _, row := range rows {
		congr, slope, rval := "NA", "NA", "NA"
		entropy := "NA"
		if row.Status == "scored" && row.Score != nil {
			congr = formatFloat(row.Score.Congruence)
			entropy = formatFloat(row.Entropy)
			if row.Score.HasRegression {
				slope = formatFloat(row.Score.Slope)
				rval = formatFloat(row.Score.RValue)
			}
		}
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.GroupID, row.LeafCount, formatFloat(row.Completeness),
			entropy, congr, slope, rval, row.Status, row.Reason); err != nil {
			return err
		}
	}

	if sum.HasAggregate {
		if _, err := fmt.Fprintf(bw, "# aggregate_congruence\t%s\n", formatFloat(sum.Aggregate)); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(bw, "# aggregate_congruence\tNA"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "# scorable_groups\t%d\n# excluded_groups\t%d\n",
		len(sum.Scores), len(sum.Excluded)); err != nil {
		return err
	}

	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
