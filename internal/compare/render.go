package compare

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteTable prints one row per record with a ✅/❌ result column, followed
// by the overall status line.
func (r *Result) WriteTable(w io.Writer, groupBy string) error {
	if groupBy == "" {
		groupBy = "Label"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tExpected\tActual\tResult\n", groupBy)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dashes(groupBy), dashes("Expected"), dashes("Actual"), dashes("Result"))
	for _, rec := range r.Records {
		mark := "✅"
		if !rec.Match {
			mark = "❌"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Key,
			sideValue(rec.Local, rec.LocalPresent), sideValue(rec.Remote, rec.RemotePresent), mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nStatus: %s (%d/%d matched, tolerance %g)\n",
		r.Status, len(r.Records)-len(r.Mismatches()), len(r.Records), r.Tolerance)
	return err
}

func dashes(s string) string { return strings.Repeat("-", len(s)) }
