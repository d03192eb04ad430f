package table

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ColumnSummary captures the inferred kind and quick statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    Kind
	NonNull int
	Missing int
	// Numeric columns only.
	Min, Max, Sum float64
	// Datetime columns only.
	First, Last time.Time
	// Text columns only.
	Unique int
}

// Describe summarizes every column of the RowSet.
func (rs *RowSet) Describe() []ColumnSummary {
	out := make([]ColumnSummary, len(rs.cols))
	for j, c := range rs.cols {
		s := ColumnSummary{Name: c.Name, Kind: c.Kind, Min: math.Inf(1), Max: math.Inf(-1)}
		uniq := map[string]struct{}{}
		for _, r := range rs.rows {
			v := r[j]
			if v.Null {
				s.Missing++
				continue
			}
			s.NonNull++
			switch c.Kind {
			case Numeric:
				s.Sum += v.Num
				s.Min = math.Min(s.Min, v.Num)
				s.Max = math.Max(s.Max, v.Num)
			case Datetime:
				if s.First.IsZero() || v.Time.Before(s.First) {
					s.First = v.Time
				}
				if v.Time.After(s.Last) {
					s.Last = v.Time
				}
			case Text:
				uniq[v.Str] = struct{}{}
			}
		}
		if s.NonNull == 0 || c.Kind != Numeric {
			s.Min, s.Max = 0, 0
		}
		s.Unique = len(uniq)
		out[j] = s
	}
	return out
}

// Markdown renders the column summaries as a compact schema listing.
func (rs *RowSet) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if rs.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", rs.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", rs.Len()))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(rs.cols)))
	b.WriteString("[SCHEMA]\n")
	for _, s := range rs.Describe() {
		total := s.NonNull + s.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(s.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", s.Name, s.Kind, s.NonNull, missPct))
		switch s.Kind {
		case Numeric:
			if s.NonNull > 0 {
				b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, sum %.6g", s.Min, s.Max, s.Sum))
			}
		case Datetime:
			if s.NonNull > 0 {
				b.WriteString(fmt.Sprintf("; %s to %s", s.First.Format("2006-01-02"), s.Last.Format("2006-01-02")))
			}
		case Text:
			b.WriteString(fmt.Sprintf("; unique=%d", s.Unique))
		}
		b.WriteString("\n")
	}
	return b.String()
}
