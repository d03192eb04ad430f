package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/vizcheck-cli/internal/filter"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
	"github.com/spf13/cobra"
)

// inputFlags control how a dataset file is read.
type inputFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default from extension)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (default auto)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator: ','|'.'|'space' (default auto)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX sheet name (overrides --sheet-index)")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX 1-based sheet index")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "read at most this many data rows (0 = all)")
}

func (f *inputFlags) options() (table.Options, error) {
	opt := table.DefaultOptions()
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(f.thousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	if opt.DecimalSeparator != 0 && opt.DecimalSeparator == opt.ThousandsSeparator {
		return opt, fmt.Errorf("--decimal and --thousands cannot be the same separator")
	}
	opt.SheetName = f.sheetName
	opt.SheetIndex = f.sheetIndex
	opt.MaxRows = f.maxRows
	return opt, nil
}

func (f *inputFlags) load(path string) (*table.RowSet, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rs, err := table.Load(path, opt)
	if err != nil {
		return nil, err
	}
	debugf("loaded %s: %d rows, %d columns in %s", rs.Name, rs.Len(), len(rs.Columns()), time.Since(start).Round(time.Millisecond))
	return rs, nil
}

// filterFlags collect the repeatable filter options.
type filterFlags struct {
	ranges []string
	dates  []string
	in     []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.ranges, "range", nil, `numeric range filter "Col=min:max" (either side may be empty)`)
	cmd.Flags().StringArrayVar(&f.dates, "dates", nil, `date range filter "Col=YYYY-MM-DD:YYYY-MM-DD" (either side may be empty)`)
	cmd.Flags().StringArrayVar(&f.in, "in", nil, `value filter "Col=a,b,c"`)
}

// predicates turns the flags into filters. Empty range sides take the
// column's own minimum or maximum.
func (f *filterFlags) predicates(rs *table.RowSet) ([]filter.Predicate, error) {
	stats := map[string]table.ColumnSummary{}
	for _, s := range rs.Describe() {
		stats[s.Name] = s
	}
	var out []filter.Predicate
	for _, raw := range f.ranges {
		p, err := parseRange(raw, stats)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	for _, raw := range f.dates {
		p, err := parseDateRange(raw, stats)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	for _, raw := range f.in {
		p, err := parseOneOf(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func splitFilter(raw, flag string) (col, val string, err error) {
	col, val, ok := strings.Cut(raw, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", "", table.Configf("", "--%s %q: expected Col=value", flag, raw)
	}
	return col, strings.TrimSpace(val), nil
}

func parseRange(raw string, stats map[string]table.ColumnSummary) (filter.Range, error) {
	col, val, err := splitFilter(raw, "range")
	if err != nil {
		return filter.Range{}, err
	}
	lo, hi, ok := strings.Cut(val, ":")
	if !ok {
		return filter.Range{}, table.Configf(col, "--range %q: expected min:max", raw)
	}
	r := filter.Range{Column: col, Min: math.Inf(-1), Max: math.Inf(1)}
	if s, ok := stats[col]; ok && s.Kind == table.Numeric && s.NonNull > 0 {
		r.Min, r.Max = s.Min, s.Max
	}
	if lo = strings.TrimSpace(lo); lo != "" {
		n, ok := table.ParseNumber(lo)
		if !ok {
			return filter.Range{}, table.Configf(col, "range min %q is not a number", lo)
		}
		r.Min = n
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		n, ok := table.ParseNumber(hi)
		if !ok {
			return filter.Range{}, table.Configf(col, "range max %q is not a number", hi)
		}
		r.Max = n
	}
	return r, nil
}

func parseDateRange(raw string, stats map[string]table.ColumnSummary) (filter.DateRange, error) {
	col, val, err := splitFilter(raw, "dates")
	if err != nil {
		return filter.DateRange{}, err
	}
	from, to, ok := strings.Cut(val, ":")
	if !ok {
		return filter.DateRange{}, table.Configf(col, "--dates %q: expected YYYY-MM-DD:YYYY-MM-DD", raw)
	}
	d := filter.DateRange{Column: col}
	if s, ok := stats[col]; ok && s.Kind == table.Datetime && s.NonNull > 0 {
		d.From, d.To = s.First, s.Last
	}
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter.DateRange{}, table.Configf(col, "start date %q is not YYYY-MM-DD", from)
		}
		d.From = t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter.DateRange{}, table.Configf(col, "end date %q is not YYYY-MM-DD", to)
		}
		d.To = t
	}
	return d, nil
}

func parseOneOf(raw string) (filter.OneOf, error) {
	col, val, err := splitFilter(raw, "in")
	if err != nil {
		return filter.OneOf{}, err
	}
	o := filter.OneOf{Column: col}
	for _, v := range strings.Split(val, ",") {
		if v = strings.TrimSpace(v); v != "" {
			o.Values = append(o.Values, v)
		}
	}
	return o, nil
}
