// Package filter selects the rows of a RowSet that satisfy a set of
// column predicates.
package filter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

// Predicate is one column condition. Predicates in a list are ANDed.
type Predicate interface {
	// Field is the column the predicate reads.
	Field() string
	// Check validates the predicate against the column it targets.
	Check(col table.Column) error
	// Match reports whether a non-null value satisfies the predicate.
	Match(v table.Value) bool
	fmt.Stringer
}

// Range keeps numeric values within [Min, Max].
type Range struct {
	Column   string
	Min, Max float64
}

func (r Range) Field() string { return r.Column }

func (r Range) Check(col table.Column) error {
	if col.Kind != table.Numeric {
		return table.Configf(r.Column, "range filter needs a numeric column, column is %s", col.Kind)
	}
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return table.Configf(r.Column, "range bounds must be numbers")
	}
	if r.Min > r.Max {
		return table.Configf(r.Column, "range min %g is greater than max %g", r.Min, r.Max)
	}
	return nil
}

func (r Range) Match(v table.Value) bool {
	return v.Num >= r.Min && v.Num <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%s in [%g, %g]", r.Column, r.Min, r.Max)
}

// DateRange keeps datetime values whose calendar date lies within [From, To].
// The time of day is ignored on both the bounds and the values.
type DateRange struct {
	Column   string
	From, To time.Time
}

func (d DateRange) Field() string { return d.Column }

func (d DateRange) Check(col table.Column) error {
	if col.Kind != table.Datetime {
		return table.Configf(d.Column, "date filter needs a datetime column, column is %s", col.Kind)
	}
	if dateOf(d.From).After(dateOf(d.To)) {
		return table.Configf(d.Column, "start date %s is after end date %s", d.From.Format(dateLayout), d.To.Format(dateLayout))
	}
	return nil
}

func (d DateRange) Match(v table.Value) bool {
	day := dateOf(v.Time)
	return !day.Before(dateOf(d.From)) && !day.After(dateOf(d.To))
}

func (d DateRange) String() string {
	return fmt.Sprintf("%s between %s and %s", d.Column, d.From.Format(dateLayout), d.To.Format(dateLayout))
}

const dateLayout = "2006-01-02"

func dateOf(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// OneOf keeps text values that are members of Values.
type OneOf struct {
	Column string
	Values []string
}

func (o OneOf) Field() string { return o.Column }

func (o OneOf) Check(col table.Column) error {
	if col.Kind != table.Text {
		return table.Configf(o.Column, "value filter needs a text column, column is %s", col.Kind)
	}
	if len(o.Values) == 0 {
		return table.Configf(o.Column, "value filter has an empty value set")
	}
	return nil
}

func (o OneOf) Match(v table.Value) bool {
	for _, want := range o.Values {
		if v.Str == want {
			return true
		}
	}
	return false
}

func (o OneOf) String() string {
	return fmt.Sprintf("%s in {%s}", o.Column, strings.Join(o.Values, ", "))
}

// Apply returns the rows of rs that satisfy every predicate, in their
// original order. All predicates are validated before any row is read, so a
// configuration error never yields a partial result. Null cells never match.
func Apply(rs *table.RowSet, preds []Predicate) (*table.RowSet, error) {
	if len(preds) == 0 {
		return rs, nil
	}
	cols := make([]int, len(preds))
	for i, p := range preds {
		col, err := rs.Column(p.Field())
		if err != nil {
			return nil, err
		}
		if err := p.Check(col); err != nil {
			return nil, err
		}
		cols[i], _ = rs.Index(p.Field())
	}
	var keep []int
rows:
	for i := 0; i < rs.Len(); i++ {
		for k, p := range preds {
			v := rs.Value(i, cols[k])
			if v.Null || !p.Match(v) {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	return rs.Subset(keep), nil
}

// Describe renders predicates as one line, the way test log entries store
// them. An empty list renders as "None".
func Describe(preds []Predicate) string {
	if len(preds) == 0 {
		return "None"
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return strings.Join(parts, "; ")
}
