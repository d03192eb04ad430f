package table

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Column describes one column of a RowSet.
type Column struct {
	Name string
	Kind Kind
}

// Row holds one value per column, in column order.
type Row []Value

// RowSet is an ordered sequence of rows sharing one column list.
// A RowSet is treated as immutable once built.
type RowSet struct {
	Name  string
	cols  []Column
	index map[string]int
	rows  []Row
}

// New builds a RowSet from already typed rows. Every row must have exactly
// one value per column and each value must carry its column's kind.
func New(cols []Column, rows []Row) (*RowSet, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+1)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		index[c.Name] = i
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("row %d: %d values for %d columns", i+1, len(r), len(cols))
		}
		for j, v := range r {
			if v.Kind != cols[j].Kind {
				return nil, fmt.Errorf("row %d: column %q holds %s, value is %s", i+1, cols[j].Name, cols[j].Kind, v.Kind)
			}
		}
	}
	return &RowSet{cols: cols, index: index, rows: rows}, nil
}

// Columns returns a copy of the column list.
func (rs *RowSet) Columns() []Column {
	out := make([]Column, len(rs.cols))
	copy(out, rs.cols)
	return out
}

// Len reports the number of rows.
func (rs *RowSet) Len() int { return len(rs.rows) }

// Index returns the position of the named column.
func (rs *RowSet) Index(name string) (int, bool) {
	i, ok := rs.index[name]
	return i, ok
}

// Column returns the named column or a ConfigError when it does not exist.
func (rs *RowSet) Column(name string) (Column, error) {
	i, ok := rs.index[name]
	if !ok {
		return Column{}, Configf(name, "not present in dataset (have: %s)", strings.Join(rs.names(), ", "))
	}
	return rs.cols[i], nil
}

// Value returns the cell at row i of the column at position col.
func (rs *RowSet) Value(i, col int) Value { return rs.rows[i][col] }

// Subset returns a RowSet holding the rows at the given positions, in the
// order given. Rows are shared, not copied.
func (rs *RowSet) Subset(indices []int) *RowSet {
	rows := make([]Row, len(indices))
	for i, idx := range indices {
		rows[i] = rs.rows[idx]
	}
	return &RowSet{Name: rs.Name, cols: rs.cols, index: rs.index, rows: rows}
}

// Records returns the rows as column-name mappings, ready for JSON encoding.
// Datetime cells become TimestampLayout strings, numeric nulls become nil
// and text nulls become empty strings.
func (rs *RowSet) Records() []map[string]any {
	out := make([]map[string]any, len(rs.rows))
	for i, r := range rs.rows {
		m := make(map[string]any, len(rs.cols))
		for j, c := range rs.cols {
			v := r[j]
			switch {
			case v.Null && c.Kind == Text:
				m[c.Name] = ""
			case v.Null:
				m[c.Name] = nil
			case c.Kind == Datetime:
				m[c.Name] = v.Time.Format(TimestampLayout)
			case c.Kind == Numeric:
				if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
					m[c.Name] = nil
				} else {
					m[c.Name] = v.Num
				}
			default:
				m[c.Name] = v.Str
			}
		}
		out[i] = m
	}
	return out
}

func (rs *RowSet) names() []string {
	out := make([]string, len(rs.cols))
	for i, c := range rs.cols {
		out[i] = c.Name
	}
	return out
}

// ErrUnsupported indicates a file format with no registered loader.
var ErrUnsupported = errors.New("unsupported tabular format")
