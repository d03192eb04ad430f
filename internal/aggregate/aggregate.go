// Package aggregate computes per-group sums and normalizes group labels.
package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

// Spec names the grouping column and the numeric column to sum.
type Spec struct {
	GroupBy string `json:"groupBy"`
	Value   string `json:"valueField"`
}

// Entry is one group of a Grouped result.
type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Grouped is an ordered mapping from normalized group key to numeric value.
// Keys are unique. The zero value is an empty result.
type Grouped struct {
	keys   []string
	values map[string]float64
}

// FromEntries builds a Grouped result, keeping entry order. Keys are
// trimmed and blank keys become MissingKey; two entries with the same key
// are an error.
func FromEntries(entries []Entry) (*Grouped, error) {
	g := &Grouped{values: make(map[string]float64, len(entries))}
	for _, e := range entries {
		k := NormalizeKey(e.Key)
		if _, dup := g.values[k]; dup {
			return nil, fmt.Errorf("duplicate group key %q", k)
		}
		g.keys = append(g.keys, k)
		g.values[k] = e.Value
	}
	return g, nil
}

// Keys returns the group keys in order.
func (g *Grouped) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the value stored for key.
func (g *Grouped) Get(key string) (float64, bool) {
	v, ok := g.values[key]
	return v, ok
}

func (g *Grouped) Len() int { return len(g.keys) }

// Total sums all group values.
func (g *Grouped) Total() float64 {
	var t float64
	for _, k := range g.keys {
		t += g.values[k]
	}
	return t
}

// Entries returns the groups in order.
func (g *Grouped) Entries() []Entry {
	out := make([]Entry, len(g.keys))
	for i, k := range g.keys {
		out[i] = Entry{Key: k, Value: g.values[k]}
	}
	return out
}

// MarshalJSON encodes the result as an ordered list of entries.
func (g *Grouped) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Entries())
}

// Sum groups rs by spec.GroupBy and sums spec.Value per group. Groups appear
// in order of first appearance. A null value adds nothing but still creates
// its group; a null group label is bucketed under MissingKey.
func Sum(rs *table.RowSet, spec Spec) (*Grouped, error) {
	if _, err := rs.Column(spec.GroupBy); err != nil {
		return nil, err
	}
	vcol, err := rs.Column(spec.Value)
	if err != nil {
		return nil, err
	}
	if vcol.Kind != table.Numeric {
		return nil, table.Configf(spec.Value, "value column must be numeric, column is %s", vcol.Kind)
	}
	gi, _ := rs.Index(spec.GroupBy)
	vi, _ := rs.Index(spec.Value)

	g := &Grouped{values: map[string]float64{}}
	for i := 0; i < rs.Len(); i++ {
		k := KeyOf(rs.Value(i, gi))
		if _, seen := g.values[k]; !seen {
			g.keys = append(g.keys, k)
			g.values[k] = 0
		}
		if v := rs.Value(i, vi); !v.Null {
			g.values[k] += v.Num
		}
	}
	return g, nil
}
