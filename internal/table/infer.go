package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Options controls how raw cells are read and typed.
type Options struct {
	// Delimiter for CSV. If 0, picked from the file extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection. SheetName wins over SheetIndex (1-based).
	SheetName  string
	SheetIndex int
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

// FromStrings types raw string cells into a RowSet. Each column gets exactly
// one kind: numeric when every non-empty cell is a number, datetime when
// every non-empty cell is a timestamp, text otherwise.
func FromStrings(header []string, records [][]string, opt Options) (*RowSet, error) {
	ncol := len(header)
	cols := make([]Column, ncol)
	for i, h := range header {
		cols[i].Name = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for i, rec := range records {
		if len(rec) > ncol {
			return nil, fmt.Errorf("row %d: %d cells for %d columns", i+1, len(rec), ncol)
		}
	}

	rows := make([]Row, len(records))
	for i := range rows {
		rows[i] = make(Row, ncol)
	}
	for j := range cols {
		kind := inferKind(records, j, opt)
		cols[j].Kind = kind
		for i, rec := range records {
			raw := ""
			if j < len(rec) {
				raw = strings.TrimSpace(rec[j])
			}
			rows[i][j] = typedValue(raw, kind, opt)
		}
	}
	return New(cols, rows)
}

func inferKind(records [][]string, j int, opt Options) Kind {
	numeric, datetime, seen := true, true, false
	for _, rec := range records {
		if j >= len(rec) {
			continue
		}
		raw := strings.TrimSpace(rec[j])
		if raw == "" {
			continue
		}
		seen = true
		if numeric {
			if _, ok := parseNumeric(raw, opt); !ok {
				numeric = false
			}
		}
		if datetime {
			if _, ok := parseTimeMaybe(raw); !ok {
				datetime = false
			}
		}
		if !numeric && !datetime {
			return Text
		}
	}
	switch {
	case !seen:
		return Text
	case numeric:
		return Numeric
	case datetime:
		return Datetime
	default:
		return Text
	}
}

func typedValue(raw string, kind Kind, opt Options) Value {
	if raw == "" {
		return NullValue(kind)
	}
	switch kind {
	case Numeric:
		f, _ := parseNumeric(raw, opt)
		return NumberValue(f)
	case Datetime:
		t, _ := parseTimeMaybe(raw)
		return TimeValue(t)
	default:
		return TextValue(raw)
	}
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime parses a timestamp in any of the layouts accepted at load time.
func ParseTime(s string) (time.Time, bool) { return parseTimeMaybe(strings.TrimSpace(s)) }

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a number with auto-detected separators.
func ParseNumber(s string) (float64, bool) { return parseNumeric(s, Options{}) }

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0 && strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		if strings.Contains(raw, " ") {
			joined, ok := joinSpaceGroups(raw, dec)
			if !ok {
				return 0, false
			}
			raw = joined
		}
		for _, sep := range []rune{',', '.'} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// joinSpaceGroups removes spaces used as thousands separators. The integer
// part must be a group of one to three digits followed by groups of exactly
// three.
func joinSpaceGroups(s string, dec rune) (string, bool) {
	intPart, frac := s, ""
	if i := strings.LastIndex(s, string(dec)); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if strings.Contains(frac, " ") {
		return "", false
	}
	groups := strings.Split(intPart, " ")
	for i, g := range groups {
		if i == 0 {
			g = strings.TrimLeft(g, "+-")
			if len(g) == 0 || len(g) > 3 {
				return "", false
			}
		} else if len(g) != 3 {
			return "", false
		}
		for _, r := range g {
			if r < '0' || r > '9' {
				return "", false
			}
		}
	}
	return strings.Join(groups, "") + frac, true
}
