package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

// MissingKey is the group key for null or empty labels on either side.
const MissingKey = "N/A"

// Normalizer renders a group label as a comparable key.
type Normalizer func(v any) string

// KeyNormalizer returns the normalizer for labels of a group-by column of
// the given kind. Local group values and remote labels must both go through
// it so that equal labels compare equal. Numbers always render in canonical
// decimal form and null or blank labels become MissingKey. Strings are only
// trimmed, except that for a Numeric column "5.0" becomes "5" and for a
// Datetime column "2024-01-02" becomes a table.TimestampLayout timestamp.
func KeyNormalizer(kind table.Kind) Normalizer {
	return func(v any) string { return normalize(v, kind) }
}

// NormalizeKey normalizes a label of a Text column.
func NormalizeKey(v any) string { return normalize(v, table.Text) }

func normalize(v any, kind table.Kind) string {
	switch x := v.(type) {
	case nil:
		return MissingKey
	case table.Value:
		return KeyOf(x)
	case string:
		return stringKey(x, kind)
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d.String()
		}
		return stringKey(x.String(), kind)
	case float64:
		return floatKey(x)
	case float32:
		return floatKey(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)).String()
	case int32:
		return decimal.NewFromInt32(x).String()
	case int64:
		return decimal.NewFromInt(x).String()
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(table.TimestampLayout)
	case fmt.Stringer:
		return stringKey(x.String(), kind)
	default:
		return stringKey(fmt.Sprint(x), kind)
	}
}

// KeyOf is the key of a typed cell.
func KeyOf(v table.Value) string {
	if v.Null {
		return MissingKey
	}
	switch v.Kind {
	case table.Numeric:
		return floatKey(v.Num)
	case table.Datetime:
		return v.Time.Format(table.TimestampLayout)
	default:
		return stringKey(v.Str, table.Text)
	}
}

func floatKey(f float64) string {
	switch {
	case math.IsNaN(f):
		return MissingKey
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(f).String()
}

func stringKey(s string, kind table.Kind) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingKey
	}
	switch kind {
	case table.Numeric:
		if d, err := decimal.NewFromString(s); err == nil {
			return d.String()
		}
	case table.Datetime:
		if t, ok := table.ParseTime(s); ok {
			return t.Format(table.TimestampLayout)
		}
	}
	return s
}
