package remote

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

const (
	DefaultLabelsPath = "$.chartConfig.data.labels"
	DefaultValuesPath = "$.chartConfig.data.datasets[0].data"
)

// ResponseSchema is the response shape expected at the default paths.
const ResponseSchema = `{
  "type": "object",
  "required": ["chartConfig"],
  "properties": {
    "chartConfig": {
      "type": "object",
      "required": ["data"],
      "properties": {
        "data": {
          "type": "object",
          "required": ["labels", "datasets"],
          "properties": {
            "labels": {"type": "array"},
            "datasets": {
              "type": "array",
              "minItems": 1,
              "items": {
                "type": "object",
                "required": ["data"],
                "properties": {
                  "data": {"type": "array", "items": {"type": ["number", "string"]}}
                }
              }
            }
          }
        }
      }
    },
    "dataProcessing": {
      "type": ["object", "null"],
      "properties": {
        "groupBy": {"type": ["string", "null"]},
        "valueField": {"type": ["string", "null"]},
        "aggregation": {"type": ["string", "null"]},
        "filters": {"type": ["array", "null"], "items": {"type": "object"}}
      }
    },
    "chartSummary": {"type": ["string", "null"]}
  }
}`

// Adapter extracts labels and values from a chart response.
type Adapter struct {
	LabelsPath string
	ValuesPath string
	// Schema, when set, is checked against the raw response first.
	Schema string
}

// NewAdapter returns an adapter for the given paths. Empty paths fall back to
// the defaults. The response schema only applies when both paths are the
// defaults, since it describes that layout.
func NewAdapter(labelsPath, valuesPath string) Adapter {
	if labelsPath == "" {
		labelsPath = DefaultLabelsPath
	}
	if valuesPath == "" {
		valuesPath = DefaultValuesPath
	}
	a := Adapter{LabelsPath: labelsPath, ValuesPath: valuesPath}
	if labelsPath == DefaultLabelsPath && valuesPath == DefaultValuesPath {
		a.Schema = ResponseSchema
	}
	return a
}

// ToGrouped pairs the i-th label with the i-th value. Labels are normalized
// with aggregate.KeyNormalizer for keyKind, the kind of the local group-by
// column. Any shape problem is an *AlignmentError.
func (a Adapter) ToGrouped(resp *ChartResponse, keyKind table.Kind) (*aggregate.Grouped, error) {
	if resp == nil || len(resp.Raw) == 0 {
		return nil, &AlignmentError{Reason: "empty response"}
	}
	if a.Schema != "" {
		if err := validateShape(a.Schema, resp.Raw); err != nil {
			return nil, err
		}
	}
	doc, err := oj.Parse(resp.Raw)
	if err != nil {
		return nil, &AlignmentError{Reason: fmt.Sprintf("parse response: %v", err)}
	}
	labels, err := extract(doc, a.LabelsPath)
	if err != nil {
		return nil, err
	}
	values, err := extract(doc, a.ValuesPath)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(values) {
		return nil, &AlignmentError{
			Reason: fmt.Sprintf("%d labels but %d values", len(labels), len(values)),
			Labels: len(labels),
			Values: len(values),
		}
	}
	key := aggregate.KeyNormalizer(keyKind)
	entries := make([]aggregate.Entry, len(labels))
	for i := range labels {
		v, ok := toNumber(values[i])
		if !ok {
			return nil, &AlignmentError{
				Reason: fmt.Sprintf("value %d (%v) for label %q is not numeric", i, values[i], key(labels[i])),
				Labels: len(labels),
				Values: len(values),
			}
		}
		entries[i] = aggregate.Entry{Key: key(labels[i]), Value: v}
	}
	g, err := aggregate.FromEntries(entries)
	if err != nil {
		return nil, &AlignmentError{Reason: err.Error(), Labels: len(labels), Values: len(values)}
	}
	return g, nil
}

func validateShape(schema string, raw []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &AlignmentError{Reason: fmt.Sprintf("validate response: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return &AlignmentError{Reason: "unexpected response shape: " + strings.Join(msgs, "; ")}
}

// extract evaluates a JSONPath. A single array result is flattened, so both
// "$.labels" and "$.labels[*]" select the elements.
func extract(doc any, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", expr, err)
	}
	res := x.Get(doc)
	if len(res) == 0 {
		return nil, &AlignmentError{Reason: fmt.Sprintf("nothing found at %s", expr)}
	}
	if len(res) == 1 {
		if arr, ok := res[0].([]any); ok {
			return arr, nil
		}
	}
	return res, nil
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int64:
		f = float64(x)
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
