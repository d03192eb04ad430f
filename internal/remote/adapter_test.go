package remote

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

func response(body string) *ChartResponse { return &ChartResponse{Raw: []byte(body)} }

func alignment(t *testing.T, err error) *AlignmentError {
	t.Helper()
	var ae *AlignmentError
	require.True(t, errors.As(err, &ae), "got %v", err)
	return ae
}

func TestToGroupedCountMismatch(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":["East","West","North"],"datasets":[{"data":[15,20]}]}}}`
	g, err := NewAdapter("", "").ToGrouped(response(body), table.Text)
	assert.Nil(t, g)
	ae := alignment(t, err)
	assert.Equal(t, 3, ae.Labels)
	assert.Equal(t, 2, ae.Values)
}

func TestToGroupedNormalizesLabels(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":[2023, "2024.0", null, " East "],"datasets":[{"data":[1.5, "2", 3, 4]}]}}}`
	g, err := NewAdapter("", "").ToGrouped(response(body), table.Numeric)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024", aggregate.MissingKey, "East"}, g.Keys())
	v, _ := g.Get("2024")
	assert.Equal(t, 2.0, v)
}

func TestToGroupedRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"text value":      `{"chartConfig":{"data":{"labels":["a"],"datasets":[{"data":["abc"]}]}}}`,
		"null value":      `{"chartConfig":{"data":{"labels":["a"],"datasets":[{"data":[null]}]}}}`,
		"no datasets":     `{"chartConfig":{"data":{"labels":["a"],"datasets":[]}}}`,
		"missing config":  `{"chartSummary":"hi"}`,
		"duplicate label": `{"chartConfig":{"data":{"labels":["5", 5],"datasets":[{"data":[1, 2]}]}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAdapter("", "").ToGrouped(response(body), table.Text)
			alignment(t, err)
		})
	}
}

func TestToGroupedEmptyIsValid(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":[],"datasets":[{"data":[]}]}}}`
	g, err := NewAdapter("", "").ToGrouped(response(body), table.Text)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}

func TestToGroupedCustomPaths(t *testing.T) {
	a := NewAdapter("$.result.series[*].name", "$.result.series[*].total")
	assert.Empty(t, a.Schema)
	body := `{"result":{"series":[{"name":"East","total":15},{"name":"West","total":20}]}}`
	g, err := a.ToGrouped(response(body), table.Text)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Entry{{Key: "East", Value: 15}, {Key: "West", Value: 20}}, g.Entries())

	_, err = a.ToGrouped(response(`{"result":{}}`), table.Text)
	alignment(t, err)
}

func TestToGroupedEmptyResponse(t *testing.T) {
	_, err := NewAdapter("", "").ToGrouped(nil, table.Text)
	alignment(t, err)
}

func TestToGroupedKeepsTextLabels(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":["007","7","1.10","1.1"," A1 "],"datasets":[{"data":[1,2,3,4,5]}]}}}`
	g, err := NewAdapter("", "").ToGrouped(response(body), table.Text)
	require.NoError(t, err)
	assert.Equal(t, []string{"007", "7", "1.10", "1.1", "A1"}, g.Keys())

	_, err = NewAdapter("", "").ToGrouped(response(body), table.Numeric)
	alignment(t, err)
}

func TestToGroupedDatetimeLabels(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":["2024-01-02","2024-01-03 10:00:00"],"datasets":[{"data":[1,2]}]}}}`
	g, err := NewAdapter("", "").ToGrouped(response(body), table.Datetime)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02 00:00:00", "2024-01-03 10:00:00"}, g.Keys())
}
