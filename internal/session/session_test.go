package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/compare"
	"github.com/KaramelBytes/vizcheck-cli/internal/filter"
	"github.com/KaramelBytes/vizcheck-cli/internal/remote"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

type fakeCharter struct {
	body string
	err  error
	got  remote.ChartRequest
}

func (f *fakeCharter) Generate(_ context.Context, req remote.ChartRequest) (*remote.ChartResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &remote.ChartResponse{
		Raw:            []byte(f.body),
		DataProcessing: remote.DataProcessing{GroupBy: "Region", ValueField: "Sales", Aggregation: "sum"},
	}, nil
}

func dataset(t *testing.T) *table.RowSet {
	t.Helper()
	rs, err := table.FromStrings([]string{"Region", "Sales"}, [][]string{
		{"East", "10"}, {"West", "20"}, {"East", "5"},
	}, table.DefaultOptions())
	require.NoError(t, err)
	return rs
}

func ready(t *testing.T, body string) (*Session, *fakeCharter) {
	t.Helper()
	s := New()
	s.Load(dataset(t))
	s.SetAggregation(aggregate.Spec{GroupBy: "Region", Value: "Sales"})
	_, err := s.Aggregate()
	require.NoError(t, err)
	fc := &fakeCharter{body: body}
	_, err = s.Fetch(context.Background(), fc, "sum of sales by region", remote.Bar)
	require.NoError(t, err)
	return s, fc
}

func TestFullFlowFailsOnMismatch(t *testing.T) {
	s, _ := ready(t, `{"chartConfig":{"data":{"labels":["East","West"],"datasets":[{"data":[15,19]}]}}}`)
	res, err := s.Compare()
	require.NoError(t, err)
	assert.Equal(t, compare.Failed, res.Status)

	e, err := s.Entry("  regional sums  ")
	require.NoError(t, err)
	assert.Equal(t, s.ID, e.SessionID)
	assert.Equal(t, "regional sums", e.Description)
	assert.Equal(t, "Failed", e.Status)
	assert.Equal(t, "None", e.Filters)
	assert.Equal(t, "Aggregating by sum grouped by region on sales", e.Processing)
	assert.Equal(t, "Mismatch - Label: West, Expected: 20, Actual: 19", e.Remarks)
	assert.JSONEq(t, `[{"key":"East","value":15},{"key":"West","value":20}]`, e.Expected)
}

func TestFetchSendsUnfilteredData(t *testing.T) {
	s := New()
	s.Load(dataset(t))
	s.SetFilters([]filter.Predicate{filter.OneOf{Column: "Region", Values: []string{"East"}}})
	s.SetAggregation(aggregate.Spec{GroupBy: "Region", Value: "Sales"})
	g, err := s.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, []string{"East"}, g.Keys())

	fc := &fakeCharter{body: `{}`}
	_, err = s.Fetch(context.Background(), fc, "p", remote.Bar)
	require.NoError(t, err)
	assert.Len(t, fc.got.Data, 3)
	assert.Equal(t, 2, s.Filtered().Len())
}

func TestInvalidation(t *testing.T) {
	body := `{"chartConfig":{"data":{"labels":["East","West"],"datasets":[{"data":[15,20]}]}}}`

	s, _ := ready(t, body)
	_, err := s.Compare()
	require.NoError(t, err)
	s.SetFilters(nil)
	assert.Nil(t, s.Local())
	assert.Nil(t, s.Response())
	assert.Nil(t, s.Result())

	s, _ = ready(t, body)
	_, err = s.Compare()
	require.NoError(t, err)
	_, err = s.Aggregate()
	require.NoError(t, err)
	assert.NotNil(t, s.Local())
	assert.Nil(t, s.Response())
	assert.Nil(t, s.Result())

	s, fc := ready(t, body)
	_, err = s.Compare()
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), fc, "again", remote.Bar)
	require.NoError(t, err)
	assert.NotNil(t, s.Response())
	assert.Nil(t, s.Result())

	s.Load(dataset(t))
	assert.Nil(t, s.Local())
	assert.Nil(t, s.Response())
	assert.Equal(t, aggregate.Spec{}, s.Spec())
}

func TestNotReady(t *testing.T) {
	s := New()
	_, err := s.Aggregate()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Fetch(context.Background(), &fakeCharter{}, "p", remote.Bar)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Compare()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Entry("desc")
	assert.ErrorIs(t, err, ErrNotReady)

	s.Load(dataset(t))
	_, err = s.Aggregate()
	var cfgErr *table.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestAlignmentErrorProducesNoResult(t *testing.T) {
	s, _ := ready(t, `{"chartConfig":{"data":{"labels":["East","West","North"],"datasets":[{"data":[15,20]}]}}}`)
	res, err := s.Compare()
	assert.Nil(t, res)
	var ae *remote.AlignmentError
	require.True(t, errors.As(err, &ae))
	assert.Nil(t, s.Result())
}

func TestFetchErrorKeepsNoResponse(t *testing.T) {
	s := New()
	s.Load(dataset(t))
	_, err := s.Fetch(context.Background(), &fakeCharter{err: &remote.ServerError{APIError: &remote.APIError{StatusCode: 503}}}, "p", remote.Bar)
	var se *remote.ServerError
	require.True(t, errors.As(err, &se))
	assert.Nil(t, s.Response())
}

func TestEntryRequiresDescription(t *testing.T) {
	s, _ := ready(t, `{"chartConfig":{"data":{"labels":["East","West"],"datasets":[{"data":[15,20]}]}}}`)
	_, err := s.Compare()
	require.NoError(t, err)
	_, err = s.Entry("   ")
	var cfgErr *table.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestTextCodesStayDistinct(t *testing.T) {
	rs, err := table.FromStrings([]string{"Code", "Sales"}, [][]string{
		{"007", "10"}, {"7", "20"}, {"A1", "1"}, {"1.10", "3"}, {"1.1", "4"},
	}, table.DefaultOptions())
	require.NoError(t, err)
	s := New()
	s.Load(rs)
	s.SetAggregation(aggregate.Spec{GroupBy: "Code", Value: "Sales"})
	local, err := s.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, []string{"007", "7", "A1", "1.10", "1.1"}, local.Keys())

	fc := &fakeCharter{body: `{"chartConfig":{"data":{"labels":["007","7","A1","1.10","1.1"],"datasets":[{"data":[10,20,1,3,4]}]}}}`}
	_, err = s.Fetch(context.Background(), fc, "sales by code", remote.Bar)
	require.NoError(t, err)
	res, err := s.Compare()
	require.NoError(t, err)
	assert.Equal(t, compare.Passed, res.Status)
	assert.Len(t, res.Records, 5)
}

func TestNumericKeysMatchAcrossFormats(t *testing.T) {
	rs, err := table.FromStrings([]string{"Year", "Sales"}, [][]string{
		{"2023", "10"}, {"2024", "20"},
	}, table.DefaultOptions())
	require.NoError(t, err)
	s := New()
	s.Load(rs)
	s.SetAggregation(aggregate.Spec{GroupBy: "Year", Value: "Sales"})
	_, err = s.Aggregate()
	require.NoError(t, err)

	fc := &fakeCharter{body: `{"chartConfig":{"data":{"labels":["2023.0",2024],"datasets":[{"data":[10,20]}]}}}`}
	_, err = s.Fetch(context.Background(), fc, "sales by year", remote.Bar)
	require.NoError(t, err)
	res, err := s.Compare()
	require.NoError(t, err)
	assert.Equal(t, compare.Passed, res.Status)
}
