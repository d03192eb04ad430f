// Package session keeps the state of one validation run and drops
// downstream results whenever an upstream input changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/compare"
	"github.com/KaramelBytes/vizcheck-cli/internal/filter"
	"github.com/KaramelBytes/vizcheck-cli/internal/remote"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
	"github.com/KaramelBytes/vizcheck-cli/internal/testlog"
)

// ErrNotReady is returned when a step runs before the steps it depends on.
var ErrNotReady = errors.New("session step not ready")

// Session holds one dataset and everything derived from it. It is not safe
// for concurrent use.
type Session struct {
	ID      string
	Options compare.Options
	Adapter remote.Adapter

	data     *table.RowSet
	filters  []filter.Predicate
	spec     aggregate.Spec
	filtered *table.RowSet
	local    *aggregate.Grouped
	response *remote.ChartResponse
	remoteG  *aggregate.Grouped
	result   *compare.Result
}

// New returns an empty session with a fresh ID.
func New() *Session {
	return &Session{ID: uuid.NewString(), Adapter: remote.NewAdapter("", "")}
}

// Load replaces the dataset and clears everything derived from it,
// including filters and the aggregation spec.
func (s *Session) Load(rs *table.RowSet) {
	s.data = rs
	s.filters = nil
	s.spec = aggregate.Spec{}
	s.resetFrom(stageFiltered)
}

// SetFilters replaces the filter list.
func (s *Session) SetFilters(preds []filter.Predicate) {
	s.filters = append([]filter.Predicate(nil), preds...)
	s.resetFrom(stageFiltered)
}

// SetAggregation replaces the grouping spec.
func (s *Session) SetAggregation(spec aggregate.Spec) {
	s.spec = spec
	s.resetFrom(stageFiltered)
}

// Aggregate filters the dataset and sums it locally.
func (s *Session) Aggregate() (*aggregate.Grouped, error) {
	if s.data == nil {
		return nil, fmt.Errorf("aggregate: no dataset loaded: %w", ErrNotReady)
	}
	if s.spec.GroupBy == "" || s.spec.Value == "" {
		return nil, table.Configf("", "group-by and value columns must both be selected")
	}
	s.resetFrom(stageFiltered)
	filtered, err := filter.Apply(s.data, s.filters)
	if err != nil {
		return nil, err
	}
	g, err := aggregate.Sum(filtered, s.spec)
	if err != nil {
		return nil, err
	}
	s.filtered, s.local = filtered, g
	return g, nil
}

// Fetch sends the loaded dataset, unfiltered, to the chart service.
func (s *Session) Fetch(ctx context.Context, c remote.Charter, prompt string, chartType remote.ChartType) (*remote.ChartResponse, error) {
	if s.data == nil {
		return nil, fmt.Errorf("fetch: no dataset loaded: %w", ErrNotReady)
	}
	s.resetFrom(stageRemote)
	resp, err := c.Generate(ctx, remote.ChartRequest{
		ChartType:  chartType,
		Data:       s.data.Records(),
		UserPrompt: prompt,
	})
	if err != nil {
		return nil, err
	}
	s.response = resp
	return resp, nil
}

// Compare adapts the remote response and compares it with the local result.
func (s *Session) Compare() (*compare.Result, error) {
	if s.local == nil {
		return nil, fmt.Errorf("compare: no local aggregation: %w", ErrNotReady)
	}
	if s.response == nil {
		return nil, fmt.Errorf("compare: no remote response: %w", ErrNotReady)
	}
	s.remoteG, s.result = nil, nil
	col, err := s.data.Column(s.spec.GroupBy)
	if err != nil {
		return nil, err
	}
	g, err := s.Adapter.ToGrouped(s.response, col.Kind)
	if err != nil {
		return nil, err
	}
	s.remoteG = g
	s.result = compare.Compare(s.local, g, s.Options)
	return s.result, nil
}

// Entry builds a test log entry for the last comparison.
func (s *Session) Entry(description string) (testlog.Entry, error) {
	if strings.TrimSpace(description) == "" {
		return testlog.Entry{}, table.Configf("", "test case description cannot be empty")
	}
	if s.result == nil {
		return testlog.Entry{}, fmt.Errorf("log entry: no comparison: %w", ErrNotReady)
	}
	expected, err := json.Marshal(s.local)
	if err != nil {
		return testlog.Entry{}, fmt.Errorf("encode expected: %w", err)
	}
	actual, err := json.Marshal(s.remoteG)
	if err != nil {
		return testlog.Entry{}, fmt.Errorf("encode actual: %w", err)
	}
	return testlog.Entry{
		SessionID:   s.ID,
		Description: strings.TrimSpace(description),
		Filters:     filter.Describe(s.filters),
		Processing:  remote.DescribeProcessing(s.response.DataProcessing),
		Expected:    string(expected),
		Actual:      string(actual),
		Status:      string(s.result.Status),
		Remarks:     s.result.Remarks(),
	}, nil
}

func (s *Session) Filters() []filter.Predicate       { return s.filters }
func (s *Session) Spec() aggregate.Spec              { return s.spec }
func (s *Session) Filtered() *table.RowSet           { return s.filtered }
func (s *Session) Local() *aggregate.Grouped         { return s.local }
func (s *Session) Response() *remote.ChartResponse   { return s.response }
func (s *Session) RemoteGrouped() *aggregate.Grouped { return s.remoteG }
func (s *Session) Result() *compare.Result           { return s.result }

type stage int

const (
	stageFiltered stage = iota
	stageRemote
)

func (s *Session) resetFrom(st stage) {
	if st <= stageFiltered {
		s.filtered, s.local = nil, nil
	}
	if st <= stageRemote {
		s.response, s.remoteG = nil, nil
	}
	s.result = nil
}
