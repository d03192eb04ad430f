package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	cfgpkg "github.com/KaramelBytes/vizcheck-cli/internal/config"
	"github.com/KaramelBytes/vizcheck-cli/internal/remote"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
	"github.com/KaramelBytes/vizcheck-cli/internal/testlog"
)

type stubCharter struct {
	body  string
	err   error
	calls int
	req   remote.ChartRequest
}

func (s *stubCharter) Generate(_ context.Context, req remote.ChartRequest) (*remote.ChartResponse, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &remote.ChartResponse{
		Raw:            json.RawMessage(s.body),
		ChartSummary:   "Sales by region",
		DataProcessing: remote.DataProcessing{GroupBy: "Region", ValueField: "Sales", Aggregation: "sum"},
	}, nil
}

func chartBody(labels, values string) string {
	return `{"chartConfig":{"data":{"labels":` + labels + `,"datasets":[{"data":` + values + `}]}}}`
}

func salesRows(t *testing.T) *table.RowSet {
	t.Helper()
	rs, err := table.FromStrings([]string{"Region", "Sales"}, [][]string{
		{"East", "10"}, {"West", "20"}, {"East", "5"},
	}, table.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return rs
}

func testDeps(ch *stubCharter) validateDeps {
	return validateDeps{
		newCharter: func(*cfgpkg.Global) (remote.Charter, string) { return ch, "http://stub" },
		openStore: func(path string) (testlog.Store, error) {
			return testlog.Open(path)
		},
	}
}

func testConfig(t *testing.T) *cfgpkg.Global {
	t.Helper()
	return &cfgpkg.Global{
		DefaultChartType: "bar",
		Tolerance:        1e-10,
		LogDB:            filepath.Join(t.TempDir(), "tests.db"),
	}
}

func baseOptions() validateOptions {
	return validateOptions{
		Spec:   aggregate.Spec{GroupBy: "Region", Value: "Sales"},
		Prompt: "total sales by region",
	}
}

func TestRunValidationPassesAndLogs(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East","West"]`, `[15,20]`)}
	c := testConfig(t)
	opts := baseOptions()
	opts.Log = true
	opts.Description = "regional totals"

	var out bytes.Buffer
	if err := runValidation(context.Background(), &out, salesRows(t), c, opts, testDeps(ch)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.calls != 1 || ch.req.ChartType != remote.Bar || len(ch.req.Data) != 3 {
		t.Fatalf("unexpected request: calls=%d %+v", ch.calls, ch.req)
	}
	s := out.String()
	for _, want := range []string{"Summary: Sales by region", "Status: Passed", "✓ Logged test case #1"} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}

	store, err := testlog.Open(c.LogDB)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "Passed" || entries[0].Remarks != "No issues" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRunValidationFailedReturnsError(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East","West"]`, `[15,19]`)}
	var out bytes.Buffer
	err := runValidation(context.Background(), &out, salesRows(t), testConfig(t), baseOptions(), testDeps(ch))
	var fe *failedError
	if !errors.As(err, &fe) {
		t.Fatalf("expected failedError, got %v", err)
	}
	if fe.mismatched != 1 || fe.total != 2 {
		t.Fatalf("unexpected counts: %+v", fe)
	}
	if !strings.Contains(out.String(), "Status: Failed") {
		t.Fatalf("expected failed status in output:\n%s", out.String())
	}
}

func TestRunValidationAllowFail(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East","West"]`, `[15,19]`)}
	opts := baseOptions()
	opts.AllowFail = true
	var out bytes.Buffer
	if err := runValidation(context.Background(), &out, salesRows(t), testConfig(t), opts, testDeps(ch)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "⚠ 1 of 2 groups mismatched") {
		t.Fatalf("expected warning in output:\n%s", out.String())
	}
}

func TestRunValidationLogRequiresDescription(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East"]`, `[15]`)}
	opts := baseOptions()
	opts.Log = true
	err := runValidation(context.Background(), &bytes.Buffer{}, salesRows(t), testConfig(t), opts, testDeps(ch))
	var ce *table.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ch.calls != 0 {
		t.Fatalf("chart service should not be called")
	}
}

func TestRunValidationRejectsUnknownChart(t *testing.T) {
	ch := &stubCharter{}
	opts := baseOptions()
	opts.ChartType = "radar"
	if err := runValidation(context.Background(), &bytes.Buffer{}, salesRows(t), testConfig(t), opts, testDeps(ch)); err == nil {
		t.Fatalf("expected error for unknown chart type")
	}
	if ch.calls != 0 {
		t.Fatalf("chart service should not be called")
	}
}

func TestRunValidationAlignmentError(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East","West"]`, `[15]`)}
	err := runValidation(context.Background(), &bytes.Buffer{}, salesRows(t), testConfig(t), baseOptions(), testDeps(ch))
	var ae *remote.AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlignmentError, got %v", err)
	}
}

func TestRunValidationWritesReport(t *testing.T) {
	ch := &stubCharter{body: chartBody(`["East","West"]`, `[15,20]`)}
	opts := baseOptions()
	opts.JSON = true
	opts.Output = filepath.Join(t.TempDir(), "out", "report.json")
	var out bytes.Buffer
	if err := runValidation(context.Background(), &out, salesRows(t), testConfig(t), opts, testDeps(ch)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(opts.Output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc struct {
		SessionID  string `json:"sessionId"`
		Filters    string `json:"filters"`
		Processing string `json:"processing"`
		Comparison struct {
			Status string `json:"status"`
		} `json:"comparison"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if doc.SessionID == "" || doc.Filters != "None" || doc.Comparison.Status != "Passed" {
		t.Fatalf("unexpected report: %s", b)
	}
	if doc.Processing != "Aggregating by sum grouped by region on sales" {
		t.Fatalf("unexpected processing: %q", doc.Processing)
	}
}

func TestDescribeErrorHints(t *testing.T) {
	auth := &remote.AuthError{APIError: &remote.APIError{StatusCode: 401}}
	if got := describeError(auth); !strings.Contains(got, "VIZCHECK_API_TOKEN") {
		t.Fatalf("expected token hint, got %q", got)
	}
	col := table.Configf("Sales", "not numeric")
	if got := describeError(col); !strings.Contains(got, "vizcheck columns") {
		t.Fatalf("expected columns hint, got %q", got)
	}
	if got := describeError(&failedError{mismatched: 1, total: 3}); got != "validation failed: 1 of 3 groups mismatched" {
		t.Fatalf("unexpected message: %q", got)
	}
	transport := &remote.APIError{Err: errors.New("dial tcp: refused")}
	if got := describeError(transport); !strings.Contains(got, "api_base_url") {
		t.Fatalf("expected base url hint, got %q", got)
	}
}
