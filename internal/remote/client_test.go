package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv, ln: ln}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

const okBody = `{
  "chartConfig": {"type": "bar", "data": {"labels": ["East", "West"], "datasets": [{"label": "Sales", "data": [15, 20]}]}},
  "dataProcessing": {"groupBy": "Region", "valueField": "Sales", "aggregation": "sum", "filters": []},
  "chartSummary": "Sales by region"
}`

func TestGenerateSendsPayloadAndDecodes(t *testing.T) {
	var got ChartRequest
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost || r.URL.Path != DefaultEndpoint {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Request-Id", "req-1")
		_, _ = w.Write([]byte(okBody))
	}))
	defer s.Close()

	c := NewClient(s.URL+"/", "tok", 5*time.Second)
	resp, err := c.Generate(context.Background(), ChartRequest{
		ChartType:  Bar,
		Data:       []map[string]any{{"Region": "East", "Sales": 10.0}, {"Region": "West", "Sales": nil}},
		UserPrompt: "sum of sales by region",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "Region", resp.DataProcessing.GroupBy)
	assert.Equal(t, "Sales by region", resp.ChartSummary)

	assert.Equal(t, Bar, got.ChartType)
	assert.Equal(t, "sum of sales by region", got.UserPrompt)
	require.Len(t, got.Data, 2)
	assert.Nil(t, got.Data[1]["Sales"])

	g, err := NewAdapter("", "").ToGrouped(resp, table.Text)
	require.NoError(t, err)
	assert.Equal(t, []string{"East", "West"}, g.Keys())
	v, _ := g.Get("West")
	assert.Equal(t, 20.0, v)
}

func TestGenerateClassifiesFailuresWithoutRetry(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var e *AuthError
			assert.True(t, errors.As(err, &e))
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var e *RateLimitError
			require.True(t, errors.As(err, &e))
			assert.Equal(t, 7*time.Second, e.RetryAfter)
		}},
		{http.StatusBadRequest, func(t *testing.T, err error) {
			var e *BadRequestError
			assert.True(t, errors.As(err, &e))
		}},
		{http.StatusBadGateway, func(t *testing.T, err error) {
			var e *ServerError
			assert.True(t, errors.As(err, &e))
		}},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls int32
			s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "nope", "code": "x1"}})
			}))
			defer s.Close()

			c := NewClient(s.URL, "tok", 5*time.Second)
			_, err := c.Generate(context.Background(), ChartRequest{ChartType: Bar, UserPrompt: "p"})
			require.Error(t, err)
			tc.check(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "x1", apiErr.Code)
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
		})
	}
}

func TestGenerateTransportError(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	_, err := NewClient(url, "tok", time.Second).Generate(context.Background(), ChartRequest{ChartType: Pie, UserPrompt: "p"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Error(t, apiErr.Err)
}

func TestGenerateRejectsBadConfigBeforeSending(t *testing.T) {
	var calls int32
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer s.Close()

	reqs := map[string]struct {
		c   *Client
		req ChartRequest
	}{
		"empty prompt": {NewClient(s.URL, "tok", time.Second), ChartRequest{ChartType: Bar, UserPrompt: "  "}},
		"chart type":   {NewClient(s.URL, "tok", time.Second), ChartRequest{ChartType: "radar", UserPrompt: "p"}},
		"no token":     {NewClient(s.URL, "", time.Second), ChartRequest{ChartType: Bar, UserPrompt: "p"}},
		"no base url":  {NewClient("", "tok", time.Second), ChartRequest{ChartType: Bar, UserPrompt: "p"}},
	}
	for name, tc := range reqs {
		t.Run(name, func(t *testing.T) {
			_, err := tc.c.Generate(context.Background(), tc.req)
			var cfgErr *table.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestGenerateRejectsNonJSONBody(t *testing.T) {
	s := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer s.Close()
	_, err := NewClient(s.URL, "tok", time.Second).Generate(context.Background(), ChartRequest{ChartType: Bar, UserPrompt: "p"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestSetEndpoint(t *testing.T) {
	c := NewClient("http://example.test/", "tok", 0)
	assert.Equal(t, "http://example.test/api/visualize/generate-chart", c.URL())
	c.SetEndpoint("v2/chart")
	assert.Equal(t, "http://example.test/v2/chart", c.URL())
}

func TestParseChartType(t *testing.T) {
	ct, err := ParseChartType(" Scatter ")
	require.NoError(t, err)
	assert.Equal(t, Scatter, ct)
	_, err = ParseChartType("radar")
	assert.Error(t, err)
}

func TestDescribeProcessing(t *testing.T) {
	dp := DataProcessing{
		GroupBy:     "Region",
		ValueField:  "Sales",
		Aggregation: "sum",
		Filters: []ProcessingFilter{
			{Field: "Year", Operator: ">=", Value: 2023.0},
			{Field: "Segment", Value: "Retail"},
		},
	}
	assert.Equal(t,
		"Aggregating by sum grouped by region on sales with filters: year >= 2023 and segment == retail",
		DescribeProcessing(dp))
	assert.Equal(t, "", DescribeProcessing(DataProcessing{}))
}
