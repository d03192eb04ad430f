// Package remote talks to the chart-generation service and turns its
// responses into grouped results.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/vizcheck-cli/internal/table"
)

// DefaultEndpoint is the chart generation path under the base URL.
const DefaultEndpoint = "/api/visualize/generate-chart"

// ChartType is the kind of chart the service is asked to produce.
type ChartType string

const (
	Bar     ChartType = "bar"
	Pie     ChartType = "pie"
	Bubble  ChartType = "bubble"
	Scatter ChartType = "scatter"
	Line    ChartType = "line"
)

// ChartTypes lists the accepted chart types.
var ChartTypes = []ChartType{Bar, Pie, Bubble, Scatter, Line}

// ParseChartType validates a chart type name.
func ParseChartType(s string) (ChartType, error) {
	ct := ChartType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ChartTypes {
		if ct == known {
			return ct, nil
		}
	}
	names := make([]string, len(ChartTypes))
	for i, k := range ChartTypes {
		names[i] = string(k)
	}
	return "", table.Configf("", "chart type %q is not one of %s", s, strings.Join(names, ", "))
}

// ChartRequest is the payload sent to the chart service.
type ChartRequest struct {
	ChartType  ChartType        `json:"chartType"`
	Data       []map[string]any `json:"data"`
	UserPrompt string           `json:"userPrompt"`
}

// ProcessingFilter is one filter the service reports having applied.
type ProcessingFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// DataProcessing is the service's own account of how it aggregated the data.
type DataProcessing struct {
	GroupBy     string             `json:"groupBy"`
	ValueField  string             `json:"valueField"`
	Aggregation string             `json:"aggregation"`
	Filters     []ProcessingFilter `json:"filters"`
}

// ChartResponse is a decoded chart service response. Raw keeps the body as
// received so labels and values can be extracted by path.
type ChartResponse struct {
	Raw            json.RawMessage `json:"-"`
	DataProcessing DataProcessing  `json:"dataProcessing"`
	ChartSummary   string          `json:"chartSummary"`
	RequestID      string          `json:"-"`
}

// Charter produces charts from a dataset and a prompt.
type Charter interface {
	Generate(ctx context.Context, req ChartRequest) (*ChartResponse, error)
}

// Client calls the chart service over HTTP. Each Generate call makes exactly
// one request; failures are returned, never retried.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
	endpoint   string
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL, token string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoint:   DefaultEndpoint,
	}
}

// SetEndpoint overrides the request path under the base URL.
func (c *Client) SetEndpoint(p string) {
	if p == "" {
		return
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	c.endpoint = p
}

// URL is the full address requests are sent to.
func (c *Client) URL() string { return c.baseURL + c.endpoint }

func (c *Client) Generate(ctx context.Context, req ChartRequest) (*ChartResponse, error) {
	if c.baseURL == "" {
		return nil, table.Configf("", "api base url is not configured")
	}
	if c.token == "" {
		return nil, table.Configf("", "api token is missing (set VIZCHECK_API_TOKEN or api_token)")
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, table.Configf("", "prompt cannot be empty")
	}
	if _, err := ParseChartType(string(req.ChartType)); err != nil {
		return nil, err
	}
	if req.Data == nil {
		req.Data = []map[string]any{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
		if v, ok := raw["error"].(map[string]any); ok {
			raw = v
		}
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		} else if msg, ok := raw["error"].(string); ok {
			apiErr.Message = msg
		}
		if code, ok := raw["code"].(string); ok {
			apiErr.Code = code
		}
		return nil, classifyAPIError(apiErr, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, RequestID: extractRequestID(resp), Err: fmt.Errorf("read body: %w", err)}
	}
	out := &ChartResponse{Raw: body, RequestID: extractRequestID(resp)}
	if !json.Valid(body) {
		return nil, &APIError{StatusCode: resp.StatusCode, RequestID: out.RequestID, Err: errors.New("decode response: body is not valid JSON")}
	}
	// Fields of the wrong type are left empty here; the adapter's schema
	// check reports them.
	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal(body, out); err != nil && !errors.As(err, &typeErr) {
		return nil, &APIError{StatusCode: resp.StatusCode, RequestID: out.RequestID, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

// DescribeProcessing renders the service's processing summary as one
// sentence, e.g. "Aggregating by sum grouped by region on sales".
func DescribeProcessing(dp DataProcessing) string {
	var parts []string
	if dp.Aggregation != "" {
		parts = append(parts, "Aggregating by "+strings.ToUpper(dp.Aggregation))
	}
	if dp.GroupBy != "" {
		parts = append(parts, "grouped by "+dp.GroupBy)
	}
	if dp.ValueField != "" {
		parts = append(parts, "on "+dp.ValueField)
	}
	if len(dp.Filters) > 0 {
		fs := make([]string, len(dp.Filters))
		for i, f := range dp.Filters {
			field, op := f.Field, f.Operator
			if field == "" {
				field = "Unknown"
			}
			if op == "" {
				op = "=="
			}
			val := "Unknown"
			if f.Value != nil {
				val = fmt.Sprint(f.Value)
			}
			fs[i] = fmt.Sprintf("%s %s %s", field, op, val)
		}
		parts = append(parts, "with filters: "+strings.Join(fs, " and "))
	}
	return capitalize(strings.Join(parts, " "))
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
