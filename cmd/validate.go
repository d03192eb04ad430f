package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/compare"
	cfgpkg "github.com/KaramelBytes/vizcheck-cli/internal/config"
	"github.com/KaramelBytes/vizcheck-cli/internal/filter"
	"github.com/KaramelBytes/vizcheck-cli/internal/remote"
	"github.com/KaramelBytes/vizcheck-cli/internal/session"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
	"github.com/KaramelBytes/vizcheck-cli/internal/testlog"
	"github.com/KaramelBytes/vizcheck-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	valInput     inputFlags
	valFilters   filterFlags
	valGroupBy   string
	valValue     string
	valPrompt    string
	valChart     string
	valLog       bool
	valDesc      string
	valJSON      bool
	valOutput    string
	valAllowFail bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Compare the chart service's aggregation with a local one",
	Long: `Aggregate the dataset locally, send the whole dataset and the prompt to the
chart service, and compare the service's labels and values with the local groups.
A Failed comparison exits non-zero unless --allow-fail is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		rs, err := valInput.load(args[0])
		if err != nil {
			return err
		}
		preds, err := valFilters.predicates(rs)
		if err != nil {
			return err
		}
		opts := validateOptions{
			Filters:     preds,
			Spec:        aggregate.Spec{GroupBy: valGroupBy, Value: valValue},
			Prompt:      valPrompt,
			ChartType:   valChart,
			Log:         valLog,
			Description: valDesc,
			JSON:        valJSON,
			Output:      valOutput,
			AllowFail:   valAllowFail,
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout()+5*time.Second)
		defer cancel()
		return runValidation(ctx, cmd.OutOrStdout(), rs, c, opts, defaultValidateDeps)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	valInput.register(validateCmd)
	valFilters.register(validateCmd)
	validateCmd.Flags().StringVar(&valGroupBy, "group-by", "", "column to group by (required)")
	validateCmd.Flags().StringVar(&valValue, "value", "", "numeric column to sum (required)")
	validateCmd.Flags().StringVarP(&valPrompt, "prompt", "p", "", "natural-language chart request sent to the service (required)")
	validateCmd.Flags().StringVar(&valChart, "chart", "", "chart type: bar|pie|bubble|scatter|line (default from config)")
	validateCmd.Flags().BoolVar(&valLog, "log", false, "record the run in the test log")
	validateCmd.Flags().StringVar(&valDesc, "desc", "", "test case description (required with --log)")
	validateCmd.Flags().BoolVar(&valJSON, "json", false, "print the comparison as JSON")
	validateCmd.Flags().StringVarP(&valOutput, "output", "o", "", "write a JSON report to this file")
	validateCmd.Flags().BoolVar(&valAllowFail, "allow-fail", false, "exit zero even when the comparison fails")
	_ = validateCmd.MarkFlagRequired("group-by")
	_ = validateCmd.MarkFlagRequired("value")
	_ = validateCmd.MarkFlagRequired("prompt")
}

type validateOptions struct {
	Filters     []filter.Predicate
	Spec        aggregate.Spec
	Prompt      string
	ChartType   string
	Log         bool
	Description string
	JSON        bool
	Output      string
	AllowFail   bool
}

// validateDeps isolates the network and storage so the flow can be tested.
type validateDeps struct {
	newCharter func(c *cfgpkg.Global) (remote.Charter, string)
	openStore  func(path string) (testlog.Store, error)
}

var defaultValidateDeps = validateDeps{
	newCharter: func(c *cfgpkg.Global) (remote.Charter, string) {
		cl := remote.NewClient(c.APIBaseURL, c.APIToken, timeout())
		cl.SetEndpoint(c.ChartEndpoint)
		return cl, cl.URL()
	},
	openStore: func(path string) (testlog.Store, error) {
		return testlog.Open(path)
	},
}

// report is the JSON document written by --output.
type report struct {
	SessionID  string             `json:"sessionId"`
	File       string             `json:"file"`
	Filters    string             `json:"filters"`
	Spec       aggregate.Spec     `json:"aggregation"`
	Processing string             `json:"processing"`
	Summary    string             `json:"chartSummary,omitempty"`
	Local      *aggregate.Grouped `json:"expected"`
	Remote     *aggregate.Grouped `json:"actual"`
	Result     *compare.Result    `json:"comparison"`
}

func runValidation(ctx context.Context, out io.Writer, rs *table.RowSet, c *cfgpkg.Global, opts validateOptions, deps validateDeps) error {
	if opts.Log && opts.Description == "" {
		return table.Configf("", "--desc is required with --log")
	}
	chartName := opts.ChartType
	if chartName == "" {
		chartName = c.DefaultChartType
	}
	chart, err := remote.ParseChartType(chartName)
	if err != nil {
		return err
	}

	s := session.New()
	s.Options = compare.Options{Tolerance: c.Tolerance}
	s.Adapter = remote.NewAdapter(c.LabelsPath, c.ValuesPath)
	s.Load(rs)
	s.SetFilters(opts.Filters)
	s.SetAggregation(opts.Spec)
	local, err := s.Aggregate()
	if err != nil {
		return err
	}
	debugf("session %s: %d of %d rows after filters, %d local groups", s.ID, s.Filtered().Len(), rs.Len(), local.Len())

	charter, url := deps.newCharter(c)
	fmt.Fprintf(out, "⚙ Requesting %s chart for %d rows ...\n", chart, rs.Len())
	debugf("POST %s", url)
	start := time.Now()
	resp, err := s.Fetch(ctx, charter, opts.Prompt, chart)
	if err != nil {
		return err
	}
	debugf("chart service answered in %s (request id %q)", time.Since(start).Round(time.Millisecond), resp.RequestID)
	if resp.ChartSummary != "" {
		fmt.Fprintf(out, "Summary: %s\n", resp.ChartSummary)
	}
	processing := remote.DescribeProcessing(resp.DataProcessing)
	if processing != "" {
		fmt.Fprintf(out, "Service processing: %s\n", processing)
	}

	res, err := s.Compare()
	if err != nil {
		return err
	}
	if opts.JSON {
		b, err := res.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	} else {
		fmt.Fprintln(out)
		if err := res.WriteTable(out, opts.Spec.GroupBy); err != nil {
			return err
		}
	}

	if opts.Output != "" {
		b, err := utils.PrettyJSON(report{
			SessionID:  s.ID,
			File:       rs.Name,
			Filters:    filter.Describe(opts.Filters),
			Spec:       opts.Spec,
			Processing: processing,
			Summary:    resp.ChartSummary,
			Local:      local,
			Remote:     s.RemoteGrouped(),
			Result:     res,
		})
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(opts.Output, b, true); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote report to %s\n", opts.Output)
	}

	if opts.Log {
		entry, err := s.Entry(opts.Description)
		if err != nil {
			return err
		}
		path, err := c.LogPath()
		if err != nil {
			return err
		}
		store, err := deps.openStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Record(ctx, entry)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Logged test case #%d\n", id)
	}

	if res.Status == compare.Failed {
		if opts.AllowFail {
			fmt.Fprintf(out, "⚠ %d of %d groups mismatched\n", len(res.Mismatches()), len(res.Records))
			return nil
		}
		return &failedError{mismatched: len(res.Mismatches()), total: len(res.Records)}
	}
	return nil
}
