package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KaramelBytes/vizcheck-cli/internal/aggregate"
	"github.com/KaramelBytes/vizcheck-cli/internal/filter"
	"github.com/KaramelBytes/vizcheck-cli/internal/session"
	"github.com/KaramelBytes/vizcheck-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	aggInput   inputFlags
	aggFilters filterFlags
	aggGroupBy string
	aggValue   string
	aggJSON    bool
	aggOutput  string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <file>",
	Short: "Filter a dataset and sum a value column per group, locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := aggInput.load(args[0])
		if err != nil {
			return err
		}
		preds, err := aggFilters.predicates(rs)
		if err != nil {
			return err
		}
		s := session.New()
		s.Load(rs)
		s.SetFilters(preds)
		s.SetAggregation(aggregate.Spec{GroupBy: aggGroupBy, Value: aggValue})
		g, err := s.Aggregate()
		if err != nil {
			return err
		}
		debugf("filters: %s; %d of %d rows kept", filter.Describe(preds), s.Filtered().Len(), rs.Len())

		if aggJSON || aggOutput != "" {
			b, err := utils.PrettyJSON(g)
			if err != nil {
				return err
			}
			if aggOutput != "" {
				if err := utils.SafeWriteFile(aggOutput, b, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d groups to %s\n", g.Len(), aggOutput)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\n", aggGroupBy, aggValue)
		for _, e := range g.Entries() {
			fmt.Fprintf(tw, "%s\t%g\n", e.Key, e.Value)
		}
		fmt.Fprintf(tw, "Total\t%g\n", g.Total())
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggInput.register(aggregateCmd)
	aggFilters.register(aggregateCmd)
	aggregateCmd.Flags().StringVar(&aggGroupBy, "group-by", "", "column to group by (required)")
	aggregateCmd.Flags().StringVar(&aggValue, "value", "", "numeric column to sum (required)")
	aggregateCmd.Flags().BoolVar(&aggJSON, "json", false, "print the grouped result as JSON")
	aggregateCmd.Flags().StringVarP(&aggOutput, "output", "o", "", "write the JSON result to this file")
	_ = aggregateCmd.MarkFlagRequired("group-by")
	_ = aggregateCmd.MarkFlagRequired("value")
}
