package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/KaramelBytes/vizcheck-cli/internal/testlog"
	"github.com/KaramelBytes/vizcheck-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	logLimit int
	logJSON  bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect recorded test cases",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent test cases, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		path, err := c.LogPath()
		if err != nil {
			return err
		}
		store, err := testlog.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		entries, err := store.List(cmd.Context(), logLimit)
		if err != nil {
			return err
		}
		debugf("read %d test cases from %s", len(entries), path)
		if logJSON {
			b, err := utils.PrettyJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		return writeEntries(cmd.OutOrStdout(), entries)
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logListCmd)
	logListCmd.Flags().IntVar(&logLimit, "limit", 20, "number of entries to show (0 = all)")
	logListCmd.Flags().BoolVar(&logJSON, "json", false, "print entries as JSON")
}

func writeEntries(w io.Writer, entries []testlog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no test cases)")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWhen\tStatus\tDescription\tRemarks")
	for _, e := range entries {
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Status, e.Description, e.Remarks)
	}
	return tw.Flush()
}
