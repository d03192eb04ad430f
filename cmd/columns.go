package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var colInput inputFlags

var columnsCmd = &cobra.Command{
	Use:   "columns <file>",
	Short: "Show the inferred column kinds and quick statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := colInput.load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rs.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	colInput.register(columnsCmd)
}
