package cmd

import (
	"fmt"

	cfgpkg "github.com/KaramelBytes/vizcheck-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set vizcheck configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_base_url: %s\n", cfg.APIBaseURL)
		fmt.Printf("api_token: %s\n", mask(cfg.APIToken))
		fmt.Printf("chart_endpoint: %s\n", cfg.ChartEndpoint)
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("default_chart_type: %s\n", cfg.DefaultChartType)
		fmt.Printf("labels_path: %s\n", cfg.LabelsPath)
		fmt.Printf("values_path: %s\n", cfg.ValuesPath)
		fmt.Printf("tolerance: %g\n", cfg.Tolerance)
		if cfg.LogDB != "" {
			fmt.Printf("log_db: %s\n", cfg.LogDB)
		} else if p, err := cfg.LogPath(); err == nil {
			fmt.Printf("log_db: %s (default)\n", p)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk. Keys: " + fmt.Sprint(cfgpkg.Keys()),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Println("✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
