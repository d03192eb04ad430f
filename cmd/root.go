package cmd

import (
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/KaramelBytes/vizcheck-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	// Overrides config if set
	flagHTTPTimeoutSec int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "vizcheck",
	Short: "vizcheck: verify chart-service aggregations against local data",
	Long: `vizcheck loads a CSV/TSV/XLSX dataset, aggregates it locally, asks the chart
generation service for the same chart and flags every group where the two disagree.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vizcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
	if rootCmd.PersistentFlags().Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
}

// ensureConfig returns the loaded config, loading it on first use.
func ensureConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func debugf(format string, args ...any) {
	if !debug {
		return
	}
	fmt.Fprintf(os.Stderr, "DEBUG: "+format+"\n", args...)
}

func timeout() time.Duration {
	if cfg == nil || cfg.HTTPTimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.HTTPTimeoutSec) * time.Second
}
