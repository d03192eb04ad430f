package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Chart service
	APIBaseURL       string `mapstructure:"api_base_url" yaml:"api_base_url"`
	APIToken         string `mapstructure:"api_token" yaml:"api_token"`
	ChartEndpoint    string `mapstructure:"chart_endpoint" yaml:"chart_endpoint"`
	HTTPTimeoutSec   int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	DefaultChartType string `mapstructure:"default_chart_type" yaml:"default_chart_type"`

	// Response extraction
	LabelsPath string `mapstructure:"labels_path" yaml:"labels_path"`
	ValuesPath string `mapstructure:"values_path" yaml:"values_path"`

	// Comparison
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`

	// Test log database; empty means ~/.vizcheck/tests.db (see LogPath)
	LogDB string `mapstructure:"log_db" yaml:"log_db,omitempty"`
}

const dirName = ".vizcheck"

// Dir returns ~/.vizcheck.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vizcheck/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold the API token.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("VIZCHECK")
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("api_base_url", "")
	v.SetDefault("api_token", "")
	v.SetDefault("chart_endpoint", "/api/visualize/generate-chart")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("default_chart_type", "bar")
	v.SetDefault("labels_path", "$.chartConfig.data.labels")
	v.SetDefault("values_path", "$.chartConfig.data.datasets[0].data")
	v.SetDefault("tolerance", 1e-10)
	v.SetDefault("log_db", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// The file is optional, but an explicit one that exists must parse.
	if err := v.ReadInConfig(); err != nil && cfgFile != "" && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// LogPath returns the test log database path, falling back to
// ~/.vizcheck/tests.db when log_db is unset.
func (c *Global) LogPath() (string, error) {
	if c.LogDB != "" {
		return c.LogDB, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tests.db"), nil
}

// Keys lists the settable configuration keys.
func Keys() []string {
	keys := []string{
		"api_base_url", "api_token", "chart_endpoint", "http_timeout_sec", "default_chart_type",
		"labels_path", "values_path", "tolerance", "log_db",
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one key from its string form.
func (c *Global) Set(key, val string) error {
	switch key {
	case "api_base_url":
		c.APIBaseURL = strings.TrimRight(val, "/")
	case "api_token":
		c.APIToken = val
	case "chart_endpoint":
		c.ChartEndpoint = val
	case "http_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for http_timeout_sec: %v", val)
		}
		c.HTTPTimeoutSec = i
	case "default_chart_type":
		c.DefaultChartType = strings.ToLower(val)
	case "labels_path":
		c.LabelsPath = val
	case "values_path":
		c.ValuesPath = val
	case "tolerance":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || math.IsInf(f, 0) {
			return fmt.Errorf("invalid float for tolerance: %v (must be > 0)", val)
		}
		c.Tolerance = f
	case "log_db":
		c.LogDB = val
	default:
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}
