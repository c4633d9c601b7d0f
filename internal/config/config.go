package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable that overrides api_key from the file.
const APIKeyEnv = "GEMINI_API_KEY"

// ErrMissingAPIKey is returned when no API key is configured at all.
// It is a fatal configuration error: no network call is attempted without it.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Connectivity configures the local network reachability probe used in serve
// mode to tell provider outages apart from local network outages.
type Connectivity struct {
	Enabled         bool   `yaml:"enabled"`
	Target          string `yaml:"target"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Config represents configuration data for the rate checker.
type Config struct {
	APIKey          string       `yaml:"api_key"`
	BaseURL         string       `yaml:"base_url"`
	Models          []string     `yaml:"models"`
	ExcludeModels   []string     `yaml:"exclude_models"`
	Prompt          string       `yaml:"prompt"`
	TimeoutSeconds  int          `yaml:"timeout_seconds"`
	ProbeDelayMS    int          `yaml:"probe_delay_ms"`
	QuotaPatterns   []string     `yaml:"quota_patterns"`
	HistoryPath     string       `yaml:"history_path"`
	ReportPath      string       `yaml:"report_path"`
	RecentRuns      int          `yaml:"recent_runs"`
	IntervalMinutes int          `yaml:"interval_minutes"`
	Connectivity    Connectivity `yaml:"connectivity"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		ExcludeModels:   []string{"gemma"},
		Prompt:          "Hello",
		TimeoutSeconds:  10,
		ProbeDelayMS:    500,
		QuotaPatterns:   []string{"RESOURCE_EXHAUSTED", "quota"},
		HistoryPath:     "gemini_rate_history.json",
		ReportPath:      "gemini_rate_check_results.html",
		RecentRuns:      10,
		IntervalMinutes: 5,
		Connectivity: Connectivity{
			Target:          "1.1.1.1",
			IntervalSeconds: 60,
			TimeoutSeconds:  4,
		},
	}
}

// Load reads configuration from a yaml file. Missing files fall back to
// defaults, and GEMINI_API_KEY always wins over the api_key field.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// keep defaults
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.APIKey = key
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaults.Prompt
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if cfg.ProbeDelayMS < 0 {
		cfg.ProbeDelayMS = defaults.ProbeDelayMS
	}
	if len(cfg.QuotaPatterns) == 0 {
		cfg.QuotaPatterns = defaults.QuotaPatterns
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaults.HistoryPath
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = defaults.ReportPath
	}
	if cfg.RecentRuns <= 0 {
		cfg.RecentRuns = defaults.RecentRuns
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = defaults.IntervalMinutes
	}
	if cfg.Connectivity.Target == "" {
		cfg.Connectivity.Target = defaults.Connectivity.Target
	}
	if cfg.Connectivity.IntervalSeconds <= 0 {
		cfg.Connectivity.IntervalSeconds = defaults.Connectivity.IntervalSeconds
	}
	if cfg.Connectivity.TimeoutSeconds <= 0 {
		cfg.Connectivity.TimeoutSeconds = defaults.Connectivity.TimeoutSeconds
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for a probe run.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return errors.New("base_url must not be empty")
	}
	return nil
}
