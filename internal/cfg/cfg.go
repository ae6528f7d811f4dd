// Package cfg loads driftwatch configuration from a YAML file and the
// environment. A CONFIG_FILE path takes precedence; individual environment
// variables override file values; everything else falls back to defaults.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"driftwatch/internal/drift"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	BaselinePath        string
	CurrentPath         string
	BaselineMetricsPath string
	CurrentMetricsPath  string
	ReportDir           string
	FiguresDir          string
	DataPath            string // bbolt history location; empty disables persistence
	WebhookURL          string // alert webhook; empty disables notifications
	WebhookTimeout      time.Duration
	ListenAddr          string
	MonitorInterval     time.Duration
	Thresholds          drift.Thresholds
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Data struct {
		Baseline        string `yaml:"baseline"`
		Current         string `yaml:"current"`
		BaselineMetrics string `yaml:"baselineMetrics"`
		CurrentMetrics  string `yaml:"currentMetrics"`
		StorePath       string `yaml:"storePath"`
	} `yaml:"data"`

	Reports struct {
		Dir        string `yaml:"dir"`
		FiguresDir string `yaml:"figuresDir"`
	} `yaml:"reports"`

	Monitor struct {
		ListenAddr string `yaml:"listenAddr"`
		Interval   string `yaml:"interval"`
	} `yaml:"monitor"`

	Alerting struct {
		WebhookURL string `yaml:"webhookURL"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"alerting"`

	Thresholds drift.Thresholds `yaml:"thresholds"`
}

// Load resolves the settings. A .env file in the working directory is
// applied first so container setups can keep overrides out of the shell.
func Load() (Settings, error) {
	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	interval, err := time.ParseDuration(config.Monitor.Interval)
	if err != nil {
		interval = 5 * time.Minute
	}
	webhookTimeout, err := time.ParseDuration(config.Alerting.Timeout)
	if err != nil {
		webhookTimeout = 5 * time.Second
	}

	settings := Settings{
		BaselinePath:        getEnvOrDefault("BASELINE_PATH", orDefault(config.Data.Baseline, "data/baseline.csv")),
		CurrentPath:         getEnvOrDefault("CURRENT_PATH", orDefault(config.Data.Current, "data/current.csv")),
		BaselineMetricsPath: getEnvOrDefault("BASELINE_METRICS_PATH", config.Data.BaselineMetrics),
		CurrentMetricsPath:  getEnvOrDefault("CURRENT_METRICS_PATH", config.Data.CurrentMetrics),
		ReportDir:           getEnvOrDefault("REPORT_DIR", orDefault(config.Reports.Dir, "reports/drift")),
		FiguresDir:          getEnvOrDefault("FIGURES_DIR", orDefault(config.Reports.FiguresDir, "reports/figures")),
		DataPath:            getEnvOrDefault("DATA_PATH", config.Data.StorePath),
		WebhookURL:          getEnvOrDefault("WEBHOOK_URL", config.Alerting.WebhookURL),
		WebhookTimeout:      getDurationOrDefault("WEBHOOK_TIMEOUT", webhookTimeout),
		ListenAddr:          getEnvOrDefault("LISTEN_ADDR", orDefault(config.Monitor.ListenAddr, ":8080")),
		MonitorInterval:     getDurationOrDefault("MONITOR_INTERVAL", interval),
		Thresholds:          thresholdsFromEnv(config.Thresholds),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		BaselinePath:        getEnvOrDefault("BASELINE_PATH", "data/baseline.csv"),
		CurrentPath:         getEnvOrDefault("CURRENT_PATH", "data/current.csv"),
		BaselineMetricsPath: os.Getenv("BASELINE_METRICS_PATH"), // optional
		CurrentMetricsPath:  os.Getenv("CURRENT_METRICS_PATH"),  // optional
		ReportDir:           getEnvOrDefault("REPORT_DIR", "reports/drift"),
		FiguresDir:          getEnvOrDefault("FIGURES_DIR", "reports/figures"),
		DataPath:            os.Getenv("DATA_PATH"), // optional
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookTimeout:      getDurationOrDefault("WEBHOOK_TIMEOUT", 5*time.Second),
		ListenAddr:          getEnvOrDefault("LISTEN_ADDR", ":8080"),
		MonitorInterval:     getDurationOrDefault("MONITOR_INTERVAL", 5*time.Minute),
		Thresholds:          thresholdsFromEnv(drift.Thresholds{}),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// thresholdsFromEnv applies env overrides on top of file values; unset
// fields stay zero and pick up the detector defaults.
func thresholdsFromEnv(base drift.Thresholds) drift.Thresholds {
	base.PSIMinor = getFloatOrDefault("PSI_MINOR_THRESHOLD", base.PSIMinor)
	base.PSIMajor = getFloatOrDefault("PSI_MAJOR_THRESHOLD", base.PSIMajor)
	base.Alpha = getFloatOrDefault("SIGNIFICANCE_ALPHA", base.Alpha)
	base.AccuracyWarnPct = getFloatOrDefault("ACCURACY_WARN_PCT", base.AccuracyWarnPct)
	base.AccuracyCritPct = getFloatOrDefault("ACCURACY_CRIT_PCT", base.AccuracyCritPct)
	base.MetricWarnPct = getFloatOrDefault("METRIC_WARN_PCT", base.MetricWarnPct)
	base.MetricCritPct = getFloatOrDefault("METRIC_CRIT_PCT", base.MetricCritPct)
	base.Bins = getIntOrDefault("PSI_BINS", base.Bins)
	return base
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// validateSettings checks ranges on everything the detector and monitor
// consume. Zero threshold values are allowed; they resolve to defaults.
func validateSettings(settings *Settings) error {
	if settings.BaselinePath == "" {
		return fmt.Errorf("baseline dataset path cannot be empty")
	}
	if settings.CurrentPath == "" {
		return fmt.Errorf("current dataset path cannot be empty")
	}
	if settings.ReportDir == "" {
		return fmt.Errorf("report directory cannot be empty")
	}

	t := settings.Thresholds
	if t.PSIMinor < 0 || t.PSIMajor < 0 {
		return fmt.Errorf("PSI thresholds must be non-negative, got minor=%f major=%f", t.PSIMinor, t.PSIMajor)
	}
	if t.PSIMinor != 0 && t.PSIMajor != 0 && t.PSIMinor >= t.PSIMajor {
		return fmt.Errorf("PSI minor threshold must be below the major threshold, got minor=%f major=%f", t.PSIMinor, t.PSIMajor)
	}
	if t.Alpha < 0 || t.Alpha > 0.5 {
		return fmt.Errorf("significance alpha must be in (0, 0.5], got %f", t.Alpha)
	}
	if t.Bins < 0 || t.Bins > 1000 {
		return fmt.Errorf("PSI bin count must be between 1 and 1000, got %d", t.Bins)
	}

	if settings.MonitorInterval < 10*time.Second {
		return fmt.Errorf("monitor interval must be at least 10s, got %v", settings.MonitorInterval)
	}
	if settings.WebhookTimeout < time.Second || settings.WebhookTimeout > time.Minute {
		return fmt.Errorf("webhook timeout must be between 1s and 1m, got %v", settings.WebhookTimeout)
	}
	return nil
}
