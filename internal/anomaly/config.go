package anomaly

import (
	"fmt"

	"vigil/internal/domain"
)

// Algorithm names a detection method.
type Algorithm string

const (
	AlgorithmStatisticalThreshold  Algorithm = "statistical_threshold"
	AlgorithmZScore                Algorithm = "zscore"
	AlgorithmIQR                   Algorithm = "iqr"
	AlgorithmMovingAverage         Algorithm = "moving_average"
	AlgorithmSeasonalDecomposition Algorithm = "seasonal_decomposition"
	AlgorithmIsolationForest       Algorithm = "isolation_forest"
	AlgorithmLocalOutlierFactor    Algorithm = "local_outlier_factor"
)

// IsValid returns true if the algorithm is a known value.
func (a Algorithm) IsValid() bool {
	_, ok := checks[a]
	return ok
}

// Settings are the per-metric tunables. Zero fields in an override inherit
// the global value.
type Settings struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`

	// Sensitivity is the z-score above which a value is anomalous.
	Sensitivity float64 `yaml:"sensitivity" json:"sensitivity"`

	// Threshold is the absolute upper bound for statistical_threshold.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// MinDataPoints is how many samples the baseline needs before judging.
	MinDataPoints int `yaml:"min_data_points" json:"min_data_points"`
}

// Config holds detector configuration.
type Config struct {
	Settings `yaml:",inline"`

	// WindowSize bounds the rolling window kept per metric.
	WindowSize int `yaml:"window_size"`

	// Service is the correlation-key service stamped on anomaly alerts.
	Service string `yaml:"service"`

	// RunbookURLPrefix and DashboardURLPrefix are suffixed with the metric
	// name to build links on anomaly alerts. Empty disables the link.
	RunbookURLPrefix   string `yaml:"runbook_url_prefix"`
	DashboardURLPrefix string `yaml:"dashboard_url_prefix"`

	// Overrides maps metric name to per-metric settings.
	Overrides map[string]Settings `yaml:"overrides"`
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmZScore
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = 2.0
	}
	if c.MinDataPoints == 0 {
		c.MinDataPoints = 10
	}
	if c.WindowSize == 0 {
		c.WindowSize = 100
	}
	if c.Service == "" {
		c.Service = "vigil"
	}
}

// Validate checks the global settings and every override.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: anomaly.window_size must be positive", domain.ErrInvalidConfig)
	}
	if err := c.Settings.validate("anomaly"); err != nil {
		return err
	}
	for metric := range c.Overrides {
		s := c.SettingsFor(metric)
		if err := s.validate("anomaly.overrides." + metric); err != nil {
			return err
		}
		if s.MinDataPoints > c.WindowSize {
			return fmt.Errorf("%w: anomaly.overrides.%s.min_data_points exceeds window_size", domain.ErrInvalidConfig, metric)
		}
	}
	if c.MinDataPoints > c.WindowSize {
		return fmt.Errorf("%w: anomaly.min_data_points exceeds window_size", domain.ErrInvalidConfig)
	}
	return nil
}

// SettingsFor returns the effective settings for a metric.
func (c *Config) SettingsFor(metric string) Settings {
	s := c.Settings
	o, ok := c.Overrides[metric]
	if !ok {
		return s
	}
	if o.Algorithm != "" {
		s.Algorithm = o.Algorithm
	}
	if o.Sensitivity != 0 {
		s.Sensitivity = o.Sensitivity
	}
	if o.Threshold != 0 {
		s.Threshold = o.Threshold
	}
	if o.MinDataPoints != 0 {
		s.MinDataPoints = o.MinDataPoints
	}
	return s
}

func (s Settings) validate(path string) error {
	if !s.Algorithm.IsValid() {
		return fmt.Errorf("%w: %s.algorithm %q is unknown", domain.ErrInvalidConfig, path, s.Algorithm)
	}
	if s.Sensitivity < 0 {
		return fmt.Errorf("%w: %s.sensitivity must not be negative", domain.ErrInvalidConfig, path)
	}
	if s.MinDataPoints < 1 {
		return fmt.Errorf("%w: %s.min_data_points must be at least 1", domain.ErrInvalidConfig, path)
	}
	return nil
}
