// Package anomaly decides whether a metric sample is anomalous and builds
// the candidate alert when it is.
package anomaly

import (
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/stats"
)

// ComponentName is the correlation-key component of anomaly alerts.
const ComponentName = "anomaly-detection"

// Detector evaluates samples against each metric's rolling baseline.
type Detector struct {
	cfg     Config
	tracker *stats.Tracker
	logger  *slog.Logger
}

// NewDetector creates a detector backed by the given tracker.
func NewDetector(cfg Config, tracker *stats.Tracker, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger.With("component", "anomaly"),
	}
}

// Evaluate records the sample and returns a candidate alert when it is
// anomalous. It returns false while the baseline holds fewer than
// min_data_points samples.
func (d *Detector) Evaluate(name string, value float64, ts time.Time) (*domain.Alert, bool) {
	baseline := d.tracker.Observe(name, ts, value)
	settings := d.cfg.SettingsFor(name)

	if baseline.Count < settings.MinDataPoints {
		return nil, false
	}

	check, ok := checks[settings.Algorithm]
	if !ok {
		d.logger.Warn("unknown algorithm", "metric", name, "algorithm", settings.Algorithm)
		return nil, false
	}

	v := check(value, baseline, settings)
	if !v.Anomalous {
		return nil, false
	}

	d.logger.Debug("anomaly detected",
		"metric", name,
		"value", value,
		"mean", baseline.Mean,
		"stdDev", baseline.StdDev,
		"algorithm", settings.Algorithm,
	)

	return d.buildAlert(name, value, ts, baseline, settings, v.Bound), true
}

// Key returns the correlation key used for anomalies on a metric. Equal
// metrics always map to the same key so repeats deduplicate.
func (d *Detector) Key(metric string) domain.CorrelationKey {
	return domain.CorrelationKey{
		Service:     d.cfg.Service,
		Component:   ComponentName,
		MetricType:  metric,
		Fingerprint: metric + ":anomaly",
	}
}

func (d *Detector) buildAlert(name string, value float64, ts time.Time, baseline stats.Statistics, s Settings, bound float64) *domain.Alert {
	alert := &domain.Alert{
		CorrelationKey: d.Key(name),
		Severity:       domain.SeverityMedium,
		State:          domain.StateTriggered,
		Title:          fmt.Sprintf("Anomaly detected in %s", name),
		Description: fmt.Sprintf(
			"Metric %s has value %.2f which deviates significantly from normal (mean: %.2f, std: %.2f)",
			name, value, baseline.Mean, baseline.StdDev,
		),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		MetricValue: value,
		Threshold:   bound,
		FireCount:   1,
		Tags:        map[string]string{},
		Context: map[string]any{
			"algorithm":    string(s.Algorithm),
			"mean":         baseline.Mean,
			"std_dev":      baseline.StdDev,
			"sample_count": baseline.Count,
		},
	}
	if d.cfg.RunbookURLPrefix != "" {
		alert.RunbookURL = d.cfg.RunbookURLPrefix + name
	}
	if d.cfg.DashboardURLPrefix != "" {
		alert.DashboardURL = d.cfg.DashboardURLPrefix + name
	}
	return alert
}
