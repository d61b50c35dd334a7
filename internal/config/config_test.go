package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/anomaly"
	"vigil/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Storage.Mode != StorageModeMemory {
		t.Errorf("Storage.Mode = %v, want memory", cfg.Storage.Mode)
	}
	if cfg.Engine.CorrelationWindow != 300*time.Second {
		t.Errorf("CorrelationWindow = %v, want 5m", cfg.Engine.CorrelationWindow)
	}
	if cfg.Engine.DeduplicationWindow != 60*time.Second {
		t.Errorf("DeduplicationWindow = %v, want 1m", cfg.Engine.DeduplicationWindow)
	}
	if cfg.Engine.MetricsRetention != 7*24*time.Hour {
		t.Errorf("MetricsRetention = %v, want 168h", cfg.Engine.MetricsRetention)
	}
	if cfg.Engine.MaxAlertsInMemory != 10000 {
		t.Errorf("MaxAlertsInMemory = %v, want 10000", cfg.Engine.MaxAlertsInMemory)
	}
	if cfg.Engine.RenotifyEvery != 5 {
		t.Errorf("RenotifyEvery = %v, want 5", cfg.Engine.RenotifyEvery)
	}
	if cfg.Notification.Timeout != 30*time.Second || cfg.Notification.MaxRetries != 3 {
		t.Errorf("Notification = %+v", cfg.Notification)
	}
	if cfg.Anomaly.Algorithm != anomaly.AlgorithmZScore || cfg.Anomaly.WindowSize != 100 {
		t.Errorf("Anomaly = %+v", cfg.Anomaly)
	}
	if len(cfg.EscalationPolicies) != 1 || cfg.Engine.DefaultEscalationPolicy != "default" {
		t.Errorf("policies = %+v default = %q", cfg.EscalationPolicies, cfg.Engine.DefaultEscalationPolicy)
	}
	if cfg.Notification.SenderFor(domain.ChannelSlack) != SenderLog {
		t.Error("channels without a sender entry should use the log sender")
	}
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
storage:
  mode: storage
engine:
  correlation_window: 10m
  deduplication_window: 2m
  alert_expiry: 72h
  default_escalation_policy: db-oncall
anomaly:
  algorithm: iqr
  min_data_points: 20
  window_size: 200
  overrides:
    queue_depth:
      algorithm: statistical_threshold
      threshold: 5000
notification:
  max_retries: 5
  retry_backoff: 2s
  senders:
    webhook: webhook
    pagerduty: queue
  templates:
    - channel: slack
      subject_template: "[{{severity}}] {{title}}"
      body_template: "{{description}}"
      format: markdown
escalation_policies:
  - id: db-oncall
    name: Database on-call
    max_escalations: 2
    repeat_final_level: true
    repeat_interval: 30m
    levels:
      - level: 0
        timeout: 5m
        channels: [email]
        targets: [dba@example.com]
      - level: 1
        timeout: 15m
        channels: [pagerduty]
        targets: [db-service]
suppression_rules:
  - id: nightly-backup
    pattern: backup
    start_time: 2024-01-01T02:00:00Z
    end_time: 2024-01-01T03:00:00Z
    reason: nightly backup
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Engine.CorrelationWindow != 10*time.Minute || cfg.Engine.AlertExpiry != 72*time.Hour {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if got := cfg.Anomaly.SettingsFor("queue_depth"); got.Algorithm != anomaly.AlgorithmStatisticalThreshold || got.Threshold != 5000 {
		t.Errorf("override = %+v", got)
	}
	if got := cfg.Anomaly.SettingsFor("cpu"); got.Algorithm != anomaly.AlgorithmIQR || got.MinDataPoints != 20 {
		t.Errorf("global settings = %+v", got)
	}
	if cfg.Notification.SenderFor(domain.ChannelPagerDuty) != SenderQueue {
		t.Error("pagerduty should route to the queue sender")
	}
	if len(cfg.Notification.Templates) != 1 || cfg.Notification.Templates[0].Channel != domain.ChannelSlack {
		t.Errorf("templates = %+v", cfg.Notification.Templates)
	}

	p := cfg.EscalationPolicies[0]
	if p.ID != "db-oncall" || !p.RepeatFinalLevel || p.RepeatInterval != 30*time.Minute {
		t.Errorf("policy = %+v", p)
	}
	if p.Levels[1].Timeout != 15*time.Minute || p.Levels[1].Channels[0] != domain.ChannelPagerDuty {
		t.Errorf("level 1 = %+v", p.Levels[1])
	}
	if len(cfg.SuppressionRules) != 1 || cfg.SuppressionRules[0].EndTime.Hour() != 3 {
		t.Errorf("rules = %+v", cfg.SuppressionRules)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"dedup window wider than correlation window", "engine:\n  deduplication_window: 10m\n  correlation_window: 5m\n"},
		{"unknown storage mode", "storage:\n  mode: disk\n"},
		{"unknown algorithm", "anomaly:\n  algorithm: tarot\n"},
		{"policy without levels", "escalation_policies:\n  - id: empty\n"},
		{"missing default policy", "engine:\n  default_escalation_policy: nobody\n"},
		{"bad suppression rule", "suppression_rules:\n  - id: r1\n"},
		{"unknown sender", "notification:\n  senders:\n    email: carrier-pigeon\n"},
		{"queue sender in memory mode", "notification:\n  senders:\n    email: queue\n"},
		{"negative retries", "notification:\n  max_retries: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:9090" {
		t.Errorf("Address() = %v", cfg.Server.Address())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestNotificationConfig_DispatchBudget(t *testing.T) {
	n := NotificationConfig{Timeout: 30 * time.Second, MaxRetries: 3, RetryBackoff: 2 * time.Second}

	// four attempts at 30s plus three 2s pauses
	if got := n.AttemptBudget(); got != 126*time.Second {
		t.Errorf("AttemptBudget() = %v, want 2m6s", got)
	}

	email := []domain.NotificationChannel{domain.ChannelEmail}
	both := []domain.NotificationChannel{domain.ChannelEmail, domain.ChannelSlack}
	policies := []*domain.EscalationPolicy{
		{ID: "narrow", Levels: []domain.EscalationLevel{{Channels: email, Targets: []string{"a"}}}},
		{ID: "wide", Levels: []domain.EscalationLevel{
			{Channels: email, Targets: []string{"a"}},
			{Channels: both, Targets: []string{"a", "b", "c"}},
		}},
	}

	tests := []struct {
		name     string
		policies []*domain.EscalationPolicy
		want     time.Duration
	}{
		{"no policies still covers one pair", nil, 126 * time.Second},
		{"widest level sets the bound", policies, 6 * 126 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.DispatchBudget(tt.policies); got != tt.want {
				t.Errorf("DispatchBudget() = %v, want %v", got, tt.want)
			}
		})
	}
}
