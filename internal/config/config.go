// Package config provides configuration loading and management for Vigil.
// It loads a single YAML file, fills defaults, and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/internal/anomaly"
	"vigil/internal/domain"
)

// StorageMode represents the storage backend mode.
type StorageMode string

const (
	// StorageModeMemory uses in-memory implementations for all storage.
	StorageModeMemory StorageMode = "memory"
	// StorageModeStorage uses real storage backends (Kafka, Redis, PostgreSQL).
	StorageModeStorage StorageMode = "storage"
)

// IsValid returns true if the storage mode is valid.
func (m StorageMode) IsValid() bool {
	return m == StorageModeMemory || m == StorageModeStorage
}

// SenderKind selects the transport used for a notification channel.
type SenderKind string

const (
	// SenderLog writes notifications to the structured log.
	SenderLog SenderKind = "log"
	// SenderWebhook POSTs notifications to the target URL.
	SenderWebhook SenderKind = "webhook"
	// SenderQueue publishes notification intents to the notification topic.
	SenderQueue SenderKind = "queue"
)

// IsValid returns true if the sender kind is known.
func (k SenderKind) IsValid() bool {
	return k == SenderLog || k == SenderWebhook || k == SenderQueue
}

// Config represents the complete application configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Server       ServerConfig       `yaml:"server"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Logger       LoggerConfig       `yaml:"logger"`
	Engine       EngineConfig       `yaml:"engine"`
	Anomaly      anomaly.Config     `yaml:"anomaly"`
	Notification NotificationConfig `yaml:"notification"`

	// EscalationPolicies are loaded at start. When empty, the built-in
	// default policy is installed.
	EscalationPolicies []domain.EscalationPolicy `yaml:"escalation_policies"`

	// SuppressionRules are loaded at start in addition to persisted rules.
	SuppressionRules []domain.SuppressionRule `yaml:"suppression_rules"`
}

// StorageConfig holds the storage mode configuration.
type StorageConfig struct {
	Mode StorageMode `yaml:"mode"`
}

// UseMemory returns true if in-memory storage should be used.
func (c *StorageConfig) UseMemory() bool {
	return c.Mode == StorageModeMemory
}

// UseStorage returns true if real storage backends should be used.
func (c *StorageConfig) UseStorage() bool {
	return c.Mode == StorageModeStorage
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// KafkaConfig holds Kafka connection and topic settings.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	NotificationTopic string   `yaml:"notification_topic"`
	ConsumerGroup     string   `yaml:"consumer_group"`
	PartitionCount    int      `yaml:"partition_count"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int32  `yaml:"max_open_conns"`
	MaxIdleConns int32  `yaml:"max_idle_conns"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// EngineConfig holds the alert pipeline tunables.
type EngineConfig struct {
	// MaxAlertsInMemory is the ceiling used by the health check.
	MaxAlertsInMemory int `yaml:"max_alerts_in_memory"`

	CorrelationWindow       time.Duration `yaml:"correlation_window"`
	DeduplicationWindow     time.Duration `yaml:"deduplication_window"`
	EscalationCheckInterval time.Duration `yaml:"escalation_check_interval"`
	CleanupInterval         time.Duration `yaml:"cleanup_interval"`

	// MetricsRetention bounds how long resolved alerts, samples and groups
	// are kept in memory.
	MetricsRetention time.Duration `yaml:"metrics_retention"`

	// AlertExpiry expires non-terminal alerts older than this. Zero disables it.
	AlertExpiry time.Duration `yaml:"alert_expiry"`

	// RenotifyEvery re-notifies a deduplicated alert on every Nth fire.
	RenotifyEvery int `yaml:"renotify_every"`

	// DefaultEscalationPolicy names the policy used when an alert has no
	// escalation_policy tag.
	DefaultEscalationPolicy string `yaml:"default_escalation_policy"`
}

// NotificationConfig holds dispatcher settings.
type NotificationConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// HistorySize bounds the in-memory notification audit.
	HistorySize int `yaml:"history_size"`

	// Senders maps a channel to the transport that delivers it. Channels
	// without an entry use the log sender.
	Senders map[domain.NotificationChannel]SenderKind `yaml:"senders"`

	// Templates override the default template per channel.
	Templates []domain.NotificationTemplate `yaml:"templates"`

	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig holds settings for the webhook sender.
type WebhookConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// Load reads configuration from the specified YAML file path.
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	// Clean the path to prevent path traversal attacks
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults for any unset values
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets sensible default values for configuration fields
// that are not explicitly set in the config file.
func applyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// Kafka defaults
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "vigil-events"
	}
	if cfg.Kafka.NotificationTopic == "" {
		cfg.Kafka.NotificationTopic = "vigil-notifications"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "vigil-processor"
	}
	if cfg.Kafka.PartitionCount == 0 {
		cfg.Kafka.PartitionCount = 32
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 25
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}

	// Engine defaults
	if cfg.Engine.MaxAlertsInMemory == 0 {
		cfg.Engine.MaxAlertsInMemory = 10000
	}
	if cfg.Engine.CorrelationWindow == 0 {
		cfg.Engine.CorrelationWindow = 300 * time.Second
	}
	if cfg.Engine.DeduplicationWindow == 0 {
		cfg.Engine.DeduplicationWindow = 60 * time.Second
	}
	if cfg.Engine.EscalationCheckInterval == 0 {
		cfg.Engine.EscalationCheckInterval = 60 * time.Second
	}
	if cfg.Engine.CleanupInterval == 0 {
		cfg.Engine.CleanupInterval = 5 * time.Minute
	}
	if cfg.Engine.MetricsRetention == 0 {
		cfg.Engine.MetricsRetention = 7 * 24 * time.Hour
	}
	if cfg.Engine.RenotifyEvery == 0 {
		cfg.Engine.RenotifyEvery = 5
	}

	// Anomaly defaults
	cfg.Anomaly.ApplyDefaults()

	// Notification defaults
	if cfg.Notification.Timeout == 0 {
		cfg.Notification.Timeout = 30 * time.Second
	}
	if cfg.Notification.MaxRetries == 0 {
		cfg.Notification.MaxRetries = 3
	}
	if cfg.Notification.HistorySize == 0 {
		cfg.Notification.HistorySize = 10000
	}
	if cfg.Notification.Webhook.Timeout == 0 {
		cfg.Notification.Webhook.Timeout = 10 * time.Second
	}

	// Escalation defaults
	if len(cfg.EscalationPolicies) == 0 {
		cfg.EscalationPolicies = []domain.EscalationPolicy{domain.DefaultEscalationPolicy()}
	}
	if cfg.Engine.DefaultEscalationPolicy == "" {
		cfg.Engine.DefaultEscalationPolicy = cfg.EscalationPolicies[0].ID
	}
}

// Validate checks the configuration for values the engine cannot run with.
// Every error wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if !c.Storage.Mode.IsValid() {
		return fmt.Errorf("%w: storage.mode %q must be 'memory' or 'storage'", domain.ErrInvalidConfig, c.Storage.Mode)
	}

	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Anomaly.Validate(); err != nil {
		return err
	}
	if err := c.Notification.validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.EscalationPolicies))
	for i := range c.EscalationPolicies {
		p := &c.EscalationPolicies[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate escalation policy %q", domain.ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
	}
	if !seen[c.Engine.DefaultEscalationPolicy] {
		return fmt.Errorf("%w: engine.default_escalation_policy %q is not defined", domain.ErrInvalidConfig, c.Engine.DefaultEscalationPolicy)
	}

	for i := range c.SuppressionRules {
		if err := c.SuppressionRules[i].Validate(); err != nil {
			return err
		}
	}

	if c.Storage.UseMemory() {
		for ch, kind := range c.Notification.Senders {
			if kind == SenderQueue {
				return fmt.Errorf("%w: notification.senders.%s uses the queue sender, which needs storage mode", domain.ErrInvalidConfig, ch)
			}
		}
	}

	return nil
}

func (c *EngineConfig) validate() error {
	if c.DeduplicationWindow > c.CorrelationWindow {
		return fmt.Errorf("%w: engine.deduplication_window (%s) exceeds engine.correlation_window (%s)",
			domain.ErrInvalidConfig, c.DeduplicationWindow, c.CorrelationWindow)
	}
	if c.DeduplicationWindow < 0 || c.CorrelationWindow < 0 {
		return fmt.Errorf("%w: engine windows must not be negative", domain.ErrInvalidConfig)
	}
	if c.EscalationCheckInterval <= 0 || c.CleanupInterval <= 0 {
		return fmt.Errorf("%w: engine intervals must be positive", domain.ErrInvalidConfig)
	}
	if c.MetricsRetention <= 0 {
		return fmt.Errorf("%w: engine.metrics_retention must be positive", domain.ErrInvalidConfig)
	}
	if c.AlertExpiry < 0 {
		return fmt.Errorf("%w: engine.alert_expiry must not be negative", domain.ErrInvalidConfig)
	}
	if c.RenotifyEvery < 1 {
		return fmt.Errorf("%w: engine.renotify_every must be at least 1", domain.ErrInvalidConfig)
	}
	if c.MaxAlertsInMemory < 1 {
		return fmt.Errorf("%w: engine.max_alerts_in_memory must be at least 1", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *NotificationConfig) validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: notification.timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: notification.max_retries must not be negative", domain.ErrInvalidConfig)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: notification.retry_backoff must not be negative", domain.ErrInvalidConfig)
	}
	for ch, kind := range c.Senders {
		if !ch.IsValid() {
			return fmt.Errorf("%w: notification.senders has unknown channel %q", domain.ErrInvalidConfig, ch)
		}
		if !kind.IsValid() {
			return fmt.Errorf("%w: notification.senders.%s has unknown sender %q", domain.ErrInvalidConfig, ch, kind)
		}
	}
	for _, t := range c.Templates {
		if !t.Channel.IsValid() {
			return fmt.Errorf("%w: notification template for unknown channel %q", domain.ErrInvalidConfig, t.Channel)
		}
	}
	return nil
}

// SenderFor returns the transport configured for a channel.
func (c *NotificationConfig) SenderFor(ch domain.NotificationChannel) SenderKind {
	if kind, ok := c.Senders[ch]; ok {
		return kind
	}
	return SenderLog
}

// AttemptBudget is the longest one (channel, target) delivery can take:
// every attempt running to its timeout with a backoff between attempts.
func (c *NotificationConfig) AttemptBudget() time.Duration {
	return time.Duration(c.MaxRetries+1)*c.Timeout + time.Duration(c.MaxRetries)*c.RetryBackoff
}

// DispatchBudget is the longest a single dispatch can run under the given
// policies. A level delivers its (channel, target) pairs one after another,
// so the widest level sets the bound.
func (c *NotificationConfig) DispatchBudget(policies []*domain.EscalationPolicy) time.Duration {
	widest := 1
	for _, p := range policies {
		for _, l := range p.Levels {
			if pairs := len(l.Channels) * len(l.Targets); pairs > widest {
				widest = pairs
			}
		}
	}
	return time.Duration(widest) * c.AttemptBudget()
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
