// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS archived_alerts (
			id VARCHAR(36) PRIMARY KEY,
			service VARCHAR(255) NOT NULL,
			component VARCHAR(255) NOT NULL,
			metric_type VARCHAR(255) NOT NULL,
			fingerprint VARCHAR(512) NOT NULL,
			severity SMALLINT NOT NULL,
			state VARCHAR(20) NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			tags JSONB,
			context JSONB,
			metric_value DOUBLE PRECISION,
			threshold DOUBLE PRECISION,
			escalation_level INTEGER DEFAULT 0,
			fire_count INTEGER DEFAULT 1,
			acknowledged_by VARCHAR(255),
			resolved_by VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			acknowledged_at TIMESTAMP WITH TIME ZONE,
			resolved_at TIMESTAMP WITH TIME ZONE
		);

		CREATE INDEX IF NOT EXISTS idx_archived_alerts_fingerprint ON archived_alerts(fingerprint);
		CREATE INDEX IF NOT EXISTS idx_archived_alerts_state ON archived_alerts(state);
		CREATE INDEX IF NOT EXISTS idx_archived_alerts_created ON archived_alerts(created_at);

		CREATE TABLE IF NOT EXISTS notification_attempts (
			notification_id VARCHAR(36) NOT NULL,
			alert_id VARCHAR(36) NOT NULL,
			channel VARCHAR(20) NOT NULL,
			target TEXT NOT NULL,
			status VARCHAR(20) NOT NULL,
			attempt INTEGER NOT NULL,
			escalation_level INTEGER NOT NULL,
			sent_at TIMESTAMP WITH TIME ZONE,
			error TEXT,
			recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (notification_id, attempt)
		);

		CREATE INDEX IF NOT EXISTS idx_notification_attempts_alert ON notification_attempts(alert_id);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
