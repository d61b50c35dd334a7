package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vigil/internal/domain"
)

// Archive implements store.Archive using PostgreSQL.
type Archive struct {
	db *DB
}

// NewArchive creates a new PostgreSQL-backed archive.
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

// ArchiveAlerts upserts the alerts in one batch.
func (a *Archive) ArchiveAlerts(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	query := `
		INSERT INTO archived_alerts (
			id, service, component, metric_type, fingerprint, severity, state,
			title, description, tags, context, metric_value, threshold,
			escalation_level, fire_count, acknowledged_by, resolved_by,
			created_at, updated_at, acknowledged_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			escalation_level = EXCLUDED.escalation_level,
			fire_count = EXCLUDED.fire_count,
			updated_at = EXCLUDED.updated_at,
			acknowledged_at = EXCLUDED.acknowledged_at,
			resolved_at = EXCLUDED.resolved_at
	`

	batch := &pgx.Batch{}
	for _, alert := range alerts {
		tags, err := json.Marshal(alert.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		alertContext, err := json.Marshal(alert.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}

		batch.Queue(query,
			alert.ID,
			alert.CorrelationKey.Service,
			alert.CorrelationKey.Component,
			alert.CorrelationKey.MetricType,
			alert.CorrelationKey.Fingerprint,
			int(alert.Severity),
			string(alert.State),
			alert.Title,
			alert.Description,
			tags,
			alertContext,
			alert.MetricValue,
			alert.Threshold,
			alert.EscalationLevel,
			alert.FireCount,
			nullableString(alert.AcknowledgedBy),
			nullableString(alert.ResolvedBy),
			alert.CreatedAt,
			alert.UpdatedAt,
			alert.AcknowledgedAt,
			alert.ResolvedAt,
		)
	}

	if err := a.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to archive alerts: %w", err)
	}

	return nil
}

// GetAlert retrieves an archived alert by id.
func (a *Archive) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	query := `
		SELECT id, service, component, metric_type, fingerprint, severity, state,
			   title, description, tags, context, metric_value, threshold,
			   escalation_level, fire_count, acknowledged_by, resolved_by,
			   created_at, updated_at, acknowledged_at, resolved_at
		FROM archived_alerts
		WHERE id = $1
	`

	alert, err := scanAlert(a.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get archived alert: %w", err)
	}

	return alert, nil
}

// RecordNotification stores one delivery attempt.
func (a *Archive) RecordNotification(ctx context.Context, status *domain.NotificationStatus) error {
	query := `
		INSERT INTO notification_attempts (
			notification_id, alert_id, channel, target, status, attempt,
			escalation_level, sent_at, error, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (notification_id, attempt) DO UPDATE SET
			status = EXCLUDED.status,
			sent_at = EXCLUDED.sent_at,
			error = EXCLUDED.error,
			recorded_at = EXCLUDED.recorded_at
	`

	_, err := a.db.pool.Exec(ctx, query,
		status.NotificationID,
		status.AlertID,
		string(status.Channel),
		status.Target,
		string(status.Status),
		status.Attempt,
		status.EscalationLvl,
		status.SentAt,
		nullableString(status.Error),
		status.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	return nil
}

// ListNotifications returns the attempts for an alert, oldest first.
func (a *Archive) ListNotifications(ctx context.Context, alertID string) ([]*domain.NotificationStatus, error) {
	query := `
		SELECT notification_id, alert_id, channel, target, status, attempt,
			   escalation_level, sent_at, error, recorded_at
		FROM notification_attempts
		WHERE alert_id = $1
		ORDER BY recorded_at ASC, attempt ASC
	`

	rows, err := a.db.pool.Query(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	results := []*domain.NotificationStatus{}
	for rows.Next() {
		var (
			n       domain.NotificationStatus
			channel string
			status  string
			errText *string
		)
		if err := rows.Scan(
			&n.NotificationID,
			&n.AlertID,
			&channel,
			&n.Target,
			&status,
			&n.Attempt,
			&n.EscalationLvl,
			&n.SentAt,
			&errText,
			&n.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Channel = domain.NotificationChannel(channel)
		n.Status = domain.DeliveryStatus(status)
		if errText != nil {
			n.Error = *errText
		}
		results = append(results, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return results, nil
}

// Close is a no-op; the pool is owned by DB.
func (a *Archive) Close() error {
	return nil
}

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var (
		alert          domain.Alert
		severity       int
		state          string
		tags           []byte
		alertContext   []byte
		acknowledgedBy *string
		resolvedBy     *string
	)

	err := row.Scan(
		&alert.ID,
		&alert.CorrelationKey.Service,
		&alert.CorrelationKey.Component,
		&alert.CorrelationKey.MetricType,
		&alert.CorrelationKey.Fingerprint,
		&severity,
		&state,
		&alert.Title,
		&alert.Description,
		&tags,
		&alertContext,
		&alert.MetricValue,
		&alert.Threshold,
		&alert.EscalationLevel,
		&alert.FireCount,
		&acknowledgedBy,
		&resolvedBy,
		&alert.CreatedAt,
		&alert.UpdatedAt,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = domain.Severity(severity)
	alert.State = domain.State(state)
	if acknowledgedBy != nil {
		alert.AcknowledgedBy = *acknowledgedBy
	}
	if resolvedBy != nil {
		alert.ResolvedBy = *resolvedBy
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &alert.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(alertContext) > 0 {
		if err := json.Unmarshal(alertContext, &alert.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	return &alert, nil
}

// nullableString converts an empty string to nil for nullable columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
