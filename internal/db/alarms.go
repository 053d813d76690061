package db

import (
	"context"
	"fmt"

	"irrigation-control/internal/models"
)

// SaveAlarm upserts an alarm record; acknowledge/resolve transitions
// reuse the same write path.
func (d *DB) SaveAlarm(ctx context.Context, a models.Alarm) error {
	query := `
        INSERT INTO alarms (
            alarm_id, actuator_id, severity, message, timestamp,
            acknowledged, acknowledged_at, resolved, resolved_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (alarm_id) DO UPDATE SET
            acknowledged = EXCLUDED.acknowledged, acknowledged_at = EXCLUDED.acknowledged_at,
            resolved = EXCLUDED.resolved, resolved_at = EXCLUDED.resolved_at`
	_, err := d.Pool.Exec(ctx, query,
		a.AlarmID, a.ActuatorID, a.Severity, a.Message, a.Timestamp,
		a.Acknowledged, a.AcknowledgedAt, a.Resolved, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to save alarm %s: %w", a.AlarmID, err)
	}
	return nil
}

// GetAlarmsByActuatorID fetches alarms for one actuator, newest first,
// optionally including resolved ones.
func (d *DB) GetAlarmsByActuatorID(ctx context.Context, actuatorID string, includeResolved bool) ([]models.Alarm, error) {
	query := `
        SELECT alarm_id, actuator_id, severity, message, timestamp,
               acknowledged, acknowledged_at, resolved, resolved_at
        FROM alarms
        WHERE actuator_id = $1`
	if !includeResolved {
		query += " AND resolved = false"
	}
	query += " ORDER BY timestamp DESC"

	rows, err := d.Pool.Query(ctx, query, actuatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms for %s: %w", actuatorID, err)
	}
	defer rows.Close()

	var alarms []models.Alarm
	for rows.Next() {
		var a models.Alarm
		if err := rows.Scan(&a.AlarmID, &a.ActuatorID, &a.Severity, &a.Message, &a.Timestamp,
			&a.Acknowledged, &a.AcknowledgedAt, &a.Resolved, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}
