package db

import (
	"context"
	"fmt"

	"irrigation-control/internal/models"
)

// SaveSchedule upserts a schedule. Duration is never stored; it is
// always derived from the window.
func (d *DB) SaveSchedule(ctx context.Context, sch models.Schedule) error {
	query := `
        INSERT INTO schedules (
            schedule_id, actuator_id, enabled, action, start_at, end_at, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (schedule_id) DO UPDATE SET
            enabled = EXCLUDED.enabled, action = EXCLUDED.action,
            start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at`
	var endAt interface{}
	if !sch.EndAt.IsZero() {
		endAt = sch.EndAt
	}
	_, err := d.Pool.Exec(ctx, query,
		sch.ScheduleID, sch.ActuatorID, sch.Enabled, sch.Action, sch.StartAt, endAt, sch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sch.ScheduleID, err)
	}
	return nil
}

// DeleteSchedule removes a schedule row.
func (d *DB) DeleteSchedule(ctx context.Context, scheduleID string) error {
	_, err := d.Pool.Exec(ctx, `DELETE FROM schedules WHERE schedule_id = $1`, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", scheduleID, err)
	}
	return nil
}
