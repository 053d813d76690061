package db

import (
	"context"
	"fmt"

	"irrigation-control/internal/models"
)

// SaveActuatorState upserts the mutable runtime fields of an actuator.
func (d *DB) SaveActuatorState(ctx context.Context, a models.Actuator) error {
	query := `
        UPDATE actuators
        SET status = $1, mode = $2, cycle_count = $3, status_observed_at = $4
        WHERE id = $5`
	result, err := d.Pool.Exec(ctx, query, a.Status, a.Mode, a.CycleCount, a.StatusObservedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update actuator %s: %w", a.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no actuator row updated for id %s", a.ID)
	}
	return nil
}

// SaveAlarmRule upserts the single optional rule of an actuator.
func (d *DB) SaveAlarmRule(ctx context.Context, actuatorID string, r models.AlarmRule) error {
	query := `
        INSERT INTO alarm_rules (
            actuator_id, enabled, rule_type, metric, operator, threshold, trigger_status, severity, notify
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (actuator_id) DO UPDATE SET
            enabled = EXCLUDED.enabled, rule_type = EXCLUDED.rule_type,
            metric = EXCLUDED.metric, operator = EXCLUDED.operator,
            threshold = EXCLUDED.threshold, trigger_status = EXCLUDED.trigger_status,
            severity = EXCLUDED.severity, notify = EXCLUDED.notify`
	_, err := d.Pool.Exec(ctx, query,
		actuatorID, r.Enabled, r.RuleType, r.Metric, r.Operator, r.Threshold, r.TriggerStatus, r.Severity, r.Notify)
	if err != nil {
		return fmt.Errorf("failed to save alarm rule for %s: %w", actuatorID, err)
	}
	return nil
}
