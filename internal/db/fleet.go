package db

import (
	"context"
	"fmt"
	"time"

	"irrigation-control/internal/engine"
	"irrigation-control/internal/models"
)

// LoadFleet re-hydrates the entity store at startup: every actuator
// with its rule, open and recent alarms, and schedules.
func (d *DB) LoadFleet(ctx context.Context) ([]engine.ActuatorSeed, error) {
	query := `
        SELECT a.id, a.device_id, a.channel, a.name, a.status, a.mode, a.cycle_count, a.status_observed_at,
               r.enabled, r.rule_type, r.metric, r.operator, r.threshold, r.trigger_status, r.severity, r.notify
        FROM actuators a
        LEFT JOIN alarm_rules r ON r.actuator_id = a.id
        ORDER BY a.device_id, a.channel`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query actuators: %w", err)
	}
	defer rows.Close()

	var seeds []engine.ActuatorSeed
	for rows.Next() {
		var (
			seed       engine.ActuatorSeed
			observedAt *time.Time
			enabled    *bool
			ruleType   *string
			metric     *string
			operator   *string
			threshold  *float64
			trigger    *string
			severity   *string
			notify     *bool
		)
		if err := rows.Scan(&seed.ID, &seed.DeviceID, &seed.Channel, &seed.Name,
			&seed.Status, &seed.Mode, &seed.CycleCount, &observedAt,
			&enabled, &ruleType, &metric, &operator, &threshold, &trigger, &severity, &notify); err != nil {
			return nil, fmt.Errorf("failed to scan actuator: %w", err)
		}
		if observedAt != nil {
			seed.StatusObservedAt = *observedAt
		}
		if ruleType != nil {
			rule := models.AlarmRule{
				Enabled:  *enabled,
				RuleType: models.RuleType(*ruleType),
				Severity: models.AlarmSeverity(*severity),
				Notify:   *notify,
			}
			if metric != nil {
				rule.Metric = *metric
			}
			if operator != nil {
				rule.Operator = models.RuleOperator(*operator)
			}
			if threshold != nil {
				rule.Threshold = *threshold
			}
			if trigger != nil {
				rule.TriggerStatus = models.ActuatorStatus(*trigger)
			}
			seed.Rule = &rule
		}
		seeds = append(seeds, seed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range seeds {
		alarms, err := d.GetAlarmsByActuatorID(ctx, seeds[i].ID, true)
		if err != nil {
			return nil, err
		}
		seeds[i].Alarms = alarms

		schedules, err := d.getSchedulesByActuatorID(ctx, seeds[i].ID)
		if err != nil {
			return nil, err
		}
		seeds[i].Schedules = schedules
	}
	return seeds, nil
}

func (d *DB) getSchedulesByActuatorID(ctx context.Context, actuatorID string) ([]models.Schedule, error) {
	query := `
        SELECT schedule_id, actuator_id, enabled, action, start_at, end_at, created_at
        FROM schedules
        WHERE actuator_id = $1
        ORDER BY start_at`
	rows, err := d.Pool.Query(ctx, query, actuatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules for %s: %w", actuatorID, err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		var (
			sch   models.Schedule
			endAt *time.Time
		)
		if err := rows.Scan(&sch.ScheduleID, &sch.ActuatorID, &sch.Enabled, &sch.Action,
			&sch.StartAt, &endAt, &sch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		if endAt != nil {
			sch.EndAt = *endAt
		}
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}
