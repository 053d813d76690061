package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"irrigation-control/internal/models"
)

// SetAlarmRule installs or replaces the single optional rule of an
// actuator. The rule shape must match its type: THRESHOLD rules need a
// metric and operator, STATUS rules need a FAULT or OFF trigger status.
func (s *Store) SetAlarmRule(actuatorID string, rule models.AlarmRule) error {
	switch rule.RuleType {
	case models.RuleThreshold:
		if rule.Metric == "" {
			return validationf("threshold rule requires a metric")
		}
		if !validOperator(rule.Operator) {
			return validationf("unknown operator %q", rule.Operator)
		}
	case models.RuleStatus:
		if rule.TriggerStatus != models.StatusFault && rule.TriggerStatus != models.StatusOff {
			return validationf("status rule trigger must be FAULT or OFF, got %q", rule.TriggerStatus)
		}
	default:
		return validationf("unknown rule type %q", rule.RuleType)
	}
	switch rule.Severity {
	case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
	default:
		return validationf("unknown severity %q", rule.Severity)
	}

	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return &NotFoundError{Kind: "actuator", ID: actuatorID}
	}
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		rec.rule = &rule
		// A condition that already holds fires on the next accepted
		// update, as a fresh trigger edge.
		rec.lastPredicate = false
		if s.repo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
			defer cancel()
			if err := s.repo.SaveAlarmRule(ctx, actuatorID, rule); err != nil {
				s.logger.Warnf("persist alarm rule for %s failed: %v", actuatorID, err)
			}
		}
	})
	return nil
}

func validOperator(op models.RuleOperator) bool {
	switch op {
	case models.OpGreater, models.OpLess, models.OpGreaterOrEqual,
		models.OpLessOrEqual, models.OpEqual, models.OpNotEqual:
		return true
	}
	return false
}

// evaluateAlarms re-evaluates the actuator's rule after an accepted
// update. A new alarm record is created on every false-to-true
// predicate edge; an already-open alarm for the same rule does not
// suppress it, since each fault episode is individually
// acknowledgeable. Clearing of the condition never auto-resolves.
// Must run inside the owning actor.
func (s *Store) evaluateAlarms(dev *device, rec *record) {
	if rec.rule == nil || !rec.rule.Enabled {
		rec.lastPredicate = false
		return
	}

	triggered, message := s.evaluateRule(dev, rec)
	edge := triggered && !rec.lastPredicate
	rec.lastPredicate = triggered
	if !edge {
		return
	}

	now := time.Now()
	alarm := models.Alarm{
		AlarmID:    uuid.New().String(),
		ActuatorID: rec.ID,
		Severity:   rec.rule.Severity,
		Message:    message,
		Timestamp:  now,
	}
	rec.alarms = append(rec.alarms, alarm)
	s.logger.Infof("alarm %s (%s) raised on actuator %s: %s", alarm.AlarmID, alarm.Severity, rec.ID, message)

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
		if err := s.repo.SaveAlarm(ctx, alarm); err != nil {
			s.logger.Warnf("persist alarm %s failed: %v", alarm.AlarmID, err)
		}
		cancel()
	}
	if s.events != nil {
		copied := alarm
		s.events.Publish(models.Event{Type: models.EventAlarm, DeviceID: dev.id, Alarm: &copied})
	}
	if s.notifier != nil && rec.rule.Notify {
		name := rec.Name
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.Notify(ctx, alarm, name); err != nil {
				s.logger.Warnf("notify for alarm %s failed: %v", alarm.AlarmID, err)
			}
		}()
	}
}

// evaluateRule computes the rule predicate against current state.
// Must run inside the owning actor.
func (s *Store) evaluateRule(dev *device, rec *record) (bool, string) {
	rule := rec.rule
	switch rule.RuleType {
	case models.RuleStatus:
		if rec.Status == rule.TriggerStatus {
			return true, fmt.Sprintf("actuator %s reported status %s", rec.ID, rec.Status)
		}
	case models.RuleThreshold:
		if dev.telemetry == nil {
			return false, ""
		}
		value, ok := dev.telemetry.Metrics[rule.Metric]
		if !ok {
			return false, ""
		}
		if compare(rule.Operator, value, rule.Threshold) {
			return true, fmt.Sprintf("%s %s %g (value %g)", rule.Metric, rule.Operator, rule.Threshold, value)
		}
	}
	return false, ""
}

func compare(op models.RuleOperator, value, threshold float64) bool {
	switch op {
	case models.OpGreater:
		return value > threshold
	case models.OpLess:
		return value < threshold
	case models.OpGreaterOrEqual:
		return value >= threshold
	case models.OpLessOrEqual:
		return value <= threshold
	case models.OpEqual:
		return value == threshold
	case models.OpNotEqual:
		return value != threshold
	}
	return false
}

// Acknowledge marks an alarm acknowledged. Already-acknowledged and
// unknown alarm ids are silent no-ops; only an unknown actuator is an
// error.
func (s *Store) Acknowledge(actuatorID, alarmID string) error {
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return &NotFoundError{Kind: "actuator", ID: actuatorID}
	}
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		for i := range rec.alarms {
			a := &rec.alarms[i]
			if a.AlarmID != alarmID || a.Acknowledged {
				continue
			}
			now := time.Now()
			a.Acknowledged = true
			a.AcknowledgedAt = &now
			s.persistAlarm(*a)
			s.logger.Infof("alarm %s acknowledged", alarmID)
			return
		}
	})
	return nil
}

// Resolve marks an alarm resolved, terminal. An alarm resolved before
// being acknowledged is auto-acknowledged at the same instant, so a
// resolved-but-unacknowledged state can never be observed. The local
// transition commits regardless of persistence success: resolution is a
// human judgment call, not a hardware command.
func (s *Store) Resolve(actuatorID, alarmID string) error {
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return &NotFoundError{Kind: "actuator", ID: actuatorID}
	}
	var err error
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		for i := range rec.alarms {
			a := &rec.alarms[i]
			if a.AlarmID != alarmID {
				continue
			}
			if a.Resolved {
				return
			}
			now := time.Now()
			a.Resolved = true
			a.ResolvedAt = &now
			if !a.Acknowledged {
				a.Acknowledged = true
				a.AcknowledgedAt = &now
			}
			s.persistAlarm(*a)
			s.logger.Infof("alarm %s resolved", alarmID)
			return
		}
		err = &NotFoundError{Kind: "alarm", ID: alarmID}
	})
	return err
}

// AcknowledgeAll acknowledges every open unacknowledged alarm across
// the fleet. Each alarm is an independent operation; partial success is
// normal and the count of acknowledged alarms is returned.
func (s *Store) AcknowledgeAll() int {
	s.mu.RLock()
	devs := make([]*device, 0, len(s.devices))
	for _, dev := range s.devices {
		devs = append(devs, dev)
	}
	s.mu.RUnlock()

	count := 0
	for _, dev := range devs {
		dev.do(func() {
			for _, id := range dev.order {
				rec := dev.actuators[id]
				for i := range rec.alarms {
					a := &rec.alarms[i]
					if a.Acknowledged || a.Resolved {
						continue
					}
					now := time.Now()
					a.Acknowledged = true
					a.AcknowledgedAt = &now
					s.persistAlarm(*a)
					count++
				}
			}
		})
	}
	s.logger.Infof("acknowledged %d alarms", count)
	return count
}

// persistAlarm writes an alarm through to the repository, best-effort.
// Must run inside the owning actor.
func (s *Store) persistAlarm(a models.Alarm) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
	defer cancel()
	if err := s.repo.SaveAlarm(ctx, a); err != nil {
		s.logger.Warnf("persist alarm %s failed: %v", a.AlarmID, err)
	}
}
