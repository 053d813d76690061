package models

import "time"

// AlarmSeverity ranks an alarm for display and notification routing.
type AlarmSeverity string

const (
	SeverityInfo     AlarmSeverity = "INFO"
	SeverityWarning  AlarmSeverity = "WARNING"
	SeverityCritical AlarmSeverity = "CRITICAL"
)

// Alarm is one fault episode on an actuator. Every trigger edge creates
// a distinct record so each episode is individually acknowledgeable.
type Alarm struct {
	AlarmID        string        `json:"alarm_id"`
	ActuatorID     string        `json:"actuator_id"`
	Severity       AlarmSeverity `json:"severity"`
	Message        string        `json:"message"`
	Timestamp      time.Time     `json:"timestamp"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	Resolved       bool          `json:"resolved"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// RuleType selects which alarm predicate shape applies.
type RuleType string

const (
	RuleThreshold RuleType = "THRESHOLD"
	RuleStatus    RuleType = "STATUS"
)

// RuleOperator compares a telemetry metric against a threshold.
type RuleOperator string

const (
	OpGreater        RuleOperator = ">"
	OpLess           RuleOperator = "<"
	OpGreaterOrEqual RuleOperator = ">="
	OpLessOrEqual    RuleOperator = "<="
	OpEqual          RuleOperator = "=="
	OpNotEqual       RuleOperator = "!="
)

// AlarmRule is the single optional rule configured per actuator.
// Exactly one shape is populated per RuleType: THRESHOLD rules use
// Metric/Operator/Threshold, STATUS rules use TriggerStatus.
type AlarmRule struct {
	Enabled       bool           `json:"enabled"`
	RuleType      RuleType       `json:"rule_type"`
	Metric        string         `json:"metric,omitempty"`
	Operator      RuleOperator   `json:"operator,omitempty"`
	Threshold     float64        `json:"threshold,omitempty"`
	TriggerStatus ActuatorStatus `json:"trigger_status,omitempty"`
	Severity      AlarmSeverity  `json:"severity"`
	Notify        bool           `json:"notify"`
}
