package models

import "time"

// ActuatorStatus is the observable state of a single valve channel.
type ActuatorStatus string

const (
	StatusOn    ActuatorStatus = "ON"
	StatusOff   ActuatorStatus = "OFF"
	StatusFault ActuatorStatus = "FAULT"
)

// ActuatorMode decides whether manual ON/OFF commands are accepted.
type ActuatorMode string

const (
	ModeManual ActuatorMode = "MANUAL"
	ModeAuto   ActuatorMode = "AUTO"
)

// Actuator is one controllable valve channel on a device.
type Actuator struct {
	ID               string         `json:"id"`
	DeviceID         string         `json:"device_id"`
	Channel          int            `json:"channel"`
	Name             string         `json:"name,omitempty"`
	Status           ActuatorStatus `json:"status"`
	Mode             ActuatorMode   `json:"mode"`
	CycleCount       int64          `json:"cycle_count"`
	LastCommand      *CommandRecord `json:"last_command,omitempty"`
	StatusObservedAt time.Time      `json:"status_observed_at"`
}

// ActuatorView is the read projection served to the UI: the actuator
// plus everything it owns.
type ActuatorView struct {
	Actuator
	AlarmRule *AlarmRule `json:"alarm_rule,omitempty"`
	Alarms    []Alarm    `json:"alarms,omitempty"`
	Schedules []Schedule `json:"schedules,omitempty"`
}

// DeviceView aggregates a device's actuators, its latest telemetry and
// the derived device-level mode.
type DeviceView struct {
	DeviceID  string           `json:"device_id"`
	Mode      ActuatorMode     `json:"mode"`
	Actuators []ActuatorView   `json:"actuators"`
	Telemetry *TelemetrySample `json:"telemetry,omitempty"`
}
