package models

import "time"

// CommandAction is a requested valve actuation.
type CommandAction string

const (
	ActionOn    CommandAction = "ON"
	ActionOff   CommandAction = "OFF"
	ActionPulse CommandAction = "PULSE"
)

// CommandState tracks the lifecycle of a dispatched command.
type CommandState string

const (
	CommandPending   CommandState = "PENDING"
	CommandConfirmed CommandState = "CONFIRMED"
	CommandFailed    CommandState = "FAILED"
	CommandTimedOut  CommandState = "TIMED_OUT"
)

// CommandRecord is the last command issued against an actuator.
// Commands themselves are transient; only this trace is kept.
type CommandRecord struct {
	CommandID string        `json:"command_id"`
	Action    CommandAction `json:"action"`
	State     CommandState  `json:"state"`
	IssuedAt  time.Time     `json:"issued_at"`
	IssuedBy  string        `json:"issued_by,omitempty"`
}

// CommandAck is returned to the caller when a dispatch resolves.
type CommandAck struct {
	CommandID  string         `json:"command_id"`
	ActuatorID string         `json:"actuator_id"`
	Action     CommandAction  `json:"action"`
	Status     ActuatorStatus `json:"status"`
	CycleCount int64          `json:"cycle_count"`
}

// ValidAction reports whether a is a known command action.
func ValidAction(a CommandAction) bool {
	switch a {
	case ActionOn, ActionOff, ActionPulse:
		return true
	}
	return false
}
