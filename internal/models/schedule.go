package models

import "time"

// Schedule is a time-windowed automation entry owned by an actuator.
// Duration is always derived from the window, never stored.
type Schedule struct {
	ScheduleID string        `json:"schedule_id"`
	ActuatorID string        `json:"actuator_id"`
	Enabled    bool          `json:"enabled"`
	Action     CommandAction `json:"action"`
	StartAt    time.Time     `json:"start_at"`
	EndAt      time.Time     `json:"end_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Duration returns the window length.
func (s Schedule) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

// ScheduleState is the derived temporal status of a schedule set.
type ScheduleState string

const (
	ScheduleRunning  ScheduleState = "RUNNING"
	ScheduleUpcoming ScheduleState = "UPCOMING"
	ScheduleNone     ScheduleState = "NONE"
)

// ScheduleStatus is computed on read from the schedule set and the
// current time; it is never persisted. Authoritative is false while the
// actuator is in MANUAL mode, where schedules are inert data.
type ScheduleStatus struct {
	State         ScheduleState `json:"state"`
	Schedule      *Schedule     `json:"schedule,omitempty"`
	Authoritative bool          `json:"authoritative"`
}
