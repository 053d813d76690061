package models

// EventType tags a state-change event pushed to the supervisory UI.
type EventType string

const (
	EventActuator  EventType = "actuator"
	EventAlarm     EventType = "alarm"
	EventTelemetry EventType = "telemetry"
)

// Event is broadcast over the websocket hub whenever the store accepts
// a state change.
type Event struct {
	Type      EventType        `json:"type"`
	DeviceID  string           `json:"device_id"`
	Actuator  *ActuatorView    `json:"actuator,omitempty"`
	Alarm     *Alarm           `json:"alarm,omitempty"`
	Telemetry *TelemetrySample `json:"telemetry,omitempty"`
}
