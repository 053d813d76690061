package models

import "time"

// TelemetrySample is the latest uplink reading for a device. One sample
// per device, full replace on merge; history lives in an external log
// store.
type TelemetrySample struct {
	DeviceID   string             `json:"device_id"`
	ReceivedAt time.Time          `json:"received_at"`
	Metrics    map[string]float64 `json:"metrics"`
	RSSI       *int               `json:"rssi,omitempty"`
	SNR        *float64           `json:"snr,omitempty"`
}

// StatusUpdate is one per-channel status report inside an uplink event.
type StatusUpdate struct {
	Channel    int            `json:"channel"`
	Status     ActuatorStatus `json:"status"`
	ObservedAt time.Time      `json:"observed_at"`
}

// UplinkEvent is the envelope delivered by the network server's push
// channel. At-most-once, unordered, possibly duplicated or late.
type UplinkEvent struct {
	DeviceID      string           `json:"device_id"`
	ReceivedAt    time.Time        `json:"received_at"`
	StatusUpdates []StatusUpdate   `json:"status_updates,omitempty"`
	Telemetry     *TelemetrySample `json:"telemetry,omitempty"`
}
