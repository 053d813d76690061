package engine

import (
	"time"

	"irrigation-control/internal/models"
)

// ApplyStatus merges a pushed status report into the store. Updates are
// ordered by event time: a report older than the currently stored one
// is discarded so a delayed or duplicated push cannot regress state.
// Returns whether the update was accepted.
func (s *Store) ApplyStatus(actuatorID string, status models.ActuatorStatus, observedAt time.Time) (bool, error) {
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return false, &NotFoundError{Kind: "actuator", ID: actuatorID}
	}

	accepted := false
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		if observedAt.Before(rec.StatusObservedAt) {
			s.logger.Debugf("stale status for actuator %s discarded (observed %s < stored %s)",
				actuatorID, observedAt.Format(time.RFC3339), rec.StatusObservedAt.Format(time.RFC3339))
			return
		}
		accepted = true

		prev := rec.Status
		rec.Status = status
		rec.StatusObservedAt = observedAt

		// Push events are ground truth from the physical layer. Once
		// one observed at or after the pending command's issue time
		// lands, that command's rollback no longer applies and its
		// response only confirms this state. A push observed before
		// the command was issued says nothing about its outcome and
		// leaves rollback armed.
		if rec.pending != nil && !observedAt.Before(rec.pending.issuedAt) {
			rec.pending.groundTruth = true
			if prev != status {
				s.logger.Infof("reconciliation: push status %s supersedes optimistic %s on actuator %s (command %s)",
					status, prev, actuatorID, rec.pending.id)
			}
		}

		s.evaluateAlarms(dev, rec)
		s.persistActuator(rec)
		s.publishActuator(dev, rec)
	})
	return accepted, nil
}

// ApplyTelemetry replaces a device's latest telemetry sample. The merge
// is a full replace, never field-by-field, so the cache always shows a
// single coherent uplink. Stale samples are discarded by event time.
func (s *Store) ApplyTelemetry(deviceID string, sample models.TelemetrySample) (bool, error) {
	dev := s.deviceByID(deviceID, false)
	if dev == nil {
		return false, &NotFoundError{Kind: "device", ID: deviceID}
	}

	accepted := false
	dev.do(func() {
		if dev.telemetry != nil && sample.ReceivedAt.Before(dev.telemetry.ReceivedAt) {
			s.logger.Debugf("stale telemetry for device %s discarded", deviceID)
			return
		}
		accepted = true
		sample.DeviceID = deviceID
		dev.telemetry = &sample

		for _, id := range dev.order {
			s.evaluateAlarms(dev, dev.actuators[id])
		}

		if s.events != nil {
			copied := sample
			s.events.Publish(models.Event{
				Type:      models.EventTelemetry,
				DeviceID:  deviceID,
				Telemetry: &copied,
			})
		}
	})
	return accepted, nil
}

// ApplyUplink fans one push-channel envelope out to the status and
// telemetry merges. Unknown channels are skipped and logged; the rest
// of the envelope still applies.
func (s *Store) ApplyUplink(ev models.UplinkEvent) error {
	dev := s.deviceByID(ev.DeviceID, false)
	if dev == nil {
		return &NotFoundError{Kind: "device", ID: ev.DeviceID}
	}

	for _, upd := range ev.StatusUpdates {
		actuatorID := ""
		dev.do(func() {
			for _, id := range dev.order {
				if dev.actuators[id].Channel == upd.Channel {
					actuatorID = id
					return
				}
			}
		})
		if actuatorID == "" {
			s.logger.Warnf("uplink for device %s references unknown channel %d", ev.DeviceID, upd.Channel)
			continue
		}
		observedAt := upd.ObservedAt
		if observedAt.IsZero() {
			observedAt = ev.ReceivedAt
		}
		if _, err := s.ApplyStatus(actuatorID, upd.Status, observedAt); err != nil {
			return err
		}
	}

	if ev.Telemetry != nil {
		sample := *ev.Telemetry
		if sample.ReceivedAt.IsZero() {
			sample.ReceivedAt = ev.ReceivedAt
		}
		if _, err := s.ApplyTelemetry(ev.DeviceID, sample); err != nil {
			return err
		}
	}
	return nil
}
