package engine

import "irrigation-control/internal/models"

// SetActuatorMode switches one actuator between MANUAL and AUTO.
func (s *Store) SetActuatorMode(actuatorID string, mode models.ActuatorMode) error {
	if mode != models.ModeManual && mode != models.ModeAuto {
		return validationf("unknown mode %q", mode)
	}
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return &NotFoundError{Kind: "actuator", ID: actuatorID}
	}
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		rec.Mode = mode
		s.persistActuator(rec)
		s.publishActuator(dev, rec)
	})
	return nil
}

// SetDeviceMode fans a mode write out to every actuator of a device.
// Each write is independent; there is no rollback across actuators.
// The ids of the actuators written are returned.
func (s *Store) SetDeviceMode(deviceID string, mode models.ActuatorMode) ([]string, error) {
	if mode != models.ModeManual && mode != models.ModeAuto {
		return nil, validationf("unknown mode %q", mode)
	}
	dev := s.deviceByID(deviceID, false)
	if dev == nil {
		return nil, &NotFoundError{Kind: "device", ID: deviceID}
	}
	var applied []string
	dev.do(func() {
		for _, id := range dev.order {
			rec := dev.actuators[id]
			rec.Mode = mode
			s.persistActuator(rec)
			s.publishActuator(dev, rec)
			applied = append(applied, id)
		}
	})
	return applied, nil
}

// deviceModeOf derives the device-level mode as a majority vote across
// the actuator set; ties fall back to MANUAL so manual control stays
// available. Must run inside the actor.
func deviceModeOf(dev *device) models.ActuatorMode {
	auto := 0
	for _, rec := range dev.actuators {
		if rec.Mode == models.ModeAuto {
			auto++
		}
	}
	if auto*2 > len(dev.actuators) {
		return models.ModeAuto
	}
	return models.ModeManual
}
