package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

// Transport sends a downlink command to a device. Asynchronous,
// unreliable, bounded-latency; implemented by pkg/downlink.
type Transport interface {
	Send(ctx context.Context, deviceID string, channel int, action models.CommandAction) error
}

// pendingCommand captures what a dispatch needs to reconcile later:
// the pre-command status for rollback and whether ground-truth
// telemetry has been observed since the optimistic write.
type pendingCommand struct {
	id          string
	action      models.CommandAction
	prior       models.ActuatorStatus
	issuedAt    time.Time
	groundTruth bool
}

// Dispatcher issues actuation commands, applies optimistic transitions
// and reconciles them against transport responses.
type Dispatcher struct {
	store     *Store
	transport Transport
	timeout   time.Duration
	logger    *logging.Logger
}

func NewDispatcher(store *Store, transport Transport, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{store: store, transport: transport, timeout: timeout, logger: logger}
}

// Dispatch sends action to the actuator and blocks until the transport
// confirms, fails or times out. ON/OFF apply an optimistic status
// transition before the network round-trip and roll it back on failure
// unless ground-truth telemetry arrived mid-flight. PULSE never changes
// status, only the cycle count on success.
func (d *Dispatcher) Dispatch(ctx context.Context, actuatorID string, action models.CommandAction, issuedBy string) (models.CommandAck, error) {
	if !models.ValidAction(action) {
		return models.CommandAck{}, validationf("unknown action %q", action)
	}

	dev := d.store.deviceForActuator(actuatorID)
	if dev == nil {
		return models.CommandAck{}, &NotFoundError{Kind: "actuator", ID: actuatorID}
	}

	var (
		pc      *pendingCommand
		channel int
		vErr    error
	)
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		if rec.Mode == models.ModeAuto && action != models.ActionPulse {
			vErr = validationf("actuator %s is in AUTO mode; manual %s rejected", actuatorID, action)
			return
		}
		channel = rec.Channel

		pc = &pendingCommand{
			id:       uuid.New().String(),
			action:   action,
			prior:    rec.Status,
			issuedAt: time.Now(),
		}
		switch action {
		case models.ActionOn:
			rec.Status = models.StatusOn
		case models.ActionOff:
			rec.Status = models.StatusOff
		}
		rec.pending = pc
		rec.LastCommand = &models.CommandRecord{
			CommandID: pc.id,
			Action:    action,
			State:     models.CommandPending,
			IssuedAt:  pc.issuedAt,
			IssuedBy:  issuedBy,
		}
		d.store.publishActuator(dev, rec)
	})
	if vErr != nil {
		return models.CommandAck{}, vErr
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	sendErr := d.transport.Send(sendCtx, dev.id, channel, action)

	var ack models.CommandAck
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		// A later dispatch may have replaced LastCommand; only stamp
		// the lifecycle state onto this command's own record.
		ownRecord := rec.LastCommand != nil && rec.LastCommand.CommandID == pc.id
		if sendErr == nil {
			rec.CycleCount++
			if ownRecord {
				rec.LastCommand.State = models.CommandConfirmed
			}
			ack = models.CommandAck{
				CommandID:  pc.id,
				ActuatorID: actuatorID,
				Action:     action,
				Status:     rec.Status,
				CycleCount: rec.CycleCount,
			}
		} else {
			if ownRecord {
				if errors.Is(sendErr, context.DeadlineExceeded) {
					rec.LastCommand.State = models.CommandTimedOut
				} else {
					rec.LastCommand.State = models.CommandFailed
				}
			}
			// Roll back the optimistic write unless a push event has
			// already reported ground truth, or a newer command has
			// taken over the actuator.
			if rec.pending == pc && !pc.groundTruth && action != models.ActionPulse {
				rec.Status = pc.prior
			}
		}
		if rec.pending == pc {
			rec.pending = nil
		}
		d.store.persistActuator(rec)
		d.store.publishActuator(dev, rec)
	})

	if sendErr != nil {
		dispErr := &DispatchError{
			ActuatorID: actuatorID,
			Action:     string(action),
			TimedOut:   errors.Is(sendErr, context.DeadlineExceeded),
			Err:        sendErr,
		}
		d.logger.Errorf("dispatch failed: %v", dispErr)
		return models.CommandAck{}, dispErr
	}

	d.logger.Infof("command %s %s on actuator %s confirmed, cycle_count=%d", pc.id, action, actuatorID, ack.CycleCount)
	return ack, nil
}
