package engine

import "fmt"

// ValidationError rejects a request before any state mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown actuator, device, alarm or schedule id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// DispatchError is returned when the actuation transport fails or times
// out. The optimistic transition has already been rolled back unless
// ground-truth telemetry superseded it mid-flight.
type DispatchError struct {
	ActuatorID string
	Action     string
	TimedOut   bool
	Err        error
}

func (e *DispatchError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("dispatch %s to actuator %s timed out", e.Action, e.ActuatorID)
	}
	return fmt.Sprintf("dispatch %s to actuator %s failed: %v", e.Action, e.ActuatorID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
