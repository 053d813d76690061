package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"irrigation-control/internal/models"
)

// validateSchedule checks the window invariants shared by create and
// update. EndAt may be zero for an open-ended window.
func validateSchedule(sch models.Schedule) error {
	if sch.Action != models.ActionOn && sch.Action != models.ActionOff {
		return validationf("schedule action must be ON or OFF, got %q", sch.Action)
	}
	if sch.StartAt.IsZero() {
		return validationf("schedule requires a start time")
	}
	if !sch.EndAt.IsZero() && !sch.StartAt.Before(sch.EndAt) {
		return validationf("schedule start %s must precede end %s",
			sch.StartAt.Format(time.RFC3339), sch.EndAt.Format(time.RFC3339))
	}
	return nil
}

// overlaps reports whether two windows intersect. A zero end is treated
// as open-ended.
func overlaps(a, b models.Schedule) bool {
	aOpen, bOpen := a.EndAt.IsZero(), b.EndAt.IsZero()
	if aOpen && bOpen {
		return true
	}
	if aOpen {
		return b.EndAt.After(a.StartAt)
	}
	if bOpen {
		return a.EndAt.After(b.StartAt)
	}
	return a.StartAt.Before(b.EndAt) && b.StartAt.Before(a.EndAt)
}

// CreateSchedule validates and stores a schedule for an actuator. The
// returned flag reports whether the new window overlaps another enabled
// schedule on the same actuator; overlap is admitted but flagged, since
// execution order across overlapping windows is undefined.
func (s *Store) CreateSchedule(actuatorID string, sch models.Schedule) (models.Schedule, bool, error) {
	if err := validateSchedule(sch); err != nil {
		return models.Schedule{}, false, err
	}
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return models.Schedule{}, false, &NotFoundError{Kind: "actuator", ID: actuatorID}
	}

	sch.ScheduleID = uuid.New().String()
	sch.ActuatorID = actuatorID
	sch.CreatedAt = time.Now()

	overlap := false
	dev.do(func() {
		rec := dev.actuators[actuatorID]
		if sch.Enabled {
			for _, other := range rec.schedules {
				if other.Enabled && overlaps(sch, other) {
					overlap = true
					break
				}
			}
		}
		rec.schedules = append(rec.schedules, sch)
		s.persistSchedule(sch)
	})

	s.mu.Lock()
	s.bySchedule[sch.ScheduleID] = dev
	s.mu.Unlock()

	if overlap {
		s.logger.Warnf("schedule %s overlaps an enabled schedule on actuator %s", sch.ScheduleID, actuatorID)
	}
	return sch, overlap, nil
}

// UpdateSchedule replaces the window, action and enabled flag of an
// existing schedule. Identity and creation time are preserved.
func (s *Store) UpdateSchedule(scheduleID string, patch models.Schedule) (models.Schedule, bool, error) {
	if err := validateSchedule(patch); err != nil {
		return models.Schedule{}, false, err
	}
	dev := s.deviceForSchedule(scheduleID)
	if dev == nil {
		return models.Schedule{}, false, &NotFoundError{Kind: "schedule", ID: scheduleID}
	}

	var updated models.Schedule
	overlap := false
	dev.do(func() {
		for _, id := range dev.order {
			rec := dev.actuators[id]
			for i := range rec.schedules {
				if rec.schedules[i].ScheduleID != scheduleID {
					continue
				}
				cur := &rec.schedules[i]
				cur.Enabled = patch.Enabled
				cur.Action = patch.Action
				cur.StartAt = patch.StartAt
				cur.EndAt = patch.EndAt
				updated = *cur
				if cur.Enabled {
					for j := range rec.schedules {
						other := rec.schedules[j]
						if j != i && other.Enabled && overlaps(*cur, other) {
							overlap = true
							break
						}
					}
				}
				s.persistSchedule(updated)
				return
			}
		}
	})
	return updated, overlap, nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(scheduleID string) error {
	dev := s.deviceForSchedule(scheduleID)
	if dev == nil {
		return &NotFoundError{Kind: "schedule", ID: scheduleID}
	}

	dev.do(func() {
		for _, id := range dev.order {
			rec := dev.actuators[id]
			for i := range rec.schedules {
				if rec.schedules[i].ScheduleID != scheduleID {
					continue
				}
				rec.schedules = append(rec.schedules[:i], rec.schedules[i+1:]...)
				if s.repo != nil {
					ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
					if err := s.repo.DeleteSchedule(ctx, scheduleID); err != nil {
						s.logger.Warnf("delete schedule %s failed: %v", scheduleID, err)
					}
					cancel()
				}
				return
			}
		}
	})

	s.mu.Lock()
	delete(s.bySchedule, scheduleID)
	s.mu.Unlock()
	return nil
}

// DeriveScheduleStatus computes the temporal status of a schedule set
// at the given instant. A pure function: any consumer recomputes the
// identical answer from the same inputs. RUNNING wins when any enabled
// window contains now; otherwise the enabled schedule with the soonest
// future start is UPCOMING; otherwise NONE.
func DeriveScheduleStatus(schedules []models.Schedule, now time.Time) (models.ScheduleState, *models.Schedule) {
	var upcoming *models.Schedule
	for i := range schedules {
		sch := schedules[i]
		if !sch.Enabled {
			continue
		}
		inWindow := !now.Before(sch.StartAt) && (sch.EndAt.IsZero() || !now.After(sch.EndAt))
		if inWindow {
			running := sch
			return models.ScheduleRunning, &running
		}
		if sch.StartAt.After(now) && (upcoming == nil || sch.StartAt.Before(upcoming.StartAt)) {
			next := sch
			upcoming = &next
		}
	}
	if upcoming != nil {
		return models.ScheduleUpcoming, upcoming
	}
	return models.ScheduleNone, nil
}

// ScheduleStatusFor derives the schedule status of one actuator. The
// result is non-authoritative while the actuator is in MANUAL mode,
// where schedules are inert data; the derivation itself is never
// suppressed.
func (s *Store) ScheduleStatusFor(actuatorID string, now time.Time) (models.ScheduleStatus, error) {
	view, err := s.GetActuator(actuatorID)
	if err != nil {
		return models.ScheduleStatus{}, err
	}
	state, sch := DeriveScheduleStatus(view.Schedules, now)
	return models.ScheduleStatus{
		State:         state,
		Schedule:      sch,
		Authoritative: view.Mode == models.ModeAuto,
	}, nil
}

// persistSchedule writes a schedule through to the repository,
// best-effort. Must run inside the owning actor.
func (s *Store) persistSchedule(sch models.Schedule) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
	defer cancel()
	if err := s.repo.SaveSchedule(ctx, sch); err != nil {
		s.logger.Warnf("persist schedule %s failed: %v", sch.ScheduleID, err)
	}
}
